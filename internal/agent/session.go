package agent

import (
	"context"
	"sync"
	"time"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
)

// visibilityClock время с последнего перехода страницы в visible
type visibilityClock struct {
	mu      sync.Mutex
	visible bool
	since   time.Time
}

func (vc *visibilityClock) reset(now time.Time) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.visible = true
	vc.since = now
}

// show повторный visible без hidden не сбрасывает отсчёт
func (vc *visibilityClock) show(now time.Time) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if vc.visible {
		return
	}
	vc.visible = true
	vc.since = now
}

// hide завершает цикл видимости, false если страница уже была скрыта
func (vc *visibilityClock) hide(now time.Time) (time.Duration, bool) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if !vc.visible {
		return 0, false
	}
	vc.visible = false
	elapsed := now.Sub(vc.since)
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, true
}

func (a *Agent) onVisibility(ctx context.Context, visible bool) {
	if visible {
		a.visibility.show(a.now())
		return
	}
	a.endVisibilityCycle(ctx)
}

// endVisibilityCycle на hidden и unload: одно измерение на цикл видимости
func (a *Agent) endVisibilityCycle(ctx context.Context) {
	elapsed, ok := a.visibility.hide(a.now())
	if !ok {
		return
	}
	a.spawn("endSession", func() {
		a.TrackSessionDuration(ctx, elapsed)
	})
}

// TrackSessionDuration бакетирует длительность по sessionInterval и numBuckets метрики session.
// Дедупликации нет: одна отправка на каждый цикл видимости.
func (a *Agent) TrackSessionDuration(ctx context.Context, elapsed time.Duration) {
	gc, ok := a.config(ctx)
	if !ok {
		return
	}
	mc := gc.Metric(model.MetricSession)
	if mc == nil {
		return
	}
	info, ok := mc.Info.(model.SessionInfo)
	if !ok {
		return
	}
	numBuckets := mc.Aggregation.Vdaf.NumBuckets
	if numBuckets == nil || *numBuckets <= 0 {
		return
	}

	bucket := Bucket(elapsed.Milliseconds(), info.BucketIntervalSeconds, *numBuckets)
	a.log.Debugf("Session duration bucketed as %d", bucket)
	a.Track(ctx, model.MetricSession, model.IndexMeasurement(bucket))
}
