// Package agent реализует агент приватной аналитики: получение конфигурации домена,
// реестр задач агрегации, политики дедупликации и отправку измерений.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/storage/memory"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Deps зависимости агента. Обязательны Domain, Fetcher и Sink.
type Deps struct {
	Domain        string
	Fetcher       model.ConfigFetcher
	Sink          model.Sink
	SessionStore  model.FlagStore
	LifetimeStore model.FlagStore
	Classifier    model.UAClassifier
	UserAgent     string
	Logger        *zap.SugaredLogger
	Clock         func() time.Time
}

type Agent struct {
	domain     string
	sink       model.Sink
	session    model.FlagStore
	lifetime   model.FlagStore
	classifier model.UAClassifier
	userAgent  string
	log        *zap.SugaredLogger
	now        func() time.Time

	configs  *configCache
	registry *Registry

	visibility visibilityClock
	engagement engagementListener
	inflight   sync.WaitGroup
}

func NewAgent(deps Deps) (*Agent, error) {
	if deps.Domain == "" {
		return nil, errors.New("agent: domain is required")
	}
	if deps.Fetcher == nil || deps.Sink == nil {
		return nil, errors.New("agent: fetcher and sink are required")
	}

	a := &Agent{
		domain:     deps.Domain,
		sink:       deps.Sink,
		session:    deps.SessionStore,
		lifetime:   deps.LifetimeStore,
		classifier: deps.Classifier,
		userAgent:  deps.UserAgent,
		log:        deps.Logger,
		now:        deps.Clock,
	}
	if a.session == nil {
		a.session = memory.NewFlagStore()
	}
	if a.lifetime == nil {
		a.lifetime = memory.NewFlagStore()
	}
	if a.classifier == nil {
		a.classifier = UserAgentClassifier{}
	}
	if a.log == nil {
		a.log = zap.NewNop().Sugar()
	}
	if a.now == nil {
		a.now = time.Now
	}

	a.configs = &configCache{fetcher: deps.Fetcher, domain: deps.Domain, log: a.log}
	a.registry = NewRegistry(a.configs, a.log)
	a.visibility.reset(a.now())

	return a, nil
}

// GlobalConfig закэшированная конфигурация, nil пока не получена
func (a *Agent) GlobalConfig() *model.GlobalConfig {
	return a.configs.cached()
}

// RefreshConfig явный запрос конфигурации. Если конфигурация уже есть, запроса нет;
// после ошибки это единственный способ попробовать ещё раз.
func (a *Agent) RefreshConfig(ctx context.Context) error {
	_, err := a.configs.refresh(ctx)
	return err
}

// Start получает конфигурацию и параллельно запускает visit, country и telemetry.
// Ошибка одной политики не отменяет остальные.
func (a *Agent) Start(ctx context.Context) error {
	if _, err := a.configs.Config(ctx); err != nil {
		a.log.Errorf("Failed to refresh config: %v", err)
		return err
	}

	policies := []struct {
		name string
		run  func(context.Context) error
	}{
		{"trackPageVisit", a.TrackPageVisit},
		{"trackCountry", a.TrackCountry},
		{"trackTelemetry", a.TrackTelemetry},
	}

	var g errgroup.Group
	for _, p := range policies {
		p := p
		g.Go(func() error {
			defer a.recoverPolicy(p.name)
			if err := p.run(ctx); err != nil {
				a.log.Errorf("%s failed: %v", p.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Track отправляет измерение метрики. Ошибки только логируются.
func (a *Agent) Track(ctx context.Context, metric string, m model.Measurement) {
	task, err := a.registry.GetOrCreate(ctx, metric)
	if err != nil {
		a.log.Debugf("No task for event %s: %v", metric, err)
		return
	}

	if err := task.Check(m); err != nil {
		a.log.Errorf("Error tracking event '%s': %v", metric, err)
		return
	}

	a.log.Debugf("Tracking event: %s with value: %s", metric, m)
	if err := a.sink.Submit(ctx, task, m); err != nil {
		a.log.Errorf("Error tracking event '%s': %v", metric, err)
		return
	}
	a.log.Debugf("Event '%s' tracked successfully", metric)
}

// TrackEvent пользовательское событие. Без значения отправляется true,
// числа трактуются как индекс бакета.
func (a *Agent) TrackEvent(ctx context.Context, name string, value ...any) {
	var v any
	if len(value) > 0 {
		v = value[0]
	}

	m, err := MeasurementOf(v)
	if err != nil {
		a.log.Errorf("Error tracking event '%s': %v", name, err)
		return
	}
	a.Track(ctx, name, m)
}

// MeasurementOf приводит значение из разметки или API к измерению
func MeasurementOf(v any) (model.Measurement, error) {
	switch val := v.(type) {
	case nil:
		return model.BoolMeasurement(true), nil
	case model.Measurement:
		return val, nil
	case bool:
		return model.BoolMeasurement(val), nil
	case int:
		return model.IndexMeasurement(val), nil
	case int32:
		return model.IndexMeasurement(int(val)), nil
	case int64:
		return model.IndexMeasurement(int(val)), nil
	case uint:
		return model.IndexMeasurement(int(val)), nil
	case float32:
		return floatIndex(float64(val))
	case float64:
		return floatIndex(val)
	}
	return model.Measurement{}, fmt.Errorf("unsupported measurement value %T", v)
}

// floatIndex только целые неотрицательные значения, дробь не отбрасывается
func floatIndex(v float64) (model.Measurement, error) {
	if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return model.Measurement{}, fmt.Errorf("%w: index must be a non-negative integer, got %v", model.ErrMeasurementRange, v)
	}
	return model.IndexMeasurement(int(v)), nil
}

// config конфигурация если трекинг не отключён
func (a *Agent) config(ctx context.Context) (*model.GlobalConfig, bool) {
	gc, err := a.configs.Config(ctx)
	if err != nil {
		a.log.Debugf("Tracking disabled: %v", err)
		return nil, false
	}
	return gc, true
}

// claim ставит флаг дедупликации. Ошибка хранилища = флаг не получен.
func (a *Agent) claim(ctx context.Context, store model.FlagStore, key string) bool {
	claimed, err := store.Claim(ctx, key)
	if err != nil {
		a.log.Errorf("Cannot set flag %s: %v", key, err)
		return false
	}
	return claimed
}

// spawn fire-and-forget отправка, не блокирует обработчик события
func (a *Agent) spawn(name string, fn func()) {
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		defer a.recoverPolicy(name)
		fn()
	}()
}

// Wait ждёт завершения отправок, запущенных обработчиками событий
func (a *Agent) Wait() {
	a.inflight.Wait()
}

func (a *Agent) recoverPolicy(name string) {
	if r := recover(); r != nil {
		a.log.Errorf("%s panicked: %v", name, r)
	}
}

// configCache конфигурация домена на всё время жизни агента.
// Первая ошибка отключает трекинг до явного refresh.
type configCache struct {
	fetcher model.ConfigFetcher
	domain  string
	log     *zap.SugaredLogger

	group  singleflight.Group
	mu     sync.RWMutex
	cfg    *model.GlobalConfig
	failed error
}

func (c *configCache) Config(ctx context.Context) (*model.GlobalConfig, error) {
	c.mu.RLock()
	cfg, failed := c.cfg, c.failed
	c.mu.RUnlock()

	if cfg != nil {
		return cfg, nil
	}
	if failed != nil {
		return nil, failed
	}
	return c.refresh(ctx)
}

func (c *configCache) cached() *model.GlobalConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *configCache) refresh(ctx context.Context) (*model.GlobalConfig, error) {
	v, err, _ := c.group.Do("config", func() (any, error) {
		if cfg := c.cached(); cfg != nil {
			return cfg, nil
		}

		cfg, err := c.fetcher.Fetch(ctx, c.domain)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			if !errors.Is(err, ErrConfigUnavailable) {
				err = fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
			}
			c.failed = err
			return nil, c.failed
		}
		if cfg == nil {
			c.failed = ErrConfigUnavailable
			return nil, c.failed
		}
		c.cfg = cfg
		c.failed = nil
		c.log.Debugf("Global config fetched successfully: %d metrics", len(cfg.MetricNames()))
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.GlobalConfig), nil
}
