package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MaxHistogramBuckets предел длины вектора гистограммы из удалённой конфигурации
const MaxHistogramBuckets = 1 << 16

// ConfigSource источник закэшированной конфигурации
type ConfigSource interface {
	Config(ctx context.Context) (*model.GlobalConfig, error)
}

// Registry лениво создаёт и хранит по одной задаче на метрику.
type Registry struct {
	source ConfigSource
	log    *zap.SugaredLogger

	mu     sync.Mutex
	tasks  map[string]*model.Task
	failed map[string]error // метрики с неисправимой конфигурацией
	group  singleflight.Group
}

func NewRegistry(source ConfigSource, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		source: source,
		log:    log,
		tasks:  make(map[string]*model.Task),
		failed: make(map[string]error),
	}
}

// GetOrCreate возвращает задачу метрики, создавая её при первом обращении.
// Параллельные вызовы для одной метрики создают задачу один раз.
func (r *Registry) GetOrCreate(ctx context.Context, metric string) (*model.Task, error) {
	if task, err, ok := r.lookup(metric); ok {
		return task, err
	}

	v, err, _ := r.group.Do(metric, func() (any, error) {
		if task, err, ok := r.lookup(metric); ok {
			return task, err
		}

		gc, err := r.source.Config(ctx)
		if err != nil {
			return nil, err
		}

		mc := gc.Metric(metric)
		if mc == nil {
			return nil, fmt.Errorf("%w: %s", ErrMetricNotConfigured, metric)
		}

		task, err := NewTask(metric, gc, mc)

		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.log.Errorf("Cannot create task for %s: %v", metric, err)
			r.failed[metric] = err
			return nil, err
		}
		r.tasks[metric] = task
		return task, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*model.Task), nil
}

// Len кол-во созданных задач
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *Registry) lookup(metric string) (*model.Task, error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task, ok := r.tasks[metric]; ok {
		return task, nil, true
	}
	if err, ok := r.failed[metric]; ok {
		return nil, err, true
	}
	return nil, nil, false
}

// NewTask собирает задачу из параметров агрегации метрики
func NewTask(metric string, gc *model.GlobalConfig, mc *model.MetricConfig) (*model.Task, error) {
	params := mc.Aggregation
	task := &model.Task{
		Metric:        metric,
		ID:            params.TaskID,
		Kind:          params.Kind,
		LeaderURL:     gc.LeaderURL,
		HelperURL:     gc.HelperURL,
		TimePrecision: time.Duration(params.TimePrecisionSeconds) * time.Second,
	}

	switch params.Kind {
	case model.KindCount:
		return task, nil

	case model.KindHistogram:
		numBuckets, chunk := params.Vdaf.NumBuckets, params.Vdaf.ProofChunkSize
		if numBuckets == nil || chunk == nil {
			return nil, fmt.Errorf("%w: histogram %s: numBuckets or proofChunkSize is null", ErrInvalidTask, metric)
		}
		if *numBuckets <= 0 || *chunk <= 0 {
			return nil, fmt.Errorf("%w: histogram %s: numBuckets and proofChunkSize must be positive", ErrInvalidTask, metric)
		}
		if *numBuckets > MaxHistogramBuckets {
			return nil, fmt.Errorf("%w: histogram %s: numBuckets %d exceeds %d", ErrInvalidTask, metric, *numBuckets, MaxHistogramBuckets)
		}
		task.Length = *numBuckets
		task.ChunkLength = *chunk
		return task, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, params.Kind)
}
