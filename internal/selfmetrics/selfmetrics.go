// Package selfmetrics считает исходы отправок и загрузок конфигурации самого агента.
// Значения измерений сюда не попадают, только имя метрики и исход.
package selfmetrics

import (
	"context"
	"errors"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeCanceled = "canceled"
)

type Metrics struct {
	Submissions *prometheus.CounterVec
	ConfigFetch *prometheus.CounterVec
}

// New регистрирует счётчики в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analytics",
			Name:      "submissions_total",
			Help:      "Submissions handed to the sink by metric and outcome.",
		}, []string{"metric", "outcome"}),
		ConfigFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analytics",
			Name:      "config_fetch_total",
			Help:      "Global configuration fetch attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Submissions, m.ConfigFetch)
	}
	return m
}

// InstrumentedSink обёртка над Sink со счётчиком исходов
type InstrumentedSink struct {
	next    model.Sink
	metrics *Metrics
}

func NewInstrumentedSink(next model.Sink, metrics *Metrics) *InstrumentedSink {
	return &InstrumentedSink{next: next, metrics: metrics}
}

func (s *InstrumentedSink) Submit(ctx context.Context, task *model.Task, m model.Measurement) error {
	err := s.next.Submit(ctx, task, m)
	s.metrics.Submissions.WithLabelValues(task.Metric, outcome(err)).Inc()
	return err
}

// InstrumentedFetcher обёртка над ConfigFetcher
type InstrumentedFetcher struct {
	next    model.ConfigFetcher
	metrics *Metrics
}

func NewInstrumentedFetcher(next model.ConfigFetcher, metrics *Metrics) *InstrumentedFetcher {
	return &InstrumentedFetcher{next: next, metrics: metrics}
}

func (f *InstrumentedFetcher) Fetch(ctx context.Context, domain string) (*model.GlobalConfig, error) {
	cfg, err := f.next.Fetch(ctx, domain)
	f.metrics.ConfigFetch.WithLabelValues(outcome(err)).Inc()
	return cfg, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, model.ErrMeasurementType), errors.Is(err, model.ErrMeasurementRange):
		return OutcomeRejected
	}
	return OutcomeError
}
