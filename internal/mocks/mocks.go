// Package mocks testify-моки внешних зависимостей агента
package mocks

import (
	"context"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/model"
	"github.com/stretchr/testify/mock"
)

type Sink struct {
	mock.Mock
}

func (m *Sink) Submit(ctx context.Context, task *model.Task, measurement model.Measurement) error {
	args := m.Called(ctx, task, measurement)
	return args.Error(0)
}

type FlagStore struct {
	mock.Mock
}

func (m *FlagStore) Claim(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *FlagStore) Has(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

type ConfigFetcher struct {
	mock.Mock
}

func (m *ConfigFetcher) Fetch(ctx context.Context, domain string) (*model.GlobalConfig, error) {
	args := m.Called(ctx, domain)
	cfg, _ := args.Get(0).(*model.GlobalConfig)
	return cfg, args.Error(1)
}

type UAClassifier struct {
	mock.Mock
}

func (m *UAClassifier) Classify(userAgent string) model.Telemetry {
	args := m.Called(userAgent)
	return args.Get(0).(model.Telemetry)
}
