package model

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrMeasurementType  = errors.New("measurement type does not match task kind")
	ErrMeasurementRange = errors.New("measurement out of range")
)

// Measurement значение для отправки: bool для count, индекс бакета для histogram
type Measurement struct {
	isIndex bool
	flag    bool
	index   int
}

func BoolMeasurement(v bool) Measurement { return Measurement{flag: v} }

func IndexMeasurement(i int) Measurement { return Measurement{isIndex: true, index: i} }

func (m Measurement) IsIndex() bool { return m.isIndex }
func (m Measurement) Bool() bool    { return m.flag }
func (m Measurement) Index() int    { return m.index }

func (m Measurement) String() string {
	if m.isIndex {
		return strconv.Itoa(m.index)
	}
	return strconv.FormatBool(m.flag)
}

// Task параметры отправки одной метрики.
// Создаётся реестром один раз и переиспользуется.
type Task struct {
	Metric        string
	ID            string
	Kind          Kind
	LeaderURL     string
	HelperURL     string
	TimePrecision time.Duration
	// только для histogram
	Length      int
	ChunkLength int
}

// Check проверяет что измерение подходит задаче
func (t *Task) Check(m Measurement) error {
	switch t.Kind {
	case KindCount:
		if m.IsIndex() {
			return fmt.Errorf("%w: %s expects boolean", ErrMeasurementType, t.Metric)
		}
	case KindHistogram:
		if !m.IsIndex() {
			return fmt.Errorf("%w: %s expects bucket index", ErrMeasurementType, t.Metric)
		}
		if m.Index() < 0 || m.Index() >= t.Length {
			return fmt.Errorf("%w: %s index %d not in [0, %d)", ErrMeasurementRange, t.Metric, m.Index(), t.Length)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMeasurementType, t.Kind)
	}
	return nil
}

// Telemetry результат разбора user-agent
type Telemetry struct {
	BrowserName string
	OSName      string
	DeviceType  string
}

// Sink внешний протокол агрегации
type Sink interface {
	Submit(ctx context.Context, task *Task, m Measurement) error
}

// FlagStore хранилище флагов дедупликации.
// Claim атомарно ставит флаг и сообщает, был ли он поставлен этим вызовом.
type FlagStore interface {
	Claim(ctx context.Context, key string) (bool, error)
	Has(ctx context.Context, key string) (bool, error)
}

type UAClassifier interface {
	Classify(userAgent string) Telemetry
}

// ConfigFetcher получает конфигурацию домена
type ConfigFetcher interface {
	Fetch(ctx context.Context, domain string) (*GlobalConfig, error)
}
