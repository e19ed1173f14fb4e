package agent

import "errors"

var (
	// ErrConfigUnavailable конфигурация не получена, трекинг отключён
	ErrConfigUnavailable = errors.New("configuration temporarily unavailable")
	// ErrMetricNotConfigured метрики нет в конфигурации
	ErrMetricNotConfigured = errors.New("metric not configured")
	// ErrInvalidTask параметры задачи не подходят её типу
	ErrInvalidTask = errors.New("invalid task configuration")
	// ErrUnsupportedKind неизвестный тип агрегации
	ErrUnsupportedKind = errors.New("unsupported aggregation kind")
)
