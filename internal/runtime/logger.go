package runtime

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type HTTPLogger struct {
	*zap.Logger
}

// NewLogger логгер агента. Без debug пишет только warn и выше,
// чтобы агент не шумел на странице хоста.
func NewLogger(debug bool) *HTTPLogger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		config.Development = true
	}

	logger, err := config.Build()
	if err != nil {
		logger = zap.NewNop()
	}

	return &HTTPLogger{Logger: logger}
}

// NewHTTPLogger логгер для http сервера
func NewHTTPLogger() *HTTPLogger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	logger, err := config.Build()
	if err != nil {
		logger = zap.NewNop()
	}

	return &HTTPLogger{Logger: logger}
}

func (logger *HTTPLogger) LogRequest(method, uri string, status, responseSize int, duration float64) {
	logger.Info("HTTP request",
		zap.String("method", method),
		zap.String("uri", uri),
		zap.Int("status", status),
		zap.Int("response_size", responseSize),
		zap.Float64("duration_ms", duration),
	)
}
