// Package pgerrors классифицирует ошибки PostgreSQL для стратегии повторных попыток
// в хранилище флагов: временные сбои повторяются, логические ошибки - нет.
package pgerrors

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type Classification int

const (
	NonRetriable Classification = iota
	Retriable
)

func (c Classification) String() string {
	if c == Retriable {
		return "retriable"
	}
	return "non-retriable"
}

type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify отмена контекста никогда не повторяется
func (c *Classifier) Classify(err error) Classification {
	if err == nil {
		return NonRetriable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NonRetriable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyCode(pgErr.Code)
	}

	// сеть упала до того как сервер ответил
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Retriable
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return Retriable
	}

	return NonRetriable
}

func (c *Classifier) IsRetriable(err error) bool {
	return c.Classify(err) == Retriable
}

func classifyCode(code string) Classification {
	// класс 08 - connection exception
	if strings.HasPrefix(code, "08") {
		return Retriable
	}

	switch code {
	case pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.LockNotAvailable,
		pgerrcode.TooManyConnections,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.CannotConnectNow:
		return Retriable
	}

	return NonRetriable
}
