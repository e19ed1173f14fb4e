package pgerrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name     string
		err      error
		expected Classification
	}{
		{name: "nil ошибка", err: nil, expected: NonRetriable},
		{name: "обычная ошибка Go", err: errors.New("some error"), expected: NonRetriable},
		{name: "класс 08", err: &pgconn.PgError{Code: "08000"}, expected: Retriable},
		{name: "класс 08 с подклассом", err: &pgconn.PgError{Code: "08006"}, expected: Retriable},
		{name: "serialization_failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, expected: Retriable},
		{name: "deadlock_detected", err: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, expected: Retriable},
		{name: "lock_not_available", err: &pgconn.PgError{Code: pgerrcode.LockNotAvailable}, expected: Retriable},
		{name: "too_many_connections", err: &pgconn.PgError{Code: pgerrcode.TooManyConnections}, expected: Retriable},
		{name: "admin_shutdown", err: &pgconn.PgError{Code: pgerrcode.AdminShutdown}, expected: Retriable},
		{name: "cannot_connect_now", err: &pgconn.PgError{Code: pgerrcode.CannotConnectNow}, expected: Retriable},
		{name: "unique_violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, expected: NonRetriable},
		{name: "syntax_error", err: &pgconn.PgError{Code: pgerrcode.SyntaxError}, expected: NonRetriable},
		{name: "авторизация", err: &pgconn.PgError{Code: "28000"}, expected: NonRetriable},
		{name: "обёрнутая PgError", err: fmt.Errorf("claim: %w", &pgconn.PgError{Code: "08003"}), expected: Retriable},
		{name: "сетевая ошибка", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, expected: Retriable},
		{name: "отмена контекста", err: fmt.Errorf("exec: %w", context.Canceled), expected: NonRetriable},
		{name: "таймаут контекста", err: context.DeadlineExceeded, expected: NonRetriable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifier.Classify(tt.err))
			assert.Equal(t, tt.expected == Retriable, classifier.IsRetriable(tt.err))
		})
	}
}

func TestClassification_String(t *testing.T) {
	assert.Equal(t, "retriable", Retriable.String())
	assert.Equal(t, "non-retriable", NonRetriable.String())
}
