// пакет postgres содержит хранилище флагов дедупликации на базе Postgres.
// используется для lifetime scope, когда флаги должны переживать перезапуск агента
// и разделяться между несколькими экземплярами.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/IvanChernomyrdin/go-privacy-analytics/internal/storage/postgres/pgerrors"
	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

const (
	flagsTable = "agent_flags"
	flagValue  = "true"
)

// конфиг для повторных попыток
type RetryConfig struct {
	MaxAttempts  int           // максимальное кол-во попыток
	InitialDelay time.Duration // задержка перед второй попыткой, дальше удваивается
	MaxDelay     time.Duration // потолок задержки
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     5 * time.Second,
	}
}

// FlagStore флаги в таблице agent_flags, ключ (scope, name).
// Claim атомарен на стороне БД: INSERT ... ON CONFLICT DO NOTHING.
type FlagStore struct {
	db         *sql.DB
	scope      string
	retry      RetryConfig
	classifier *pgerrors.Classifier
	builder    sq.StatementBuilderType
	log        *zap.SugaredLogger
}

func New(db *sql.DB, scope string, log *zap.SugaredLogger) *FlagStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &FlagStore{
		db:         db,
		scope:      scope,
		retry:      DefaultRetryConfig(),
		classifier: pgerrors.NewClassifier(),
		builder:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		log:        log,
	}
}

// WithRetry заменяет конфиг повторных попыток
func (p *FlagStore) WithRetry(cfg RetryConfig) *FlagStore {
	p.retry = cfg
	return p
}

func (p *FlagStore) Claim(ctx context.Context, key string) (bool, error) {
	query, args, err := p.builder.
		Insert(flagsTable).
		Columns("scope", "name", "value").
		Values(p.scope, key, flagValue).
		Suffix("ON CONFLICT (scope, name) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim query: %w", err)
	}

	var claimed bool
	err = p.Retry(ctx, func() error {
		res, err := p.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		claimed = n == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("claim flag %s: %w", key, err)
	}
	return claimed, nil
}

func (p *FlagStore) Has(ctx context.Context, key string) (bool, error) {
	query, args, err := p.builder.
		Select("1").
		From(flagsTable).
		Where(sq.Eq{"scope": p.scope, "name": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build has query: %w", err)
	}

	var found bool
	err = p.Retry(ctx, func() error {
		var one int
		err := p.db.QueryRowContext(ctx, query, args...).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read flag %s: %w", key, err)
	}
	return found, nil
}

// Retry повторяет операцию только на временных ошибках
func (p *FlagStore) Retry(ctx context.Context, operation func() error) error {
	var lastErr error
	delay := p.retry.InitialDelay
	attempts := max(1, p.retry.MaxAttempts)

	for attempt := 0; attempt < attempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !p.classifier.IsRetriable(err) {
			return fmt.Errorf("non-retriable error: %w", err)
		}
		if attempt == attempts-1 {
			break
		}

		p.log.Warnf("Attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if p.retry.MaxDelay > 0 && delay > p.retry.MaxDelay {
			delay = p.retry.MaxDelay
		}
	}

	return fmt.Errorf("all %d attempts failed, last error: %w", attempts, lastErr)
}
