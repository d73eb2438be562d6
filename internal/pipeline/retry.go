package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Concurrent workers upserting overlapping rows occasionally trip Postgres
// lock machinery. Those failures are transient by definition and are retried
// with a short linear backoff; every other database error fails the unit
// immediately.

// RetryPolicy bounds storage-contention retries.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy matches the backoff the catalog's write volume was tuned
// against.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 100 * time.Millisecond}
}

// Postgres classes: serialization_failure, deadlock_detected,
// lock_not_available.
var contentionCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
}

// IsContention reports whether err is a transient lock conflict worth
// retrying. Drivers and wrappers do not always surface the SQLSTATE, so a
// text match backs up the code check.
func IsContention(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return contentionCodes[pgErr.Code]
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") || strings.Contains(msg, "lock")
}

// Run executes fn, retrying contention errors up to Attempts times with a
// backoff that grows linearly per attempt.
func (p RetryPolicy) Run(ctx context.Context, log *zap.Logger, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !IsContention(err) || attempt == attempts {
			return err
		}
		if log != nil {
			log.Warn("storage contention, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		select {
		case <-time.After(time.Duration(attempt) * p.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
