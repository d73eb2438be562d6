package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsContention(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, true},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped pg error", fmt.Errorf("upsert: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"deadlock text", errors.New("driver: deadlock while waiting"), true},
		{"lock text", errors.New("could not obtain lock on row"), true},
		{"plain error", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, IsContention(tc.err))
		})
	}
}

func TestRetryPolicyRetriesContention(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}
	attempts := 0
	err := policy.Run(context.Background(), zap.NewNop(), "upsert specs", func() error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryPolicyDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}
	attempts := 0
	boom := errors.New("syntax error")
	err := policy.Run(context.Background(), zap.NewNop(), "upsert specs", func() error {
		attempts++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, attempts)
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}
	attempts := 0
	err := policy.Run(context.Background(), zap.NewNop(), "upsert specs", func() error {
		attempts++
		return &pgconn.PgError{Code: "40001"}
	})
	require.Error(t, err)
	require.True(t, IsContention(err))
	require.Equal(t, 3, attempts)
}

func TestRetryPolicyStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{Attempts: 5, Backoff: time.Minute}
	err := policy.Run(ctx, zap.NewNop(), "upsert specs", func() error {
		return &pgconn.PgError{Code: "40001"}
	})
	require.ErrorIs(t, err, context.Canceled)
}
