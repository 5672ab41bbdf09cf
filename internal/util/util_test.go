package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	attempts := 0

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryReturnsLastError(t *testing.T) {
	attempts := 0
	wantErr := errors.New("persistent error")

	err := Retry(context.Background(), 3, 0, func() error {
		attempts++
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, attempts)
}

func TestRetryHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, 3, time.Second, func() error {
		attempts++
		return errors.New("always fails")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "cancelled context must stop retries before the second attempt")
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second, "disabled limiter must not block")
}

func TestRateLimiterSpacesCalls(t *testing.T) {
	// 6000/min = one slot every 10ms.
	rl := NewRateLimiter(6000)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	// First call is immediate, the remaining four wait ~10ms each.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSeasonMonths(t *testing.T) {
	want := []string{"04", "05", "06", "07", "08", "09", "10", "11"}
	assert.Equal(t, want, SeasonMonths())
}
