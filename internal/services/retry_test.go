package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    retries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetry_RecoversAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), logrus.New(), "connect", fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), logrus.New(), "connect", fastPolicy(2), func(context.Context) error {
		calls++
		return errors.New("attempt failed")
	})

	require.EqualError(t, err, "attempt failed")
	assert.Equal(t, 3, calls)
}

func TestRetry_ZeroRetriesRunsOnce(t *testing.T) {
	for _, retries := range []int{0, -1} {
		calls := 0
		err := Retry(context.Background(), logrus.New(), "connect", fastPolicy(retries), func(context.Context) error {
			calls++
			return errors.New("down")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	}
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour, BackoffFactor: 2.0}

	calls := 0
	err := Retry(ctx, logrus.New(), "connect", policy, func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Jitter(t *testing.T) {
	policy := ConnectRetryPolicy(3)
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := policy.delayWithJitter(base)
		assert.GreaterOrEqual(t, d, 87*time.Millisecond)
		assert.LessOrEqual(t, d, 113*time.Millisecond)
	}

	policy.JitterEnabled = false
	assert.Equal(t, base, policy.delayWithJitter(base))
}
