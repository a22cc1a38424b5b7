package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	breaker := NewCircuitBreaker("predictor", CircuitBreakerConfig{
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		Timeout:          time.Second,
		MaxRequests:      1,
		ResetTimeout:     time.Minute,
	}, quietLogger())
	breaker.now = clock.Now
	return breaker, clock
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	breaker := NewCircuitBreaker("defaults", CircuitBreakerConfig{}, nil)

	assert.Equal(t, 5, breaker.config.FailureThreshold)
	assert.Equal(t, 1, breaker.config.SuccessThreshold)
	assert.Equal(t, 30*time.Second, breaker.config.Timeout)
	assert.Equal(t, 1, breaker.config.MaxRequests)
	assert.NotNil(t, breaker.logger)
	assert.Equal(t, Closed, breaker.GetState())
}

func TestCircuitBreaker_ExecutePassesResult(t *testing.T) {
	breaker, _ := newTestBreaker(3)

	assert.NoError(t, breaker.Execute(context.Background(), func(ctx context.Context) error { return nil }))

	err := breaker.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("test error")
	})
	assert.EqualError(t, err, "test error")

	stats := breaker.GetStats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.SuccessfulRequests)
	assert.Equal(t, int64(1), stats.FailedRequests)
	assert.Equal(t, "closed", stats.State)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	breaker, _ := newTestBreaker(2)
	failing := func(ctx context.Context) error { return errors.New("down") }

	_ = breaker.Execute(context.Background(), failing)
	assert.Equal(t, Closed, breaker.GetState())
	_ = breaker.Execute(context.Background(), failing)
	assert.True(t, breaker.IsOpen())

	called := false
	err := breaker.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, int64(1), breaker.GetStats().RejectedRequests)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	breaker, clock := newTestBreaker(1)

	_ = breaker.Execute(context.Background(), func(ctx context.Context) error { return errors.New("down") })
	require.True(t, breaker.IsOpen())

	clock.Advance(2 * time.Second)
	require.NoError(t, breaker.Execute(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, Closed, breaker.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	breaker, clock := newTestBreaker(1)

	_ = breaker.Execute(context.Background(), func(ctx context.Context) error { return errors.New("down") })
	clock.Advance(2 * time.Second)

	_ = breaker.Execute(context.Background(), func(ctx context.Context) error { return errors.New("still down") })
	assert.Equal(t, Open, breaker.GetState())
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	breaker, clock := newTestBreaker(1)
	_ = breaker.Execute(context.Background(), func(ctx context.Context) error { return errors.New("down") })
	clock.Advance(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- breaker.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := breaker.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen, "only one probe is allowed while half-open")

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, Closed, breaker.GetState())
}

func TestCircuitBreaker_CallerCancellationIsNotAFailure(t *testing.T) {
	breaker, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := breaker.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Closed, breaker.GetState())
	assert.Zero(t, breaker.GetStats().FailedRequests)
}

func TestCircuitBreaker_FailureCountExpires(t *testing.T) {
	breaker, clock := newTestBreaker(2)
	failing := func(ctx context.Context) error { return errors.New("down") }

	_ = breaker.Execute(context.Background(), failing)
	clock.Advance(2 * time.Minute)
	_ = breaker.Execute(context.Background(), failing)

	assert.Equal(t, Closed, breaker.GetState())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	breaker, _ := newTestBreaker(1)
	_ = breaker.Execute(context.Background(), func(ctx context.Context) error { return errors.New("down") })
	require.True(t, breaker.IsOpen())

	breaker.Reset()
	assert.Equal(t, Closed, breaker.GetState())
	assert.Equal(t, int64(2), breaker.GetStats().StateChanges)
}

func TestCircuitBreaker_ConcurrentExecute(t *testing.T) {
	breaker, _ := newTestBreaker(1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = breaker.Execute(context.Background(), func(ctx context.Context) error {
				if i%2 == 0 {
					return errors.New("odd one out")
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	stats := breaker.GetStats()
	assert.Equal(t, int64(50), stats.TotalRequests)
	assert.Equal(t, int64(25), stats.FailedRequests)
	assert.Equal(t, int64(25), stats.SuccessfulRequests)
}

func TestCircuitBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", CircuitBreakerState(9).String())
}
