package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDo_SuccessAfterFailures(t *testing.T) {
	cfg := Fixed(3, 10*time.Millisecond)

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	cfg := Fixed(3, 10*time.Millisecond)

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errors.New("persistent error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	cfg := Fixed(5, 10*time.Millisecond)
	rejected := errors.New("device not registered")

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return NonRetryable(rejected)
	})

	assert.Error(t, err)
	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Fixed(5, 100*time.Millisecond)

	attempts := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Less(t, attempts, 5)
}

func TestFixed_ConstantDelay(t *testing.T) {
	cfg := Fixed(4, 20*time.Millisecond)

	start := time.Now()
	attempts := 0
	_ = Do(context.Background(), cfg, func() error {
		attempts++
		return errors.New("error")
	})
	elapsed := time.Since(start)

	assert.Equal(t, 4, attempts)
	// Three sleeps of a fixed 20ms, not exponential.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestNonRetryable_NilPassthrough(t *testing.T) {
	assert.NoError(t, NonRetryable(nil))
	assert.False(t, IsNonRetryable(nil))
}
