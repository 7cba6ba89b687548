package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBreaker_OpensAfterFailures tests the failure threshold
func TestBreaker_OpensAfterFailures(t *testing.T) {
	t.Parallel()

	b := newBreaker(BreakerConfig{FailureThreshold: 3, SuccessThreshold: 2, CoolDown: time.Hour})

	for i := 0; i < 2; i++ {
		b.failure()
		assert.NoError(t, b.allow())
	}

	b.failure()
	assert.ErrorIs(t, b.allow(), ErrBreakerOpen)
	assert.Equal(t, BreakerOpen, b.currentState())
}

// TestBreaker_SuccessResetsFailureCount tests that successes clear the streak
func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := newBreaker(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, CoolDown: time.Hour})

	b.failure()
	b.success()
	b.failure()

	assert.NoError(t, b.allow(), "non-consecutive failures must not open the breaker")
}

// TestBreaker_HalfOpenRecovery tests the probe path back to closed
func TestBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	b := newBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, CoolDown: 10 * time.Millisecond})

	b.failure()
	require.ErrorIs(t, b.allow(), ErrBreakerOpen)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.allow(), "cool-down elapsed, probes admitted")
	assert.Equal(t, BreakerHalfOpen, b.currentState())

	b.success()
	assert.Equal(t, BreakerHalfOpen, b.currentState())
	b.success()
	assert.Equal(t, BreakerClosed, b.currentState())
}

// TestBreaker_HalfOpenFailureReopens tests a failed probe
func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	b := newBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, CoolDown: 10 * time.Millisecond})

	b.failure()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.allow())

	b.failure()
	assert.Equal(t, BreakerOpen, b.currentState())
	assert.ErrorIs(t, b.allow(), ErrBreakerOpen)
}

// TestBreakerState_String tests state names
func TestBreakerState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
}
