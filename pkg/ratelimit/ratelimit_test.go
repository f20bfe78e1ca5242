package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowConsumesBurstCapacity(t *testing.T) {
	l := New(600) // capacity = 100 tokens

	for i := 0; i < 100; i++ {
		require.True(t, l.Allow(), "call %d should be allowed within burst capacity", i)
	}
	assert.False(t, l.Allow(), "burst capacity should be exhausted")
}

func TestLimiter_TokensRefillOverTime(t *testing.T) {
	l := New(6000) // fast refill: 100 tokens/sec

	for l.Allow() {
	}
	assert.False(t, l.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.Allow(), "tokens should have refilled after waiting")
}

func TestLimiter_WaitBlocksUntilTokenAvailable(t *testing.T) {
	l := New(6000)
	for l.Allow() {
	}

	start := time.Now()
	err := l.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, time.Since(start) > 0, "Wait should block at least momentarily")
}

func TestLimiter_WaitRespectsContextCancellation(t *testing.T) {
	l := New(1) // capacity 1 token/min, refill effectively negligible
	for l.Allow() {
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_DefaultsWhenPerMinuteNonPositive(t *testing.T) {
	l := New(0)
	assert.True(t, l.Allow(), "non-positive perMinute should fall back to a usable default")
}

func TestLimiter_Stats(t *testing.T) {
	l := New(60)
	s := l.Stats()
	assert.Equal(t, s.Capacity, s.Tokens, "a fresh limiter should start at full capacity")
	assert.Zero(t, s.Waits)
}
