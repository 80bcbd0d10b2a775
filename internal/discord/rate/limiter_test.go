package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveSpacesSlots(t *testing.T) {
	t.Parallel()

	limiter := New(time.Second, 0)
	now := time.Now()
	limiter.nextSlot = now

	assert.Equal(t, time.Duration(0), limiter.reserve(now))
	assert.Equal(t, time.Second, limiter.reserve(now))
	assert.Equal(t, 2*time.Second, limiter.reserve(now))

	// An idle limiter does not accumulate burst credit
	later := now.Add(time.Minute)
	assert.Equal(t, time.Duration(0), limiter.reserve(later))
}

func TestJitterBounds(t *testing.T) {
	t.Parallel()

	limiter := New(time.Second, 200*time.Millisecond)

	for range 100 {
		j := limiter.jitter()
		assert.GreaterOrEqual(t, j, -200*time.Millisecond)
		assert.Less(t, j, 200*time.Millisecond)
	}
}

func TestWaitForNextSlotCancelled(t *testing.T) {
	t.Parallel()

	limiter := New(time.Hour, 0)
	require.NoError(t, limiter.WaitForNextSlot(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	err := limiter.WaitForNextSlot(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
