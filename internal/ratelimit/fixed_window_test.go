package ratelimit

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFixedWindow(t *testing.T) {
	t.Run("rejects non-positive window", func(t *testing.T) {
		_, err := newFixedWindow(0, 10)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		_, err := newFixedWindow(time.Minute, 0)
		assert.ErrorIs(t, err, ErrInvalidLimit)
	})
}

func TestFixedWindow_ExactBudgetPerWindow(t *testing.T) {
	// After exactly maxRequests consumes within one window, CanConsume is
	// false until the boundary passes, then true again.
	lim, err := newFixedWindow(time.Minute, 5)
	require.NoError(t, err)

	// Start mid-window to prove boundary alignment matters.
	now := time.Date(2026, 4, 1, 12, 0, 30, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.True(t, lim.CanConsume(now), "consume %d should fit", i)
		require.True(t, lim.Consume(now))
	}

	assert.False(t, lim.CanConsume(now))
	assert.False(t, lim.Consume(now))
	assert.Zero(t, lim.Remaining(now))

	// Still inside the same window 29s later.
	later := now.Add(29 * time.Second)
	assert.False(t, lim.CanConsume(later))

	// The boundary is 12:01:00, 30s after the first consume.
	afterBoundary := now.Add(30 * time.Second)
	assert.True(t, lim.CanConsume(afterBoundary))
	assert.Equal(t, 5, lim.Remaining(afterBoundary))
}

func TestFixedWindow_NextReset(t *testing.T) {
	lim, err := newFixedWindow(time.Minute, 1)
	require.NoError(t, err)

	now := time.Date(2026, 4, 1, 12, 0, 15, 0, time.UTC)

	assert.Zero(t, lim.NextReset(now), "no reset pending while budget remains")

	require.True(t, lim.Consume(now))
	assert.Equal(t, 45*time.Second, lim.NextReset(now))

	assert.Zero(t, lim.NextReset(now.Add(45*time.Second)))
}

func TestFixedWindow_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	// Property: a window never admits more than maxRequests, regardless of
	// when inside the window the requests land.
	properties.Property("never exceeds the window budget", prop.ForAll(
		func(maxRequests, attempts, offsetSec int) bool {
			lim, err := newFixedWindow(time.Minute, maxRequests)
			if err != nil {
				return false
			}
			now := base.Add(time.Duration(offsetSec) * time.Second)

			admitted := 0
			for i := 0; i < attempts; i++ {
				if lim.Consume(now) {
					admitted++
				}
			}
			want := attempts
			if maxRequests < want {
				want = maxRequests
			}
			return admitted == want
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 40),
		gen.IntRange(0, 59),
	))

	// Property: passing the boundary always restores the full budget.
	properties.Property("boundary restores full budget", prop.ForAll(
		func(maxRequests int) bool {
			lim, err := newFixedWindow(time.Minute, maxRequests)
			if err != nil {
				return false
			}
			now := base.Add(10 * time.Second)
			for i := 0; i < maxRequests; i++ {
				if !lim.Consume(now) {
					return false
				}
			}
			next := base.Add(time.Minute)
			return lim.Remaining(next) == maxRequests
		},
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
