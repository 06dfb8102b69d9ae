package ratelimit

import "time"

// fixedWindow implements Limiter with a boundary-aligned fixed window counter.
//
// The window start is truncated to the configured window size, so all keys
// share the same boundaries and "after exactly maxRequests consumes the
// limiter refuses until the boundary passes" holds exactly.
type fixedWindow struct {
	windowStart time.Time
	window      time.Duration
	count       int
	maxRequests int
}

func newFixedWindow(window time.Duration, maxRequests int) (*fixedWindow, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	if maxRequests <= 0 {
		return nil, ErrInvalidLimit
	}
	return &fixedWindow{
		window:      window,
		maxRequests: maxRequests,
	}, nil
}

// resetIfExpired advances the window and zeroes the counter once now has
// passed the current window's end.
func (l *fixedWindow) resetIfExpired(now time.Time) {
	boundary := now.Truncate(l.window)
	if boundary.After(l.windowStart) {
		l.windowStart = boundary
		l.count = 0
	}
}

func (l *fixedWindow) CanConsume(now time.Time) bool {
	l.resetIfExpired(now)
	return l.count < l.maxRequests
}

func (l *fixedWindow) Consume(now time.Time) bool {
	l.resetIfExpired(now)
	if l.count >= l.maxRequests {
		return false
	}
	l.count++
	return true
}

func (l *fixedWindow) Remaining(now time.Time) int {
	l.resetIfExpired(now)
	return l.maxRequests - l.count
}

func (l *fixedWindow) NextReset(now time.Time) time.Duration {
	l.resetIfExpired(now)
	if l.count < l.maxRequests {
		return 0
	}
	return l.windowStart.Add(l.window).Sub(now)
}
