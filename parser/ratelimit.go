package parser

import (
	"sync"
	"time"
)

// Budget caps how many operations may start within any window of length
// period. Unlike a ticker it never blocks: callers ask with Allow and decide
// themselves how long to back off.
//
// Example usage:
//
//	budget := parser.NewBudget(60, time.Minute)
//
//	if !budget.Allow() {
//	    // ... back off and try again ...
//	}
//
// Parameters:
//   - calls: Maximum number of operations per period (e.g., 60)
//   - period: Length of the window (e.g., time.Minute)
type Budget struct {
	mu     sync.Mutex
	calls  int
	period time.Duration
	starts []time.Time // start times inside the current window, oldest first
	now    func() time.Time
}

// NewBudget creates a budget allowing calls operations per period.
// A non-positive calls or period yields an unlimited budget.
func NewBudget(calls int, period time.Duration) *Budget {
	if calls <= 0 || period <= 0 {
		return &Budget{now: time.Now}
	}

	return &Budget{
		calls:  calls,
		period: period,
		starts: make([]time.Time, 0, calls),
		now:    time.Now,
	}
}

// Allow reports whether one more operation fits in the budget right now
// and records its start if it does.
func (b *Budget) Allow() bool {
	if b.calls <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	// Drop starts that left the window
	expired := 0
	for expired < len(b.starts) && now.Sub(b.starts[expired]) >= b.period {
		expired++
	}
	if expired > 0 {
		b.starts = append(b.starts[:0], b.starts[expired:]...)
	}

	if len(b.starts) >= b.calls {
		return false
	}

	b.starts = append(b.starts, now)
	return true
}

// GetCalls returns the configured number of calls per period, 0 if unlimited.
func (b *Budget) GetCalls() int {
	return b.calls
}

// GetPeriod returns the configured window length.
func (b *Budget) GetPeriod() time.Duration {
	return b.period
}
