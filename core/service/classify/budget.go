package classify

import "sync"

// Budget tracks AI spend for a single run. It is created per run (never
// reused across runs) so cost never leaks between runs.
type Budget struct {
	mu    sync.Mutex
	spent float64
	limit float64
	calls int
}

// NewBudget creates a budget with the given per-run limit in USD.
func NewBudget(limit float64) *Budget {
	return &Budget{limit: limit}
}

// Allow reports whether a call with the estimated cost fits the remaining
// budget. The estimate must be a conservative upper bound on the actual
// provider cost: Add records what was really billed, so one call can exceed
// the limit by at most its own excess over the estimate, and every call
// after that is rejected.
func (b *Budget) Allow(estimated float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent+estimated <= b.limit
}

// Add records the actual cost of a completed call.
func (b *Budget) Add(cost float64) {
	b.mu.Lock()
	b.spent += cost
	b.calls++
	b.mu.Unlock()
}

// Spent returns the accumulated cost.
func (b *Budget) Spent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// Calls returns how many billed calls were made.
func (b *Budget) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
