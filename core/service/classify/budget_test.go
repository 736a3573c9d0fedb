package classify

import "testing"

func TestBudgetAllow(t *testing.T) {
	tests := []struct {
		name      string
		limit     float64
		spent     []float64
		estimated float64
		want      bool
	}{
		{"fresh budget", 0.50, nil, 0.002, true},
		{"exactly at limit", 0.01, []float64{0.006}, 0.004, true},
		{"over limit", 0.01, []float64{0.009}, 0.002, false},
		{"zero estimate on spent budget", 0.01, []float64{0.005}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBudget(tt.limit)
			for _, cost := range tt.spent {
				b.Add(cost)
			}
			if got := b.Allow(tt.estimated); got != tt.want {
				t.Errorf("Allow(%v) with spent %v of %v = %v, want %v",
					tt.estimated, b.Spent(), tt.limit, got, tt.want)
			}
		})
	}
}

func TestBudgetOverrunBoundedToOneCall(t *testing.T) {
	// Actual provider cost can exceed the per-call estimate. The overshoot is
	// then bounded by that single call: every later call is rejected.
	b := NewBudget(0.01)

	if !b.Allow(0.004) {
		t.Fatal("first call should fit a fresh budget")
	}
	b.Add(0.012) // billed far above the estimate

	if b.Allow(0.004) {
		t.Error("call allowed after spend passed the limit")
	}
	if b.Allow(0) {
		t.Error("zero-estimate call allowed after spend passed the limit")
	}
	if b.Calls() != 1 {
		t.Errorf("calls = %d, want 1", b.Calls())
	}
}
