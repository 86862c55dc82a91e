package updates

import "github.com/updatewatch/agent/internal/pk"

// ProgressTracker stores the most recent effective percentage for the active
// operation. It performs no weighting of its own; the coordinator remaps each
// stage's raw progress into a sub-range before storing when an operation
// spans multiple stages.
type ProgressTracker struct {
	percentage int
}

// Set stores a percentage, clamping anything outside 0..100 to the
// indeterminate sentinel.
func (t *ProgressTracker) Set(percentage int) {
	if percentage < 0 || percentage > 100 {
		percentage = pk.PercentageIndeterminate
	}
	t.percentage = percentage
}

// SetIndeterminate marks the progress as not estimable.
func (t *ProgressTracker) SetIndeterminate() {
	t.percentage = pk.PercentageIndeterminate
}

// Reset returns to zero progress at the start of an operation.
func (t *ProgressTracker) Reset() {
	t.percentage = 0
}

// Percentage returns 0..100, or pk.PercentageIndeterminate when the daemon
// cannot estimate.
func (t *ProgressTracker) Percentage() int {
	return t.percentage
}

// stageSpan remaps a stage's raw 0..100 progress into the [lo, hi] sub-range
// of the whole operation. Indeterminate passes through untouched.
func stageSpan(raw, lo, hi int) int {
	if raw < 0 || raw > 100 {
		return pk.PercentageIndeterminate
	}
	return lo + raw*(hi-lo)/100
}
