package updates

import (
	"testing"

	"github.com/updatewatch/agent/internal/pk"
)

func TestProgressTrackerStoresRawValue(t *testing.T) {
	var tracker ProgressTracker
	tracker.Set(42)
	if got := tracker.Percentage(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestProgressTrackerClampsToIndeterminate(t *testing.T) {
	var tracker ProgressTracker
	for _, raw := range []int{-1, 101, 250} {
		tracker.Set(raw)
		if got := tracker.Percentage(); got != pk.PercentageIndeterminate {
			t.Fatalf("Set(%d): expected indeterminate, got %d", raw, got)
		}
	}
}

func TestProgressTrackerReset(t *testing.T) {
	var tracker ProgressTracker
	tracker.SetIndeterminate()
	tracker.Reset()
	if got := tracker.Percentage(); got != 0 {
		t.Fatalf("expected 0 after reset, got %d", got)
	}
}

func TestStageSpanRemapping(t *testing.T) {
	cases := []struct {
		raw, lo, hi, want int
	}{
		{0, 0, 50, 0},
		{100, 0, 50, 50},
		{50, 0, 50, 25},
		{0, 50, 100, 50},
		{100, 50, 100, 100},
		{40, 50, 100, 70},
	}
	for _, tc := range cases {
		if got := stageSpan(tc.raw, tc.lo, tc.hi); got != tc.want {
			t.Fatalf("stageSpan(%d, %d, %d) = %d, want %d", tc.raw, tc.lo, tc.hi, got, tc.want)
		}
	}

	if got := stageSpan(pk.PercentageIndeterminate, 0, 50); got != pk.PercentageIndeterminate {
		t.Fatalf("expected indeterminate pass-through, got %d", got)
	}
}
