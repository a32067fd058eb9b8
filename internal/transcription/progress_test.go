package transcription

import (
	"testing"
	"time"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		processed, total time.Duration
		want             int
	}{
		{0, 100 * time.Second, 10},
		{30 * time.Second, 100 * time.Second, 37},
		{60 * time.Second, 100 * time.Second, 64},
		{90 * time.Second, 100 * time.Second, 91},
		{100 * time.Second, 100 * time.Second, 99},
		{150 * time.Second, 100 * time.Second, 99},
		{30 * time.Second, 0, 10},
		{-time.Second, 100 * time.Second, 10},
	}
	for _, tt := range tests {
		if got := Percent(tt.processed, tt.total); got != tt.want {
			t.Fatalf("Percent(%v, %v) = %d, want %d", tt.processed, tt.total, got, tt.want)
		}
	}
}

func TestProgressTrackerDropsRegressions(t *testing.T) {
	var seen []int
	tracker := newProgressTracker(func(p int) { seen = append(seen, p) })
	for _, p := range []int{10, 37, 20, 37, 64, 50, 100} {
		tracker.report(p)
	}
	want := []int{10, 37, 64, 100}
	if len(seen) != len(want) {
		t.Fatalf("seen %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen %v, want %v", seen, want)
		}
	}
}
