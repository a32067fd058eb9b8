package transcription

import (
	"sync"
	"time"
)

const (
	progressFloor   = 10
	progressCeiling = 99
	progressSpan    = 90
)

// Percent maps decoded audio time onto 10..99. Unknown totals stay at 10.
func Percent(processed, total time.Duration) int {
	if total <= 0 || processed <= 0 {
		return progressFloor
	}
	p := progressFloor + int(int64(processed)*progressSpan/int64(total))
	if p > progressCeiling {
		return progressCeiling
	}
	if p < progressFloor {
		return progressFloor
	}
	return p
}

// progressTracker forwards only increasing percentages.
type progressTracker struct {
	mu   sync.Mutex
	last int
	fn   func(int)
}

func newProgressTracker(fn func(int)) *progressTracker {
	return &progressTracker{last: -1, fn: fn}
}

// report forwards p when it exceeds the last reported value and returns
// whether it did.
func (t *progressTracker) report(p int) bool {
	t.mu.Lock()
	if p <= t.last {
		t.mu.Unlock()
		return false
	}
	t.last = p
	t.mu.Unlock()
	if t.fn != nil {
		t.fn(p)
	}
	return true
}
