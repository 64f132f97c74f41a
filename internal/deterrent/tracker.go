package deterrent

import (
	"sync"

	"github.com/tphakala/cropguard/internal/detection"
)

// DedupTracker remembers the last Detected count acted upon per category.
// It starts at zero for every category and is not persisted.
type DedupTracker struct {
	mu   sync.Mutex
	last map[detection.Category]int64
}

// NewDedupTracker returns a tracker with every category at zero.
func NewDedupTracker() *DedupTracker {
	return &DedupTracker{last: make(map[detection.Category]int64)}
}

// Claim records count for c and reports whether it differed from the
// previous value. Exactly one of several concurrent claims of the same new
// value wins.
func (t *DedupTracker) Claim(c detection.Category, count int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last[c] == count {
		return false
	}
	t.last[c] = count
	return true
}

// Last returns the last claimed count for c.
func (t *DedupTracker) Last(c detection.Category) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last[c]
}
