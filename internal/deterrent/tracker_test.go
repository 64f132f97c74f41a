package deterrent

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/tphakala/cropguard/internal/detection"
)

func TestDedupTrackerClaim(t *testing.T) {
	t.Parallel()
	tr := NewDedupTracker()

	assert.False(t, tr.Claim(detection.Pig, 0), "zero matches the initial state")
	assert.True(t, tr.Claim(detection.Pig, 3))
	assert.False(t, tr.Claim(detection.Pig, 3))
	assert.Equal(t, int64(3), tr.Last(detection.Pig))
	assert.Zero(t, tr.Last(detection.Nilgai))
}

// Claims equal the number of value changes in any observed sequence.
func TestDedupTrackerProperty(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		tr := NewDedupTracker()
		cats := detection.Categories()
		observed := rapid.SliceOf(rapid.Int64Range(0, 5)).Draw(rt, "counts")
		cat := rapid.SampledFrom(cats).Draw(rt, "category")

		var prev int64
		wins, changes := 0, 0
		for _, v := range observed {
			if v != prev {
				changes++
				prev = v
			}
			if tr.Claim(cat, v) {
				wins++
			}
		}
		if wins != changes {
			rt.Fatalf("claims %d, changes %d", wins, changes)
		}
	})
}

// Overlapping ticks reading the same delta act on it once.
func TestDedupTrackerConcurrentClaims(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		tr := NewDedupTracker()
		workers := rapid.IntRange(2, 16).Draw(rt, "workers")
		count := rapid.Int64Range(1, 1000).Draw(rt, "count")

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range workers {
			wg.Go(func() {
				if tr.Claim(detection.Jackal, count) {
					wins.Add(1)
				}
			})
		}
		wg.Wait()
		if wins.Load() != 1 {
			rt.Fatalf("%d workers won the same claim", wins.Load())
		}
	})
}
