package confirmation

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/messaging"
)

// FanOut groups the requests sent for one detection event.
// Mutable fields are guarded by the resolver lock.
type FanOut struct {
	ID    uuid.UUID
	Event detection.Event

	r        *Resolver
	requests map[messaging.Handle]State
	timer    clockwork.Timer
	// settled is set once the terminal outcome has been chosen.
	settled bool
	expired bool
}

// Add records a delivered request. It is resolvable immediately.
func (fo *FanOut) Add(h messaging.Handle) {
	r := fo.r
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || fo.expired {
		return
	}
	fo.requests[h] = Pending
	r.pending[h] = fo
}

// Size returns the number of requests added so far.
func (fo *FanOut) Size() int {
	fo.r.mu.Lock()
	defer fo.r.mu.Unlock()
	return len(fo.requests)
}

// Arm starts the answer window. Calling it again has no effect.
func (fo *FanOut) Arm() {
	r := fo.r
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || fo.timer != nil || fo.expired {
		return
	}
	r.wg.Add(1)
	fo.timer = r.clock.AfterFunc(r.window, func() { r.expire(fo) })
}
