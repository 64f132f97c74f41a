package confirmation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/messaging"
	"github.com/tphakala/cropguard/internal/testutil"
)

type plannedReply struct {
	recipient int
	correct   bool
}

// Every fan-out resolves to exactly one terminal outcome, whatever the
// interleaving of replies and window expiry.
func TestPropertyExactlyOneTerminalIncrement(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(t)
		defer h.resolver.Close()
		ctx := t.Context()
		categories := detection.Categories()

		n := rapid.IntRange(1, 6).Draw(rt, "fanouts")
		type plan struct {
			ev      detection.Event
			handles []messaging.Handle
			before  []plannedReply
			racing  []plannedReply
		}
		plans := make([]plan, n)

		for i := range plans {
			cat := categories[rapid.IntRange(0, len(categories)-1).Draw(rt, "category")]
			ev := detection.Event{Path: fmt.Sprintf("/ngl/%d/%s.jpg", i, cat), Category: cat}
			fo := h.resolver.Begin(ev)
			k := rapid.IntRange(0, 4).Draw(rt, "recipients")
			for r := range k {
				hd, err := h.messenger.SendRequest(ctx, messaging.RecipientID(r+1), messaging.Request{})
				require.NoError(rt, err)
				fo.Add(hd)
				plans[i].handles = append(plans[i].handles, hd)
			}
			fo.Arm()
			plans[i].ev = ev

			if k > 0 {
				replyGen := rapid.Custom(func(t *rapid.T) plannedReply {
					return plannedReply{
						recipient: rapid.IntRange(0, k-1).Draw(t, "recipient"),
						correct:   rapid.Bool().Draw(t, "correct"),
					}
				})
				plans[i].before = rapid.SliceOfN(replyGen, 0, 3).Draw(rt, "before")
				plans[i].racing = rapid.SliceOfN(replyGen, 0, 3).Draw(rt, "racing")
			}
		}

		// Replies applied before the window closes.
		for _, p := range plans {
			for _, rp := range p.before {
				require.NoError(rt, h.resolver.HandleReply(ctx, reply(p.handles[rp.recipient], rp.correct, p.ev.Category)))
			}
		}

		// Replies racing with expiry.
		var wg sync.WaitGroup
		for _, p := range plans {
			for _, rp := range p.racing {
				wg.Go(func() {
					_ = h.resolver.HandleReply(ctx, reply(p.handles[rp.recipient], rp.correct, p.ev.Category))
				})
			}
		}
		h.clock.Advance(testWindow)
		wg.Wait()

		outcomes := make(map[string]detection.Outcome, n)
		for range n {
			got := testutil.WaitForChannel(t, h.resolved, testutil.DefaultTestTimeout)
			_, dup := outcomes[got.ev.Path]
			require.False(rt, dup, "fan-out %s resolved twice", got.ev.Path)
			outcomes[got.ev.Path] = got.outcome
		}
		h.resolver.Close()
		testutil.AssertNoValue(t, h.resolved, time.Millisecond)
		require.Equal(rt, int64(n), h.counter.terminalTotal())

		for _, p := range plans {
			got := outcomes[p.ev.Path]
			switch {
			case len(p.before) > 0:
				want := detection.Incorrect
				if p.before[0].correct {
					want = detection.Correct
				}
				require.Equal(rt, want, got, p.ev.Path)
			case len(p.racing) == 0:
				require.Equal(rt, detection.None, got, p.ev.Path)
			}
		}
	})
}
