package deterrent

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/hardware"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/testutil"
)

type alertCall struct {
	title, message string
}

type fakeAlerter struct {
	mu    sync.Mutex
	calls []alertCall
}

func (f *fakeAlerter) Alert(_ context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, alertCall{title, message})
	return nil
}

func (f *fakeAlerter) Calls() []alertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]alertCall(nil), f.calls...)
}

type setup struct {
	clock    *clockwork.FakeClock
	counter  *testutil.MemCounter
	rec      *testutil.ActuatorRecorder
	tracker  *DedupTracker
	alerter  *fakeAlerter
	ctrl     *Controller
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	s := &setup{
		clock:   clockwork.NewFakeClock(),
		counter: testutil.NewMemCounter(),
		tracker: NewDedupTracker(),
		alerter: &fakeAlerter{},
	}
	s.rec = testutil.NewActuatorRecorder(s.clock)
	bank := &hardware.Bank{
		Light1:  s.rec.Actuator(hardware.Light1),
		Light2:  s.rec.Actuator(hardware.Light2),
		Buzzer1: s.rec.Actuator(hardware.Buzzer1),
	}
	s.ctrl = NewController(s.counter, bank, s.tracker, Config{
		Targets:       []detection.Category{detection.Nilgai, detection.Pig, detection.Jackal},
		AlertCategory: detection.Person,
		Clock:         s.clock,
		Alerter:       s.alerter,
		Location:      time.UTC,
		Logger:        logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC),
	})
	return s
}

// tickAsync runs Tick in the background so the test can drive the clock.
func (s *setup) tickAsync(ctx context.Context) <-chan []Claimed {
	done := make(chan []Claimed, 1)
	go func() {
		claimed, _ := s.ctrl.Tick(ctx)
		done <- claimed
	}()
	return done
}

// advanceHolds releases one hold step of n concurrent sequences.
func (s *setup) advanceHolds(t *testing.T, n int, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), testutil.DefaultTestTimeout)
	defer cancel()
	require.NoError(t, s.clock.BlockUntilContext(ctx, n))
	s.clock.Advance(d)
}

func TestNuisanceSequence(t *testing.T) {
	t.Parallel()
	s := newSetup(t)
	s.counter.Set(detection.Detected, detection.Pig, 1)
	start := s.clock.Now()

	done := s.tickAsync(t.Context())
	s.advanceHolds(t, 1, 2*time.Second)
	s.advanceHolds(t, 1, time.Second)
	claimed := testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout)

	require.Equal(t, []Claimed{{Category: detection.Pig, Count: 1, Action: ActionNuisance}}, claimed)

	sw := s.rec.Switches()
	require.Len(t, sw, 4)
	assert.Equal(t, testutil.Switch{Name: hardware.Light1, On: true, At: start}, sw[0])
	assert.Equal(t, testutil.Switch{Name: hardware.Buzzer1, On: true, At: start}, sw[1])
	assert.Equal(t, testutil.Switch{Name: hardware.Buzzer1, On: false, At: start.Add(2 * time.Second)}, sw[2])
	assert.Equal(t, testutil.Switch{Name: hardware.Light1, On: false, At: start.Add(3 * time.Second)}, sw[3])
	assert.Empty(t, s.alerter.Calls())
}

func TestAlertSequence(t *testing.T) {
	t.Parallel()
	s := newSetup(t)
	s.counter.Set(detection.Detected, detection.Person, 4)

	done := s.tickAsync(t.Context())
	s.advanceHolds(t, 1, 5*time.Second)
	claimed := testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout)

	require.Len(t, claimed, 1)
	assert.Equal(t, ActionAlert, claimed[0].Action)
	assert.Equal(t, []bool{true, false}, s.rec.SwitchesOf(hardware.Light1))
	assert.Equal(t, []bool{true, false}, s.rec.SwitchesOf(hardware.Light2))
	assert.Empty(t, s.rec.SwitchesOf(hardware.Buzzer1))

	calls := s.alerter.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Intruder alert", calls[0].title)
	assert.Contains(t, calls[0].message, "Person detected")
}

func TestUnchangedCountsDoNothing(t *testing.T) {
	t.Parallel()
	s := newSetup(t)
	s.counter.Set(detection.Detected, detection.Bird, 9)

	claimed, err := s.ctrl.Tick(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []Claimed{{Category: detection.Bird, Count: 9, Action: ActionNone}}, claimed)

	claimed, err = s.ctrl.Tick(t.Context())
	require.NoError(t, err)
	assert.Empty(t, claimed)
	assert.Empty(t, s.rec.Switches())
}

func TestReadFailureLeavesTracker(t *testing.T) {
	t.Parallel()
	s := newSetup(t)
	s.counter.Set(detection.Detected, detection.Dog, 2)
	s.counter.FailReads(fmt.Errorf("database is locked"))

	_, err := s.ctrl.Tick(t.Context())
	require.Error(t, err)
	assert.Zero(t, s.tracker.Last(detection.Dog))

	s.counter.FailReads(nil)
	claimed, err := s.ctrl.Tick(t.Context())
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, int64(2), s.tracker.Last(detection.Dog))
}

func TestActuatorFailureKeepsClaim(t *testing.T) {
	t.Parallel()
	s := newSetup(t)
	s.rec.Fail(hardware.Buzzer1, fmt.Errorf("relay stuck"))
	s.counter.Set(detection.Detected, detection.Jackal, 1)

	done := s.tickAsync(t.Context())
	s.advanceHolds(t, 1, 2*time.Second)
	s.advanceHolds(t, 1, time.Second)
	testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout)

	assert.Equal(t, int64(1), s.tracker.Last(detection.Jackal))
	assert.Equal(t, []bool{true, false}, s.rec.SwitchesOf(hardware.Light1), "sequence continued")

	claimed, err := s.ctrl.Tick(t.Context())
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

// Two nuisance categories changing in one tick run side by side.
func TestConcurrentSequencesInOneTick(t *testing.T) {
	t.Parallel()
	s := newSetup(t)
	s.counter.Set(detection.Detected, detection.Pig, 1)
	s.counter.Set(detection.Detected, detection.Nilgai, 1)

	done := s.tickAsync(t.Context())

	ctx, cancel := context.WithTimeout(t.Context(), testutil.DefaultTestTimeout)
	defer cancel()
	require.NoError(t, s.clock.BlockUntilContext(ctx, 2))
	// Both claims are recorded while the sequences are still running.
	assert.Equal(t, int64(1), s.tracker.Last(detection.Pig))
	assert.Equal(t, int64(1), s.tracker.Last(detection.Nilgai))
	assert.Equal(t, []bool{true, true}, s.rec.SwitchesOf(hardware.Buzzer1))
	s.clock.Advance(2 * time.Second)

	s.advanceHolds(t, 2, time.Second)
	claimed := testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout)

	require.Len(t, claimed, 2)
	assert.Equal(t, []bool{true, true, false, false}, s.rec.SwitchesOf(hardware.Light1))
}

func TestRunTicksOnInterval(t *testing.T) {
	t.Parallel()
	s := newSetup(t)
	s.counter.Set(detection.Detected, detection.Cat, 5)

	ctx, cancel := context.WithCancel(t.Context())
	stopped := make(chan error, 1)
	go func() { stopped <- s.ctrl.Run(ctx) }()

	s.advanceHolds(t, 1, DefaultInterval)
	require.Eventually(t, func() bool {
		return s.tracker.Last(detection.Cat) == 5
	}, testutil.DefaultTestTimeout, testutil.PollInterval)

	cancel()
	require.NoError(t, testutil.WaitForChannel(t, stopped, testutil.DefaultTestTimeout))
}

func TestClassify(t *testing.T) {
	t.Parallel()
	s := newSetup(t)
	assert.Equal(t, ActionNuisance, s.ctrl.Classify(detection.Nilgai))
	assert.Equal(t, ActionAlert, s.ctrl.Classify(detection.Person))
	assert.Equal(t, ActionNone, s.ctrl.Classify(detection.Peacock))
	assert.Equal(t, "nuisance", ActionNuisance.String())
	assert.Equal(t, "none", ActionNone.String())
}
