package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/cropguard/internal/backup"
	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/datastore"
	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/deterrent"
	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/hardware"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/messaging"
	"github.com/tphakala/cropguard/internal/observability"
	"github.com/tphakala/cropguard/internal/testutil"
)

type resolution struct {
	event   detection.Event
	outcome detection.Outcome
}

type scenario struct {
	settings  *conf.Settings
	counters  *datastore.GormCounterStore
	repo      *datastore.GormRecipientRepository
	messenger *testutil.FakeMessenger
	clock     *clockwork.FakeClock
	rec       *testutil.ActuatorRecorder
	ledger    *backup.Ledger
	resolved  chan resolution
	svc       *Service
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Main.Name = "Test Farm"
	s.Main.Timezone = "UTC"
	s.Watch.Dir = t.TempDir()
	s.Watch.Interval = 10 * time.Millisecond
	s.Confirmation.Window = 60 * time.Second
	s.Deterrent = conf.DeterrentSettings{
		Enabled:       true,
		Interval:      time.Hour,
		Targets:       []string{"Nilgai", "Pig", "Jackal"},
		AlertCategory: "Person",
		Timings: conf.DeterrentTimings{
			NuisanceBuzz: 2 * time.Second,
			NuisanceTail: time.Second,
			AlertHold:    5 * time.Second,
		},
	}
	s.Archive.Dir = t.TempDir()
	s.Archive.ExportDir = t.TempDir()
	s.Archive.CopyImages = true
	return s
}

func newScenario(t *testing.T, customize ...func(*Components)) *scenario {
	t.Helper()

	mgr, err := datastore.NewSQLiteManager(datastore.Config{Path: filepath.Join(t.TempDir(), "stats.db")})
	require.NoError(t, err)
	require.NoError(t, mgr.Initialize())
	t.Cleanup(func() { _ = mgr.Close() })

	sc := &scenario{
		settings:  testSettings(t),
		counters:  datastore.NewCounterStore(mgr.DB()),
		repo:      datastore.NewRecipientRepository(mgr.DB()),
		messenger: testutil.NewFakeMessenger(),
		clock:     clockwork.NewFakeClock(),
		resolved:  make(chan resolution, 4),
	}
	sc.rec = testutil.NewActuatorRecorder(sc.clock)
	sc.ledger = backup.NewLedger(sc.settings.Archive.Dir, true, time.UTC)

	comps := Components{
		Settings:   sc.settings,
		Counters:   sc.counters,
		Recipients: sc.repo,
		Messenger:  sc.messenger,
		Bank: &hardware.Bank{
			Light1:  sc.rec.Actuator(hardware.Light1),
			Light2:  sc.rec.Actuator(hardware.Light2),
			Buzzer1: sc.rec.Actuator(hardware.Buzzer1),
		},
		Ledger:       sc.ledger,
		DatabasePath: mgr.Path(),
		Checkpoint:   mgr.Checkpoint,
		Clock:        sc.clock,
		Logger:       logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC),
		OnResolved: func(ev detection.Event, outcome detection.Outcome) {
			sc.resolved <- resolution{ev, outcome}
		},
	}
	for _, fn := range customize {
		fn(&comps)
	}
	sc.svc, err = Assemble(comps)
	require.NoError(t, err)
	return sc
}

func (sc *scenario) enroll(t *testing.T, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		_, err := sc.repo.Enroll(t.Context(), id, "")
		require.NoError(t, err)
	}
}

// start runs the service and returns a stop function that waits for Run.
func (sc *scenario) start(t *testing.T) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- sc.svc.Run(ctx) }()

	// Let the watcher record its baseline before files appear.
	time.Sleep(50 * time.Millisecond)
	return func() {
		cancel()
		require.NoError(t, testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout))
	}
}

func (sc *scenario) drop(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(sc.settings.Watch.Dir, name), []byte("jpeg"), 0o600))
}

func (sc *scenario) waitRequests(t *testing.T, n int) []testutil.SentRequest {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(sc.messenger.Requests()) == n
	}, testutil.DefaultTestTimeout, testutil.PollInterval)
	return sc.messenger.Requests()
}

func (sc *scenario) snapshot(t *testing.T) detection.Snapshot {
	t.Helper()
	snap, err := sc.counters.Snapshot(t.Context())
	require.NoError(t, err)
	return snap
}

func (sc *scenario) blockUntil(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), testutil.DefaultTestTimeout)
	defer cancel()
	require.NoError(t, sc.clock.BlockUntilContext(ctx, n))
}

func (sc *scenario) tickAsync(ctx context.Context) <-chan []deterrent.Claimed {
	out := make(chan []deterrent.Claimed, 1)
	go func() {
		claimed, _ := sc.svc.controller.Tick(ctx)
		out <- claimed
	}()
	return out
}

// Two recipients both answer "incorrect" inside the window.
func TestScenarioBothRecipientsAnswerIncorrect(t *testing.T) {
	sc := newScenario(t)
	sc.enroll(t, 11, 12)
	stop := sc.start(t)

	sc.drop(t, "Jackal.jpg")
	reqs := sc.waitRequests(t, 2)
	for _, r := range reqs {
		assert.Contains(t, r.Request.Caption, "Detected as: Jackal")
		sc.messenger.Push(messaging.Update{Reply: &messaging.Reply{
			Handle:     r.Handle,
			Data:       messaging.CallbackData(false, detection.Jackal),
			CallbackID: r.Handle.String(),
		}})
	}

	res := testutil.WaitForChannel(t, sc.resolved, testutil.DefaultTestTimeout)
	assert.Equal(t, detection.Incorrect, res.outcome)
	assert.Equal(t, detection.Jackal, res.event.Category)
	require.Eventually(t, func() bool {
		return len(sc.messenger.Acks()) == 2
	}, testutil.DefaultTestTimeout, testutil.PollInterval)

	snap := sc.snapshot(t)
	assert.Equal(t, int64(1), snap.Get(detection.Detected, detection.Jackal))
	assert.Equal(t, int64(1), snap.Get(detection.Incorrect, detection.Jackal))
	assert.Zero(t, snap.Get(detection.Correct, detection.Jackal))
	assert.Zero(t, snap.Get(detection.None, detection.Jackal))

	entries, err := sc.ledger.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, detection.Jackal, entries[0].Category)

	stop()
	testutil.AssertNoValue(t, sc.resolved, 50*time.Millisecond)
}

// A single recipient never answers; the window expires and the deterrent
// raises the intruder alert once.
func TestScenarioUnansweredPersonTriggersAlertOnce(t *testing.T) {
	sc := newScenario(t)
	sc.enroll(t, 21)
	stop := sc.start(t)
	defer stop()

	sc.drop(t, "Person.jpg")
	sc.waitRequests(t, 1)

	// Deterrent ticker plus the confirmation window.
	sc.blockUntil(t, 2)
	sc.clock.Advance(sc.settings.Confirmation.Window)

	res := testutil.WaitForChannel(t, sc.resolved, testutil.DefaultTestTimeout)
	assert.Equal(t, detection.None, res.outcome)
	require.Eventually(t, func() bool {
		return slices.ContainsFunc(sc.messenger.Notices(), func(n testutil.Notice) bool {
			return n.Text == messaging.ExpiryNotice
		})
	}, testutil.DefaultTestTimeout, testutil.PollInterval)

	snap := sc.snapshot(t)
	assert.Equal(t, int64(1), snap.Get(detection.Detected, detection.Person))
	assert.Equal(t, int64(1), snap.Get(detection.None, detection.Person))

	done := sc.tickAsync(t.Context())
	sc.blockUntil(t, 2) // ticker plus the alert hold
	sc.clock.Advance(5 * time.Second)
	claimed := testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout)

	require.Equal(t, []deterrent.Claimed{{
		Category: detection.Person, Count: 1, Action: deterrent.ActionAlert,
	}}, claimed)
	assert.Equal(t, []bool{true, false}, sc.rec.SwitchesOf(hardware.Light1))
	assert.Equal(t, []bool{true, false}, sc.rec.SwitchesOf(hardware.Light2))
	assert.Empty(t, sc.rec.SwitchesOf(hardware.Buzzer1))

	again, err := sc.svc.controller.Tick(t.Context())
	require.NoError(t, err)
	assert.Empty(t, again)
}

// Pig and Nilgai change in the same tick; both sequences run side by side
// and both claims are recorded before either finishes.
func TestScenarioTwoCategoriesInOneTick(t *testing.T) {
	sc := newScenario(t)
	t.Cleanup(sc.svc.resolver.Close)

	require.NoError(t, sc.counters.Increment(t.Context(), detection.Detected, detection.Pig))
	require.NoError(t, sc.counters.Increment(t.Context(), detection.Detected, detection.Nilgai))

	done := sc.tickAsync(t.Context())
	sc.blockUntil(t, 2)
	assert.Equal(t, int64(1), sc.svc.tracker.Last(detection.Pig))
	assert.Equal(t, int64(1), sc.svc.tracker.Last(detection.Nilgai))
	assert.Equal(t, []bool{true, true}, sc.rec.SwitchesOf(hardware.Buzzer1))

	sc.clock.Advance(2 * time.Second)
	sc.blockUntil(t, 2)
	sc.clock.Advance(time.Second)
	claimed := testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout)

	require.Len(t, claimed, 2)
	for _, c := range claimed {
		assert.Equal(t, deterrent.ActionNuisance, c.Action)
	}
	assert.Equal(t, []bool{true, true, false, false}, sc.rec.SwitchesOf(hardware.Light1))
	assert.Equal(t, []bool{true, true, false, false}, sc.rec.SwitchesOf(hardware.Buzzer1))
}

// An empty or vanished file is not a detection: nothing is counted or sent.
func TestEmptyDetectionFileIsSkipped(t *testing.T) {
	sc := newScenario(t)
	sc.enroll(t, 31)
	stop := sc.start(t)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(sc.settings.Watch.Dir, "Pig.jpg"), nil, 0o600))
	// A valid file afterwards shows the pipeline has moved past the empty one.
	time.Sleep(50 * time.Millisecond)
	sc.drop(t, "Jackal.jpg")

	reqs := sc.waitRequests(t, 1)
	assert.Contains(t, reqs[0].Request.Caption, "Detected as: Jackal")

	snap := sc.snapshot(t)
	assert.Zero(t, snap.Get(detection.Detected, detection.Pig))
	assert.Equal(t, int64(1), snap.Get(detection.Detected, detection.Jackal))

	entries, err := sc.ledger.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, detection.Jackal, entries[0].Category)
}

func TestShutdownSwitchesActuatorsOff(t *testing.T) {
	sc := newScenario(t)
	stop := sc.start(t)
	require.NoError(t, sc.rec.Actuator(hardware.Buzzer1).On(t.Context()))

	stop()
	assert.False(t, sc.rec.IsOn(hardware.Buzzer1))
	assert.False(t, sc.rec.IsOn(hardware.Light1))
}

func TestHandleEventWithoutRecipientsCountsNone(t *testing.T) {
	sc := newScenario(t)
	t.Cleanup(sc.svc.resolver.Close)

	res, err := sc.svc.HandleEvent(t.Context(), detection.NewEvent("Monkey.jpg", time.Now()))
	require.NoError(t, err)
	assert.Zero(t, res.Delivered)

	out := testutil.WaitForChannel(t, sc.resolved, testutil.DefaultTestTimeout)
	assert.Equal(t, detection.None, out.outcome)
}

func TestTelemetryEndpointServesLedgerAndActivity(t *testing.T) {
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	sc := newScenario(t, func(c *Components) {
		c.Settings.Telemetry.Enabled = true
		c.Settings.Telemetry.Listen = "127.0.0.1:0"
		c.Metrics = m
	})
	t.Cleanup(sc.svc.resolver.Close)
	sc.enroll(t, 41)

	img := filepath.Join(t.TempDir(), "Goat.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))
	ev, err := detection.EventFromFile(img)
	require.NoError(t, err)
	_, err = sc.svc.HandleEvent(t.Context(), ev)
	require.NoError(t, err)

	get := func(path string) string {
		req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, path, http.NoBody)
		rec := httptest.NewRecorder()
		sc.svc.endpoint.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
		return rec.Body.String()
	}
	assert.Contains(t, get("/api/v1/stats"), `"confirmations":{"open_fanouts":1,"pending_requests":1}`)
	assert.Contains(t, get("/api/v1/detections"), `"category":"Goat"`)
}

func TestAssembleValidation(t *testing.T) {
	_, err := Assemble(Components{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestDeterrentConfigRejectsUnknownCategories(t *testing.T) {
	d := conf.DeterrentSettings{Targets: []string{"Pig", "Dragon"}}
	_, err := deterrentConfig(&d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dragon")

	d = conf.DeterrentSettings{Targets: []string{"pig"}, AlertCategory: "person"}
	cfg, err := deterrentConfig(&d)
	require.NoError(t, err)
	assert.Equal(t, []detection.Category{detection.Pig}, cfg.Targets)
	assert.Equal(t, detection.Person, cfg.AlertCategory)
}

func TestNewAlerterWithoutURLsIsDisabled(t *testing.T) {
	s := testSettings(t)
	d, err := NewAlerter(s, nil)
	require.NoError(t, err)
	assert.False(t, d.Enabled())
	require.NoError(t, d.Alert(t.Context(), "title", "message"))
}
