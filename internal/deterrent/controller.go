// Package deterrent watches the Detected counters and runs a light and
// buzzer sequence once for every new detection of a nuisance or alert
// category.
package deterrent

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/hardware"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/observability/metrics"
)

// DefaultInterval is the counter polling period.
const DefaultInterval = 20 * time.Second

// Action is the response chosen for a category.
type Action int

const (
	ActionNone Action = iota
	ActionNuisance
	ActionAlert
)

func (a Action) String() string {
	switch a {
	case ActionNuisance:
		return metrics.SequenceNuisance
	case ActionAlert:
		return metrics.SequenceAlert
	default:
		return "none"
	}
}

// CounterReader reads one counter row.
type CounterReader interface {
	Row(ctx context.Context, outcome detection.Outcome) (map[detection.Category]int64, error)
}

// Alerter notifies administrators.
type Alerter interface {
	Alert(ctx context.Context, title, message string) error
}

// Timings are the hold durations of the sequences.
type Timings struct {
	NuisanceBuzz time.Duration // light and buzzer on
	NuisanceTail time.Duration // light on after the buzzer stops
	AlertHold    time.Duration // both lights on
}

// DefaultTimings returns the field-tested hold durations.
func DefaultTimings() Timings {
	return Timings{
		NuisanceBuzz: 2 * time.Second,
		NuisanceTail: time.Second,
		AlertHold:    5 * time.Second,
	}
}

// Config configures a Controller.
type Config struct {
	Interval      time.Duration
	Targets       []detection.Category
	AlertCategory detection.Category
	Timings       Timings
	Clock         clockwork.Clock
	Alerter       Alerter
	Location      *time.Location
	Metrics       *metrics.DetectionMetrics
	Logger        logger.Logger
}

// Claimed is one category whose new count was taken by a tick.
type Claimed struct {
	Category detection.Category
	Count    int64
	Action   Action
}

// Controller polls the Detected row and drives the actuators.
type Controller struct {
	counters CounterReader
	bank     *hardware.Bank
	tracker  *DedupTracker

	interval      time.Duration
	targets       []detection.Category
	alertCategory detection.Category
	timings       Timings
	clock         clockwork.Clock
	alerter       Alerter
	loc           *time.Location
	metrics       *metrics.DetectionMetrics
	log           logger.Logger
}

// NewController returns a controller. The tracker is owned by the
// controller from here on.
func NewController(counters CounterReader, bank *hardware.Bank, tracker *DedupTracker, cfg Config) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}
	return &Controller{
		counters:      counters,
		bank:          bank,
		tracker:       tracker,
		interval:      cfg.Interval,
		targets:       slices.Clone(cfg.Targets),
		alertCategory: cfg.AlertCategory,
		timings:       cfg.Timings,
		clock:         cfg.Clock,
		alerter:       cfg.Alerter,
		loc:           cfg.Location,
		metrics:       cfg.Metrics,
		log:           cfg.Logger,
	}
}

// Classify returns the action for c.
func (c *Controller) Classify(cat detection.Category) Action {
	switch {
	case slices.Contains(c.targets, cat):
		return ActionNuisance
	case c.alertCategory != "" && cat == c.alertCategory:
		return ActionAlert
	default:
		return ActionNone
	}
}

// Run ticks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.Info("deterrent controller started",
		logger.Duration("interval", c.interval),
		logger.Int("targets", len(c.targets)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			// Errors are logged inside Tick; the next tick retries.
			_, _ = c.Tick(ctx)
		}
	}
}

// Tick reads the Detected row, claims every changed count and runs the
// resulting sequences concurrently. It returns after all of them finish.
// A read failure leaves the tracker untouched.
func (c *Controller) Tick(ctx context.Context) ([]Claimed, error) {
	row, err := c.counters.Row(ctx, detection.Detected)
	if err != nil {
		c.log.Error("reading detected counters failed, tick skipped", logger.Error(err))
		return nil, err
	}

	var claimed []Claimed
	for _, cat := range detection.Categories() {
		count := row[cat]
		if c.tracker.Claim(cat, count) {
			claimed = append(claimed, Claimed{Category: cat, Count: count, Action: c.Classify(cat)})
		}
	}

	// Every claim is recorded before any actuator moves.
	var wg sync.WaitGroup
	for _, cl := range claimed {
		if cl.Action == ActionNone {
			continue
		}
		c.metrics.IncrementSequence(cl.Action.String())
		c.log.Info("deterrent sequence started",
			logger.String("category", cl.Category.String()),
			logger.Int64("count", cl.Count),
			logger.String("sequence", cl.Action.String()))
		switch cl.Action {
		case ActionNuisance:
			wg.Go(func() { c.nuisance(ctx) })
		case ActionAlert:
			wg.Go(func() { c.alert(ctx, cl) })
		}
	}
	wg.Wait()
	return claimed, nil
}

// nuisance: light1 and buzzer1 on, buzzer off after NuisanceBuzz, light
// off NuisanceTail later.
func (c *Controller) nuisance(ctx context.Context) {
	c.set(ctx, c.bank.Light1, true)
	c.set(ctx, c.bank.Buzzer1, true)
	c.hold(ctx, c.timings.NuisanceBuzz)
	c.set(ctx, c.bank.Buzzer1, false)
	c.hold(ctx, c.timings.NuisanceTail)
	c.set(ctx, c.bank.Light1, false)
}

// alert: both lights on for AlertHold, plus an admin notification.
func (c *Controller) alert(ctx context.Context, cl Claimed) {
	var wg sync.WaitGroup
	if c.alerter != nil {
		wg.Go(func() {
			msg := fmt.Sprintf("%s detected at %s (total %d)",
				cl.Category, c.clock.Now().In(c.loc).Format(time.DateTime), cl.Count)
			if err := c.alerter.Alert(ctx, "Intruder alert", msg); err != nil {
				c.log.Warn("admin alert failed", logger.Error(err))
			}
		})
	}

	c.set(ctx, c.bank.Light1, true)
	c.set(ctx, c.bank.Light2, true)
	c.hold(ctx, c.timings.AlertHold)
	c.set(ctx, c.bank.Light1, false)
	c.set(ctx, c.bank.Light2, false)
	wg.Wait()
}

// hold waits for d or until ctx is done.
func (c *Controller) hold(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-c.clock.After(d):
	case <-ctx.Done():
	}
}

// set switches a; off commands are sent even after ctx is cancelled so a
// sequence never leaves a device running.
func (c *Controller) set(ctx context.Context, a hardware.Actuator, on bool) {
	if a == nil {
		return
	}
	if !on {
		ctx = context.WithoutCancel(ctx)
	}
	if err := hardware.Switch(ctx, a, on); err != nil {
		c.metrics.IncrementActuatorErrors(a.Name())
		c.log.Warn("actuator switch failed",
			logger.String("actuator", a.Name()),
			logger.Bool("on", on),
			logger.Error(err))
	}
}

// GetLogger returns the deterrent module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("deterrent")
}
