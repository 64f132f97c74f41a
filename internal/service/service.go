// Package service assembles the detection pipeline and runs its long-lived
// tasks: the chat dispatcher, the directory watcher feeding fan-outs, the
// deterrent ticker and the telemetry endpoint.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/cropguard/internal/bot"
	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/confirmation"
	"github.com/tphakala/cropguard/internal/datastore"
	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/deterrent"
	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/fanout"
	"github.com/tphakala/cropguard/internal/hardware"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/messaging"
	"github.com/tphakala/cropguard/internal/mqtt"
	"github.com/tphakala/cropguard/internal/observability"
	"github.com/tphakala/cropguard/internal/observability/metrics"
	"github.com/tphakala/cropguard/internal/watcher"
)

// shutdownTimeout bounds switching the actuators off on exit.
const shutdownTimeout = 5 * time.Second

var errNotConnected = errors.NewStd("mqtt broker not connected")

// Counters is the counter store as used by the pipeline.
type Counters interface {
	confirmation.Counter
	deterrent.CounterReader
	bot.StatsSource
}

// Components are the collaborators of a Service. Settings, Counters,
// Recipients and Messenger are required; everything else is optional.
type Components struct {
	Settings   *conf.Settings
	Counters   Counters
	Recipients datastore.RecipientRepository
	Messenger  messaging.Messenger

	Bank    *hardware.Bank
	Sensor  hardware.Sensor
	MQTT    mqtt.Client
	Ledger  fanout.Ledger
	Alerter deterrent.Alerter
	Metrics *observability.Metrics
	Health  map[string]observability.HealthCheck

	// DatabasePath and Checkpoint serve /stats_db for SQLite.
	DatabasePath string
	Checkpoint   func() error

	// Clock drives confirmation windows and the deterrent. The watcher always
	// polls on wall-clock time.
	Clock  clockwork.Clock
	Logger logger.Logger

	// OnResolved is called after a fan-out's terminal outcome is counted.
	OnResolved func(ev detection.Event, outcome detection.Outcome)
}

// Service runs the assembled pipeline.
type Service struct {
	settings   *conf.Settings
	recipients datastore.RecipientRepository
	bank       *hardware.Bank
	log        logger.Logger

	watcher    *watcher.Watcher
	resolver   *confirmation.Resolver
	notifier   *fanout.Notifier
	tracker    *deterrent.DedupTracker
	controller *deterrent.Controller
	dispatcher *bot.Dispatcher
	endpoint   *observability.Endpoint
	metrics    *observability.Metrics

	closers []func()
}

// Assemble wires components into a Service without starting anything.
func Assemble(c Components) (*Service, error) {
	if c.Settings == nil || c.Counters == nil || c.Recipients == nil || c.Messenger == nil {
		return nil, errors.Newf("settings, counters, recipients and messenger are required").
			Component("service").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = GetLogger()
	}
	s := c.Settings
	loc := s.Location()

	svc := &Service{
		settings:   s,
		recipients: c.Recipients,
		bank:       c.Bank,
		log:        c.Logger,
		metrics:    c.Metrics,
	}

	detectionMetrics := detectionMetricsOf(c.Metrics)

	svc.watcher = watcher.New(watcher.Config{
		Dir:      s.Watch.Dir,
		Interval: s.Watch.Interval,
		FSNotify: s.Watch.FSNotify,
	})

	svc.resolver = confirmation.NewResolver(c.Counters, c.Messenger, confirmation.Config{
		Window:      s.Confirmation.Window,
		ResolvedTTL: s.Confirmation.ResolvedTTL,
		Clock:       c.Clock,
		OnResolved:  c.OnResolved,
	})
	if detectionMetrics != nil {
		if err := detectionMetrics.TrackPending(svc.resolver.Pending); err != nil {
			svc.log.Warn("pending gauge not registered", logger.Error(err))
		}
	}

	svc.notifier = fanout.NewNotifier(fanout.Config{
		Counter:   c.Counters,
		Resolver:  svc.resolver,
		Messenger: c.Messenger,
		Ledger:    c.Ledger,
		Sensor:    c.Sensor,
		MQTT:      c.MQTT,
		Topic:     s.MQTT.Topic,
		Location:  loc,
		Metrics:   detectionMetrics,
	})

	if c.Bank != nil {
		cfg, err := deterrentConfig(&s.Deterrent)
		if err != nil {
			return nil, err
		}
		cfg.Clock = c.Clock
		cfg.Alerter = c.Alerter
		cfg.Location = loc
		cfg.Metrics = detectionMetrics
		svc.tracker = deterrent.NewDedupTracker()
		svc.controller = deterrent.NewController(c.Counters, c.Bank, svc.tracker, cfg)
	}

	svc.dispatcher = bot.New(bot.Config{
		Messenger:    c.Messenger,
		Recipients:   c.Recipients,
		Stats:        c.Counters,
		Replies:      svc.resolver,
		Bank:         c.Bank,
		Sensor:       c.Sensor,
		DatabasePath: c.DatabasePath,
		Checkpoint:   c.Checkpoint,
		ArchiveDir:   s.Archive.Dir,
		ExportDir:    s.Archive.ExportDir,
		AutoEnroll:   s.Telegram.AutoEnroll,
		Clock:        c.Clock,
		Location:     loc,
	})

	if s.Telemetry.Enabled && c.Metrics != nil {
		opts := []observability.EndpointOption{observability.WithConfirmations(svc.resolver)}
		if log, ok := c.Ledger.(observability.DetectionLog); ok {
			opts = append(opts, observability.WithDetectionLog(log))
		}
		svc.endpoint = observability.NewEndpoint(s.Telemetry.Listen, c.Metrics, c.Counters, c.Health, opts...)
	}

	return svc, nil
}

// deterrentConfig converts the configured category names.
func deterrentConfig(d *conf.DeterrentSettings) (deterrent.Config, error) {
	cfg := deterrent.Config{
		Interval: d.Interval,
		Timings: deterrent.Timings{
			NuisanceBuzz: d.Timings.NuisanceBuzz,
			NuisanceTail: d.Timings.NuisanceTail,
			AlertHold:    d.Timings.AlertHold,
		},
	}
	for _, name := range d.Targets {
		cat, ok := detection.ParseCategory(name)
		if !ok {
			return cfg, errors.Newf("unknown deterrent target %q", name).
				Component("service").
				Category(errors.CategoryConfiguration).
				Build()
		}
		cfg.Targets = append(cfg.Targets, cat)
	}
	if d.AlertCategory != "" {
		cat, ok := detection.ParseCategory(d.AlertCategory)
		if !ok {
			return cfg, errors.Newf("unknown alert category %q", d.AlertCategory).
				Component("service").
				Category(errors.CategoryConfiguration).
				Build()
		}
		cfg.AlertCategory = cat
	}
	return cfg, nil
}

// Run starts every task and blocks until ctx is cancelled or a task fails.
// Fan-outs that are already sending finish; open confirmation windows are
// discarded and all actuators are switched off before Run returns.
func (s *Service) Run(ctx context.Context) error {
	var fanOuts sync.WaitGroup
	defer s.shutdown(&fanOuts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.dispatcher.Run(gctx) })
	g.Go(func() error {
		s.pipeline(gctx, &fanOuts)
		return nil
	})
	if s.controller != nil && s.settings.Deterrent.Enabled {
		g.Go(func() error { return s.controller.Run(gctx) })
	}
	if s.endpoint != nil {
		g.Go(func() error { return s.endpoint.Run(gctx) })
	}

	s.log.Info("service started",
		logger.String("watch_dir", s.settings.Watch.Dir),
		logger.Bool("deterrent", s.controller != nil && s.settings.Deterrent.Enabled),
		logger.Bool("telemetry", s.endpoint != nil))
	return g.Wait()
}

// pipeline turns watcher changes into fan-outs, each in its own goroutine.
func (s *Service) pipeline(ctx context.Context, fanOuts *sync.WaitGroup) {
	detectionMetrics := detectionMetricsOf(s.metrics)
	for change := range s.watcher.Watch(ctx) {
		detectionMetrics.IncrementFilesSeen()
		// The camera may still be writing, or the file may already be gone.
		ev, err := detection.EventFromFile(change.Path)
		if err != nil {
			s.log.Warn("skipping detection file",
				logger.String("path", change.Path),
				logger.Error(err))
			continue
		}
		// Sends already started are not cut short by shutdown.
		sendCtx := context.WithoutCancel(ctx)
		fanOuts.Go(func() {
			_, _ = s.HandleEvent(sendCtx, ev)
		})
	}
}

// HandleEvent fans ev out to the currently active recipients.
func (s *Service) HandleEvent(ctx context.Context, ev detection.Event) (fanout.Result, error) {
	active, err := s.recipients.Active(ctx)
	if err != nil {
		s.log.Error("recipient lookup failed, event dropped",
			logger.String("category", ev.Category.String()),
			logger.Error(err))
		return fanout.Result{}, err
	}
	ids := make([]messaging.RecipientID, 0, len(active))
	for i := range active {
		ids = append(ids, messaging.RecipientID(active[i].ChatID))
	}
	return s.notifier.Notify(ctx, ev, ids)
}

// AddCloser registers fn to run after shutdown, in reverse order.
func (s *Service) AddCloser(fn func()) {
	s.closers = append(s.closers, fn)
}

func (s *Service) shutdown(fanOuts *sync.WaitGroup) {
	fanOuts.Wait()
	s.resolver.Close()

	if s.bank != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.bank.AllOff(ctx); err != nil {
			s.log.Warn("actuators not switched off", logger.Error(err))
		}
		cancel()
	}

	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.log.Info("service stopped")
}

func detectionMetricsOf(m *observability.Metrics) *metrics.DetectionMetrics {
	if m == nil {
		return nil
	}
	return m.Detection
}
