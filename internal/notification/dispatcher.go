package notification

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/observability/metrics"
)

// DefaultTimeout bounds one provider send.
const DefaultTimeout = 10 * time.Second

type dispatchTarget struct {
	provider Provider
	breaker  *Breaker
}

// Dispatcher sends each notification to every enabled provider in parallel.
type Dispatcher struct {
	targets []dispatchTarget
	timeout time.Duration
	metrics *metrics.NotificationMetrics
	prefix  string
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Prefix is prepended to titles, usually the installation name.
	Prefix  string
	Timeout time.Duration
	Breaker BreakerConfig
	Clock   clockwork.Clock
	Metrics *metrics.NotificationMetrics
}

// NewDispatcher validates every provider. A provider with a broken
// configuration fails construction so a typo is caught at startup.
func NewDispatcher(cfg DispatcherConfig, providers ...Provider) (*Dispatcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker = DefaultBreakerConfig()
	}

	d := &Dispatcher{timeout: cfg.Timeout, metrics: cfg.Metrics, prefix: cfg.Prefix}
	for _, p := range providers {
		if !p.Enabled() {
			continue
		}
		if err := p.Validate(); err != nil {
			return nil, errors.New(err).
				Component("notification").
				Category(errors.CategoryConfiguration).
				Context("provider", p.Name()).
				Build()
		}
		d.targets = append(d.targets, dispatchTarget{
			provider: p,
			breaker:  NewBreaker(cfg.Breaker, cfg.Clock, cfg.Metrics, p.Name()),
		})
	}
	return d, nil
}

// Enabled reports whether any provider is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.targets) > 0
}

// Send delivers n to every provider and waits for all of them. The
// returned error joins every provider failure.
func (d *Dispatcher) Send(ctx context.Context, n *Notification) error {
	if !d.Enabled() {
		return nil
	}
	msg := *n
	if d.prefix != "" && msg.Title != "" {
		msg.Title = d.prefix + ": " + msg.Title
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, t := range d.targets {
		wg.Go(func() {
			if err := d.sendOne(ctx, t, &msg); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (d *Dispatcher) sendOne(ctx context.Context, t dispatchTarget, n *Notification) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := t.breaker.Call(ctx, func(ctx context.Context) error {
		return t.provider.Send(ctx, n)
	})
	d.metrics.RecordDelivery(t.provider.Name(), time.Since(start), err)

	if err != nil {
		GetLogger().Warn("notification delivery failed",
			logger.String("provider", t.provider.Name()),
			logger.String("notification_id", n.ID),
			logger.Error(err))
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("provider", t.provider.Name()).
			Build()
	}
	GetLogger().Debug("notification delivered",
		logger.String("provider", t.provider.Name()),
		logger.String("type", string(n.Type)))
	return nil
}

// Alert sends a high priority alert.
func (d *Dispatcher) Alert(ctx context.Context, title, message string) error {
	return d.Send(ctx, NewNotification(TypeAlert, PriorityHigh, title, message))
}
