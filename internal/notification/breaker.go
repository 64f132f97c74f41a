package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/observability/metrics"
)

// CircuitState is exported as a gauge value, keep the order stable.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateHalfOpen
	StateOpen
)

var circuitStateNames = [...]string{"closed", "half-open", "open"}

func (s CircuitState) String() string {
	if s < 0 || int(s) >= len(circuitStateNames) {
		return "unknown"
	}
	return circuitStateNames[s]
}

// ErrProviderSuspended is returned while a provider's breaker is open.
var ErrProviderSuspended = errors.Newf("provider suspended after repeated failures").
	Component("notification").
	Category(errors.CategoryNotification).
	Build()

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	// MaxFailures consecutive failures open the breaker.
	MaxFailures int
	// Cooldown is how long an open breaker waits before one trial call.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the production settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, Cooldown: 30 * time.Second}
}

// Breaker suspends a failing provider so one dead webhook does not delay
// every intruder alert by the full send timeout.
type Breaker struct {
	cfg      BreakerConfig
	clock    clockwork.Clock
	metrics  *metrics.NotificationMetrics
	provider string

	mu       sync.Mutex
	state    CircuitState
	failures int
	changed  time.Time
	probing  bool
}

// NewBreaker returns a closed breaker. clock and m may be nil.
func NewBreaker(cfg BreakerConfig, clock clockwork.Clock, m *metrics.NotificationMetrics, provider string) *Breaker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg.MaxFailures = max(cfg.MaxFailures, 1)
	m.SetCircuitState(provider, int(StateClosed))
	return &Breaker{cfg: cfg, clock: clock, metrics: m, provider: provider, changed: clock.Now()}
}

// Call runs fn unless the breaker is open and records its result.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return fmt.Errorf("provider %s skipped after %d failures: %w", b.provider, b.Failures(), err)
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clock.Since(b.changed) < b.cfg.Cooldown {
			return ErrProviderSuspended
		}
		b.transition(StateHalfOpen)
	}
	// Half-open lets a single trial call through.
	if b.probing {
		return ErrProviderSuspended
	}
	b.probing = true
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	switch {
	case err == nil:
		b.failures = 0
		b.transition(StateClosed)
	case errors.Is(err, context.Canceled):
		// The caller gave up; the provider did not fail.
	default:
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.cfg.MaxFailures {
			b.transition(StateOpen)
		}
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to CircuitState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.changed = b.clock.Now()
	b.metrics.SetCircuitState(b.provider, int(to))

	GetLogger().Info("provider breaker changed state",
		logger.String("provider", b.provider),
		logger.String("from", from.String()),
		logger.String("to", to.String()),
		logger.Int("consecutive_failures", b.failures))
}

func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
