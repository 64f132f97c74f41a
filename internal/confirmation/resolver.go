// Package confirmation tracks the requests of every fan-out and turns
// recipient replies, or the lack of them, into exactly one terminal
// counter increment per detection.
package confirmation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/messaging"
)

const (
	// DefaultWindow is how long recipients have to answer.
	DefaultWindow = 60 * time.Second
	// DefaultResolvedTTL is how long answered and expired handles are remembered.
	DefaultResolvedTTL = time.Hour
)

// Counter is the part of the counter store the resolver needs.
type Counter interface {
	Increment(ctx context.Context, outcome detection.Outcome, category detection.Category) error
}

// Config configures a Resolver.
type Config struct {
	Window      time.Duration
	ResolvedTTL time.Duration
	Clock       clockwork.Clock
	Logger      logger.Logger
	// OnResolved runs after the terminal outcome of a fan-out has been counted.
	OnResolved func(ev detection.Event, outcome detection.Outcome)
}

// Resolver owns every open fan-out. It is safe for concurrent use.
type Resolver struct {
	counter   Counter
	messenger messaging.Messenger
	clock     clockwork.Clock
	window    time.Duration
	log       logger.Logger
	onResolve func(detection.Event, detection.Outcome)

	// ctx bounds expiry side effects; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	pending  map[messaging.Handle]*FanOut
	fanOuts  map[uuid.UUID]*FanOut
	resolved *cache.Cache
	closed   bool
}

// NewResolver creates a Resolver incrementing counter and talking to
// recipients through messenger.
func NewResolver(counter Counter, messenger messaging.Messenger, cfg Config) *Resolver {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.ResolvedTTL <= 0 {
		cfg.ResolvedTTL = DefaultResolvedTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		counter:   counter,
		messenger: messenger,
		clock:     cfg.Clock,
		window:    cfg.Window,
		log:       cfg.Logger,
		onResolve: cfg.OnResolved,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[messaging.Handle]*FanOut),
		fanOuts:   make(map[uuid.UUID]*FanOut),
		// No janitor goroutine; expired entries are purged when fan-outs settle.
		resolved: cache.New(cfg.ResolvedTTL, 0),
	}
}

// Begin opens a fan-out for ev. Requests are added with FanOut.Add and the
// window starts with FanOut.Arm.
func (r *Resolver) Begin(ev detection.Event) *FanOut {
	fo := &FanOut{
		ID:       uuid.New(),
		Event:    ev,
		r:        r,
		requests: make(map[messaging.Handle]State),
	}
	r.mu.Lock()
	if !r.closed {
		r.fanOuts[fo.ID] = fo
	}
	r.mu.Unlock()
	return fo
}

// State returns the state of a handle. Resolved handles are remembered for
// the configured TTL.
func (r *Resolver) State(h messaging.Handle) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(h)
}

func (r *Resolver) stateLocked(h messaging.Handle) (State, bool) {
	if fo, ok := r.pending[h]; ok {
		return fo.requests[h], true
	}
	if v, ok := r.resolved.Get(h.String()); ok {
		return v.(State), true
	}
	return 0, false
}

// Pending returns the number of requests awaiting an answer.
func (r *Resolver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Open returns the number of fan-outs whose window has not closed.
func (r *Resolver) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fanOuts)
}

// HandleReply applies a recipient's answer.
//
// The first answer of a fan-out counts Correct or Incorrect; later answers
// are thanked but not counted. Replies to requests that are no longer
// pending only get an acknowledgement.
func (r *Resolver) HandleReply(ctx context.Context, reply messaging.Reply) error {
	log := r.log.With(logger.String("handle", reply.Handle.String()))

	correct, name, err := messaging.ParseCallbackData(reply.Data)
	if err != nil {
		log.Warn("ignoring malformed reply", logger.String("data", reply.Data))
		r.ack(ctx, reply, "", false)
		return errors.New(err).
			Component("confirmation").
			Category(errors.CategoryValidation).
			Context("data", reply.Data).
			Build()
	}
	category, ok := detection.ParseCategory(name)
	if !ok {
		err := errors.New(detection.ErrUnknownCategory).
			Component("confirmation").
			Category(errors.CategoryUnknownCategory).
			Context("category", name).
			Build()
		log.Warn("reply names an unknown category, leaving request pending",
			logger.String("category", name))
		r.ack(ctx, reply, "", false)
		return err
	}
	outcome := detection.Incorrect
	if correct {
		outcome = detection.Correct
	}

	r.mu.Lock()
	fo, ok := r.pending[reply.Handle]
	if !ok {
		prior, known := r.stateLocked(reply.Handle)
		r.mu.Unlock()
		text := ""
		if known {
			log.Debug("reply for resolved request", logger.String("state", prior.String()))
			if prior == Expired {
				text = messaging.LateReplyText
			}
		} else {
			log.Debug("reply for unknown request")
		}
		r.ack(ctx, reply, text, false)
		return nil
	}
	fo.requests[reply.Handle] = Answered
	delete(r.pending, reply.Handle)
	r.resolved.SetDefault(reply.Handle.String(), Answered)
	first := !fo.settled
	fo.settled = true
	r.mu.Unlock()

	if first {
		r.count(ctx, fo.Event, outcome, category)
		log.Info("detection confirmed",
			logger.String("fanout_id", fo.ID.String()),
			logger.String("outcome", outcome.String()),
			logger.String("category", category.String()))
	} else {
		log.Debug("additional answer not counted", logger.String("fanout_id", fo.ID.String()))
	}

	r.ack(ctx, reply, messaging.ThanksText(correct), true)
	if err := r.messenger.ClearRequest(ctx, reply.Handle); err != nil {
		log.Warn("failed to remove answered request", logger.Error(err))
	}
	return nil
}

// Close stops every window timer and discards pending requests without
// counting them. It waits for expiries already running.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	discarded := len(r.pending)
	for _, fo := range r.fanOuts {
		if fo.timer != nil && fo.timer.Stop() {
			r.wg.Done()
		}
	}
	clear(r.fanOuts)
	clear(r.pending)
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	if discarded > 0 {
		r.log.Info("discarded pending requests on shutdown", logger.Int("count", discarded))
	}
}

// expire runs when a fan-out's window closes.
func (r *Resolver) expire(fo *FanOut) {
	defer r.wg.Done()

	r.mu.Lock()
	if r.closed || fo.expired {
		r.mu.Unlock()
		return
	}
	fo.expired = true
	var expired []messaging.Handle
	for h, st := range fo.requests {
		if st != Pending {
			continue
		}
		fo.requests[h] = Expired
		delete(r.pending, h)
		r.resolved.SetDefault(h.String(), Expired)
		expired = append(expired, h)
	}
	countNone := !fo.settled
	fo.settled = true
	delete(r.fanOuts, fo.ID)
	r.resolved.DeleteExpired()
	r.mu.Unlock()

	ctx := r.ctx
	for _, h := range expired {
		if err := r.messenger.ClearRequest(ctx, h); err != nil {
			r.log.Warn("failed to remove expired request", logger.String("handle", h.String()), logger.Error(err))
		}
		if err := r.messenger.Notify(ctx, h.Recipient, messaging.ExpiryNotice); err != nil {
			r.log.Warn("failed to send expiry notice", logger.String("handle", h.String()), logger.Error(err))
		}
	}

	if countNone {
		r.count(ctx, fo.Event, detection.None, fo.Event.Category)
		r.log.Info("detection expired without an answer",
			logger.String("fanout_id", fo.ID.String()),
			logger.String("category", fo.Event.Category.String()),
			logger.Int("requests", len(fo.requests)))
	}
}

func (r *Resolver) count(ctx context.Context, ev detection.Event, outcome detection.Outcome, category detection.Category) {
	if err := r.counter.Increment(ctx, outcome, category); err != nil {
		r.log.Error("failed to count outcome",
			logger.String("outcome", outcome.String()),
			logger.String("category", category.String()),
			logger.Error(err))
	}
	if r.onResolve != nil {
		r.onResolve(ev, outcome)
	}
}

func (r *Resolver) ack(ctx context.Context, reply messaging.Reply, text string, alert bool) {
	if reply.CallbackID == "" {
		return
	}
	if err := r.messenger.Acknowledge(ctx, reply, text, alert); err != nil {
		r.log.Debug("failed to acknowledge reply", logger.Error(err))
	}
}
