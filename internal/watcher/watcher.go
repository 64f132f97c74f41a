package watcher

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/tphakala/cropguard/internal/logger"
)

// DefaultInterval is the polling interval when none is configured.
const DefaultInterval = time.Second

// Config controls a Watcher.
type Config struct {
	Dir      string
	Interval time.Duration
	// FSNotify triggers a scan as soon as the kernel reports a write.
	// Polling continues either way.
	FSNotify bool
	Clock    clockwork.Clock
	Logger   logger.Logger
}

// Watcher produces restartable streams of changes for one directory.
type Watcher struct {
	dir      string
	interval time.Duration
	fsnotify bool
	clock    clockwork.Clock
	log      logger.Logger
}

// New creates a Watcher. Zero values in cfg get defaults.
func New(cfg Config) *Watcher {
	w := &Watcher{
		dir:      cfg.Dir,
		interval: cfg.Interval,
		fsnotify: cfg.FSNotify,
		clock:    cfg.Clock,
		log:      cfg.Logger,
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if w.clock == nil {
		w.clock = clockwork.NewRealClock()
	}
	if w.log == nil {
		w.log = GetLogger()
	}
	return w
}

// Watch starts a new change stream. Each call uses a fresh Scanner, so the
// first scan of every stream is a baseline. The channel is closed when ctx is
// cancelled; scan failures are logged and retried on the next interval.
func (w *Watcher) Watch(ctx context.Context) <-chan Change {
	out := make(chan Change)
	go w.run(ctx, out)
	return out
}

func (w *Watcher) run(ctx context.Context, out chan<- Change) {
	defer close(out)

	scanner := NewScanner(w.dir)
	nudges := w.startNotify(ctx)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	failing := false
	scan := func() bool {
		changes, err := scanner.Scan()
		if err != nil {
			// Log once per outage instead of every interval.
			if !failing {
				w.log.Warn("directory scan failed, will retry",
					logger.String("dir", w.dir),
					logger.Error(err))
			}
			failing = true
			return true
		}
		if failing {
			w.log.Info("directory scan recovered", logger.String("dir", w.dir))
			failing = false
		}
		for _, c := range changes {
			select {
			case out <- c:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	if !scan() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		case <-nudges:
		}
		if !scan() {
			return
		}
	}
}

// startNotify returns a channel that receives a value whenever fsnotify sees
// the directory change. A nil channel (never ready) is returned when fsnotify
// is disabled or unavailable.
func (w *Watcher) startNotify(ctx context.Context) <-chan struct{} {
	if !w.fsnotify {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Info("fsnotify unavailable, polling only", logger.Error(err))
		return nil
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		w.log.Info("cannot watch directory with fsnotify, polling only",
			logger.String("dir", w.dir),
			logger.Error(err))
		return nil
	}

	nudges := make(chan struct{}, 1)
	go func() {
		defer func() { _ = fw.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
					continue
				}
				select {
				case nudges <- struct{}{}:
				default:
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.log.Debug("fsnotify error", logger.Error(err))
			}
		}
	}()
	return nudges
}
