// Package bot turns inbound chat traffic into actions: replies go to the
// confirmation resolver and slash commands are dispatched to handlers.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/cropguard/internal/datastore"
	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/hardware"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/messaging"
)

// StatsSource provides the counter snapshot for /stats.
type StatsSource interface {
	Snapshot(ctx context.Context) (detection.Snapshot, error)
}

// ReplyHandler consumes answers to confirmation requests.
type ReplyHandler interface {
	HandleReply(ctx context.Context, reply messaging.Reply) error
}

// HostInfoFunc renders the /info text.
type HostInfoFunc func(ctx context.Context) (string, error)

// Config wires the dispatcher to the rest of the system. Bank, Sensor and
// DatabasePath are optional; the commands that need them answer with an
// explanation when they are missing.
type Config struct {
	Messenger  messaging.Messenger
	Recipients datastore.RecipientRepository
	Stats      StatsSource
	Replies    ReplyHandler
	Bank       *hardware.Bank
	Sensor     hardware.Sensor

	// DatabasePath is the SQLite file sent by /stats_db; empty for MySQL.
	DatabasePath string
	// Checkpoint flushes the SQLite WAL before the file is sent.
	Checkpoint func() error

	ArchiveDir string
	ExportDir  string
	AutoEnroll bool
	HostInfo   HostInfoFunc

	Clock    clockwork.Clock
	Location *time.Location
	Logger   logger.Logger
}

type handlerFunc func(ctx context.Context, cmd messaging.Command) error

type command struct {
	admin bool
	run   handlerFunc
}

// Dispatcher routes updates from a Messenger.
type Dispatcher struct {
	cfg      Config
	log      logger.Logger
	commands map[string]command
}

// New returns a Dispatcher for cfg.
func New(cfg Config) *Dispatcher {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}
	if cfg.HostInfo == nil {
		cfg.HostInfo = func(ctx context.Context) (string, error) {
			return HostInfo(ctx, cfg.ArchiveDir)
		}
	}
	d := &Dispatcher{cfg: cfg, log: cfg.Logger}
	d.commands = map[string]command{
		"start": {run: d.start},
		"stop":  {run: d.stop},
		"help":  {run: d.help},
		"stats": {run: d.stats},

		"stats_db": {admin: true, run: d.statsDB},
		"users":    {admin: true, run: d.users},
		"export":   {admin: true, run: d.export},
		"light":    {admin: true, run: d.light},
		"buzzer":   {admin: true, run: d.buzzer},
		"info":     {admin: true, run: d.info},
	}
	return d
}

// Run handles updates until ctx is cancelled. Each update runs in its own
// goroutine so a slow export does not hold up replies; Run returns after
// all of them finish.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	d.log.Info("bot dispatcher started")
	updates := d.cfg.Messenger.Updates(ctx)
	for {
		select {
		case <-ctx.Done():
			d.log.Info("bot dispatcher stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Go(func() { d.Handle(ctx, upd) })
		}
	}
}

// Handle processes one update. Failures are logged, never returned; the
// chat has already been told when something went wrong.
func (d *Dispatcher) Handle(ctx context.Context, upd messaging.Update) {
	switch {
	case upd.Reply != nil:
		if d.cfg.Replies == nil {
			return
		}
		if err := d.cfg.Replies.HandleReply(ctx, *upd.Reply); err != nil {
			d.log.Warn("reply not applied",
				logger.String("handle", upd.Reply.Handle.String()),
				logger.Error(err))
		}
	case upd.Command != nil:
		if err := d.dispatch(ctx, *upd.Command); err != nil {
			d.log.Warn("command failed",
				logger.String("command", upd.Command.Name),
				logger.Int64("chat_id", int64(upd.Command.From)),
				logger.Error(err))
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd messaging.Command) error {
	name := strings.ToLower(strings.TrimPrefix(cmd.Name, "/"))
	c, ok := d.commands[name]
	if !ok {
		return d.reply(ctx, cmd.From, textUnknownCommand)
	}
	if c.admin {
		admin, err := d.isAdmin(ctx, cmd.From)
		if err != nil {
			return err
		}
		if !admin {
			d.log.Debug("admin command from non-admin ignored",
				logger.String("command", name),
				logger.Int64("chat_id", int64(cmd.From)))
			return nil
		}
	}
	return c.run(ctx, cmd)
}

func (d *Dispatcher) isAdmin(ctx context.Context, chat messaging.RecipientID) (bool, error) {
	rec, err := d.cfg.Recipients.Get(ctx, int64(chat))
	if errors.Is(err, datastore.ErrRecipientNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.IsAdmin() && rec.Active, nil
}

func (d *Dispatcher) reply(ctx context.Context, to messaging.RecipientID, text string) error {
	return d.cfg.Messenger.Notify(ctx, to, text)
}

// PromoteAdmins enrolls every configured admin chat and gives it the admin role.
func PromoteAdmins(ctx context.Context, repo datastore.RecipientRepository, ids []int64) error {
	var errs []error
	for _, id := range ids {
		if _, err := repo.Enroll(ctx, id, ""); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := repo.SetRole(ctx, id, datastore.RoleAdmin); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
