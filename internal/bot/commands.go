package bot

import (
	"context"
	"fmt"
	"os"

	"github.com/tphakala/cropguard/internal/backup"
	"github.com/tphakala/cropguard/internal/datastore"
	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/hardware"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/messaging"
)

func (d *Dispatcher) start(ctx context.Context, cmd messaging.Command) error {
	_, err := d.cfg.Recipients.Get(ctx, int64(cmd.From))
	known := err == nil
	if err != nil && !errors.Is(err, datastore.ErrRecipientNotFound) {
		return err
	}
	if !known && !d.cfg.AutoEnroll {
		return d.reply(ctx, cmd.From, fmt.Sprintf(textPrivateBot, cmd.From))
	}

	created, err := d.cfg.Recipients.Enroll(ctx, int64(cmd.From), cmd.UserName)
	if err != nil {
		_ = d.reply(ctx, cmd.From, textFailed)
		return err
	}
	if created {
		d.log.Info("recipient enrolled",
			logger.Int64("chat_id", int64(cmd.From)),
			logger.String("name", cmd.UserName))
		return d.reply(ctx, cmd.From, textWelcome)
	}
	return d.reply(ctx, cmd.From, textResumed)
}

func (d *Dispatcher) stop(ctx context.Context, cmd messaging.Command) error {
	err := d.cfg.Recipients.SetActive(ctx, int64(cmd.From), false)
	if errors.Is(err, datastore.ErrRecipientNotFound) {
		return d.reply(ctx, cmd.From, textNotSubscribed)
	}
	if err != nil {
		_ = d.reply(ctx, cmd.From, textFailed)
		return err
	}
	return d.reply(ctx, cmd.From, textPaused)
}

func (d *Dispatcher) help(ctx context.Context, cmd messaging.Command) error {
	admin, err := d.isAdmin(ctx, cmd.From)
	if err != nil {
		return err
	}
	text := textHelp
	if admin {
		text += "\n\n" + textAdminHelp
	}
	return d.reply(ctx, cmd.From, text)
}

func (d *Dispatcher) stats(ctx context.Context, cmd messaging.Command) error {
	snap, err := d.cfg.Stats.Snapshot(ctx)
	if err != nil {
		_ = d.reply(ctx, cmd.From, textFailed)
		return err
	}
	return d.reply(ctx, cmd.From, FormatStats(snap))
}

func (d *Dispatcher) statsDB(ctx context.Context, cmd messaging.Command) error {
	if d.cfg.DatabasePath == "" {
		return d.reply(ctx, cmd.From, textNoDatabaseFile)
	}
	if d.cfg.Checkpoint != nil {
		if err := d.cfg.Checkpoint(); err != nil {
			// The file is still usable, only the last writes may be missing.
			d.log.Warn("checkpoint before export failed", logger.Error(err))
		}
	}
	caption := messaging.DocumentCaption("Detection Statistics Database", d.now())
	if err := d.cfg.Messenger.SendDocument(ctx, cmd.From, d.cfg.DatabasePath, caption); err != nil {
		_ = d.reply(ctx, cmd.From, fmt.Sprintf("❌ Error exporting stats database: %v", err))
		return err
	}
	return nil
}

func (d *Dispatcher) users(ctx context.Context, cmd messaging.Command) error {
	list, err := d.cfg.Recipients.List(ctx)
	if err != nil {
		_ = d.reply(ctx, cmd.From, textFailed)
		return err
	}
	return d.reply(ctx, cmd.From, FormatRecipients(list))
}

func (d *Dispatcher) export(ctx context.Context, cmd messaging.Command) error {
	_ = d.reply(ctx, cmd.From, textExporting)

	now := d.now()
	path, err := backup.Export(ctx, d.cfg.ArchiveDir, d.cfg.ExportDir, now)
	if err != nil {
		_ = d.reply(ctx, cmd.From, textExportFailed)
		return err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			d.log.Warn("could not remove sent export", logger.String("path", path), logger.Error(err))
		}
	}()

	caption := messaging.DocumentCaption("Photo and detection backup", now)
	if err := d.cfg.Messenger.SendDocument(ctx, cmd.From, path, caption); err != nil {
		_ = d.reply(ctx, cmd.From, fmt.Sprintf("❌ Error creating backup: %v", err))
		return err
	}
	return nil
}

func (d *Dispatcher) light(ctx context.Context, cmd messaging.Command) error {
	on, ok := parseSwitch(cmd.Args)
	if !ok {
		return d.reply(ctx, cmd.From, "Usage: /light on|off")
	}
	if d.cfg.Bank == nil {
		return d.reply(ctx, cmd.From, textNoHardware)
	}
	var errs []error
	for _, name := range []string{hardware.Light1, hardware.Light2} {
		if err := d.cfg.Bank.SwitchByName(ctx, name, on); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		_ = d.reply(ctx, cmd.From, "❌ Error toggling lights!")
		return err
	}
	if on {
		return d.reply(ctx, cmd.From, "✅ Lights are now on!")
	}
	return d.reply(ctx, cmd.From, "❌ Lights are now off!")
}

func (d *Dispatcher) buzzer(ctx context.Context, cmd messaging.Command) error {
	on, ok := parseSwitch(cmd.Args)
	if !ok {
		return d.reply(ctx, cmd.From, "Usage: /buzzer on|off")
	}
	if d.cfg.Bank == nil {
		return d.reply(ctx, cmd.From, textNoHardware)
	}
	var errs []error
	for _, a := range d.cfg.Bank.Buzzers() {
		if err := hardware.Switch(ctx, a, on); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		_ = d.reply(ctx, cmd.From, "❌ Error toggling buzzer!")
		return err
	}
	if on {
		return d.reply(ctx, cmd.From, "✅ Buzzer is now on!")
	}
	return d.reply(ctx, cmd.From, "❌ Buzzer is now off!")
}

func (d *Dispatcher) info(ctx context.Context, cmd messaging.Command) error {
	text, err := d.cfg.HostInfo(ctx)
	if err != nil {
		// Partial information is still worth sending.
		d.log.Warn("host info incomplete", logger.Error(err))
	}
	if t := hardware.ReadOrNil(ctx, d.cfg.Sensor); t != nil {
		text += fmt.Sprintf("\n🌡️ Temperature: %.1f°C", *t)
	}
	if text == "" {
		text = textFailed
	}
	return d.reply(ctx, cmd.From, text)
}
