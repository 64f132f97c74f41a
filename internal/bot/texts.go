package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/cropguard/internal/datastore"
	"github.com/tphakala/cropguard/internal/detection"
)

const (
	textWelcome        = "👋 Welcome! You will receive a photo whenever a wild animal is detected on the farm."
	textResumed        = "✅ You will receive detection alerts again."
	textPaused         = "🔕 Alerts paused. Send /start to resume."
	textNotSubscribed  = "You are not subscribed. Send /start to subscribe."
	textPrivateBot     = "⛔ This bot is private. Ask an administrator to add chat ID %d."
	textUnknownCommand = "Unknown command. Send /help for the list of commands."
	textFailed         = "❌ Something went wrong, please try again later."
	textExporting      = "📦 Creating backup archive... Please wait."
	textExportFailed   = "❌ Failed to create backup archive."
	textNoDatabaseFile = "❌ The statistics database is not a local file."
	textNoHardware     = "❌ No actuators are configured."

	textHelp = "🆘 Commands:\n" +
		" /start - Receive detection alerts\n" +
		" /stop - Pause detection alerts\n" +
		" /stats - Detection statistics\n" +
		" /help - This message"

	textAdminHelp = "🛠️ Admin commands:\n" +
		" /stats_db - Export detection statistics database\n" +
		" /users - List recipients\n" +
		" /export - Export photo backups with detection details\n" +
		" /light on|off - Switch the lights\n" +
		" /buzzer on|off - Switch the buzzer\n" +
		" /info - Host information"
)

// FormatStats renders a snapshot with one block per outcome. Zero counts
// are left out.
func FormatStats(snap detection.Snapshot) string {
	var b strings.Builder
	b.WriteString("📊 Detection statistics")
	for _, o := range detection.Outcomes() {
		var parts []string
		var total int64
		for _, c := range detection.Categories() {
			if n := snap.Get(o, c); n > 0 {
				parts = append(parts, fmt.Sprintf("%s %d", c, n))
				total += n
			}
		}
		fmt.Fprintf(&b, "\n\n%s (%d)", o, total)
		if len(parts) > 0 {
			b.WriteString(": " + strings.Join(parts, ", "))
		}
	}
	return b.String()
}

// FormatRecipients lists recipients one per line.
func FormatRecipients(list []datastore.Recipient) string {
	if len(list) == 0 {
		return "No recipients."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Recipients (%d)", len(list))
	for i := range list {
		r := &list[i]
		state := "active"
		if !r.Active {
			state = "inactive"
		}
		name := r.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "\n%d %s [%s, %s]", r.ChatID, name, r.Role, state)
	}
	return b.String()
}

func parseSwitch(args []string) (on, ok bool) {
	if len(args) != 1 {
		return false, false
	}
	switch strings.ToLower(args[0]) {
	case "on":
		return true, true
	case "off":
		return false, true
	}
	return false, false
}

func (d *Dispatcher) now() time.Time {
	return d.cfg.Clock.Now().In(d.cfg.Location)
}
