package notify

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/notification"
	"github.com/tphakala/cropguard/internal/service"
)

// Command returns a cobra command that sends a test notification to the
// configured admin providers.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		typ     string
		prio    string
		title   string
		message string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test notification to the admin alert URLs",
		Long: `Send a notification through every shoutrrr URL in notification.urls.

Examples:
  cropguard notify --type=info --title="Test" --message="Hello"
  cropguard notify --type=alert --priority=critical --title="Intruder alert" --message="Person detected"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ntype, err := parseType(typ)
			if err != nil {
				return err
			}
			nprio, err := parsePriority(prio)
			if err != nil {
				return err
			}

			alerter, err := service.NewAlerter(settings, nil)
			if err != nil {
				return err
			}
			if !alerter.Enabled() {
				return errors.New("no notification URLs configured")
			}

			n := notification.NewNotification(ntype, nprio, title, message)
			if err := alerter.Send(cmd.Context(), n); err != nil {
				return fmt.Errorf("failed to send notification: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Notification sent: id=%s type=%s priority=%s\n", n.ID, n.Type, n.Priority)
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", "info", "Notification type: alert|error|info")
	cmd.Flags().StringVar(&prio, "priority", "low", "Notification priority: critical|high|medium|low")
	cmd.Flags().StringVar(&title, "title", "Test Notification", "Notification title")
	cmd.Flags().StringVar(&message, "message", "This is a test notification", "Notification message")

	return cmd
}

func parseType(s string) (notification.Type, error) {
	switch notification.Type(s) {
	case notification.TypeAlert, notification.TypeError, notification.TypeInfo:
		return notification.Type(s), nil
	default:
		return "", fmt.Errorf("invalid type: %s", s)
	}
}

func parsePriority(s string) (notification.Priority, error) {
	switch notification.Priority(s) {
	case notification.PriorityCritical, notification.PriorityHigh, notification.PriorityMedium, notification.PriorityLow:
		return notification.Priority(s), nil
	default:
		return "", fmt.Errorf("invalid priority: %s", s)
	}
}
