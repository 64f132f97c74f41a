// Package recipients manages the recipient directory from the command line.
package recipients

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/datastore"
	"github.com/tphakala/cropguard/internal/service"
)

// Command creates the recipients command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipients",
		Short: "List and edit the chats that receive detection requests",
	}

	cmd.AddCommand(
		listCommand(settings),
		addCommand(settings),
		promoteCommand(settings),
		activateCommand(settings, "deactivate", false),
		activateCommand(settings, "activate", true),
	)
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every recipient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(settings, func(repo datastore.RecipientRepository) error {
				list := repo.List
				if activeOnly {
					list = repo.Active
				}
				recs, err := list(cmd.Context())
				if err != nil {
					return err
				}
				return writeTable(cmd.OutOrStdout(), recs)
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only list active recipients")
	return cmd
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "add <chat-id> [name]",
		Short: "Enroll a chat, reactivating it if it exists",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return withRepository(settings, func(repo datastore.RecipientRepository) error {
				created, err := repo.Enroll(cmd.Context(), chatID, name)
				if err != nil {
					return err
				}
				if admin {
					if err := repo.SetRole(cmd.Context(), chatID, datastore.RoleAdmin); err != nil {
						return err
					}
				}
				verb := "reactivated"
				if created {
					verb = "enrolled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", chatID, verb)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "Give the recipient the admin role")
	return cmd
}

func promoteCommand(settings *conf.Settings) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "promote <chat-id>",
		Short: "Change the role of a recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			r, ok := datastore.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q, want user or admin", role)
			}
			return withRepository(settings, func(repo datastore.RecipientRepository) error {
				return updateAndReport(cmd.Context(), cmd.OutOrStdout(), repo, chatID, func(ctx context.Context) error {
					return repo.SetRole(ctx, chatID, r)
				})
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(datastore.RoleAdmin), "Role to assign (user or admin)")
	return cmd
}

func activateCommand(settings *conf.Settings, use string, active bool) *cobra.Command {
	short := "Stop sending requests to a recipient"
	if active {
		short = "Resume sending requests to a recipient"
	}
	return &cobra.Command{
		Use:   use + " <chat-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			return withRepository(settings, func(repo datastore.RecipientRepository) error {
				return updateAndReport(cmd.Context(), cmd.OutOrStdout(), repo, chatID, func(ctx context.Context) error {
					return repo.SetActive(ctx, chatID, active)
				})
			})
		},
	}
}

func updateAndReport(ctx context.Context, w io.Writer, repo datastore.RecipientRepository, chatID int64, update func(context.Context) error) error {
	if err := update(ctx); err != nil {
		return err
	}
	rec, err := repo.Get(ctx, chatID)
	if err != nil {
		return err
	}
	return writeTable(w, []datastore.Recipient{*rec})
}

func withRepository(settings *conf.Settings, fn func(datastore.RecipientRepository) error) error {
	db, err := service.OpenDatabase(settings)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(datastore.NewRecipientRepository(db.DB()))
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q", s)
	}
	return id, nil
}

func writeTable(w io.Writer, recs []datastore.Recipient) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No recipients.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHAT ID\tNAME\tROLE\tACTIVE\tSINCE")
	for i := range recs {
		r := &recs[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", r.ChatID, r.Name, r.Role, r.Active, r.CreatedAt.Format(time.DateOnly))
	}
	return tw.Flush()
}
