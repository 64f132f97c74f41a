// Package stats prints the outcome counters.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/datastore"
	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/service"
)

// Command creates the stats command.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the detection counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := load(cmd.Context(), settings)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			return writeTable(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func load(ctx context.Context, settings *conf.Settings) (detection.Snapshot, error) {
	db, err := service.OpenDatabase(settings)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return datastore.NewCounterStore(db.DB()).Snapshot(ctx)
}

// writeTable prints one row per category with a column per outcome.
func writeTable(w io.Writer, snap detection.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "Category\t")
	for _, o := range detection.Outcomes() {
		fmt.Fprintf(tw, "%s\t", o)
	}
	fmt.Fprintln(tw)

	totals := make(map[detection.Outcome]int64)
	for _, c := range detection.Categories() {
		fmt.Fprintf(tw, "%s\t", c)
		for _, o := range detection.Outcomes() {
			n := snap.Get(o, c)
			totals[o] += n
			fmt.Fprintf(tw, "%d\t", n)
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprint(tw, "Total\t")
	for _, o := range detection.Outcomes() {
		fmt.Fprintf(tw, "%d\t", totals[o])
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

func writeJSON(w io.Writer, snap detection.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
