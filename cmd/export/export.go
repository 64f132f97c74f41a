// Package export bundles the detection archive into a zip file.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/cropguard/internal/backup"
	"github.com/tphakala/cropguard/internal/backup/targets"
	"github.com/tphakala/cropguard/internal/conf"
)

// Command creates the export command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger and images to a zip archive",
		Long: `Create a timestamped zip of the archive directory in the export directory.
With --upload the archive is also stored on the configured upload target.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := Run(cmd.Context(), settings, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().Bool("upload", false, "Store the archive on the configured upload target")
	cmd.Flags().String("export-dir", "", "Directory the archive is written to")
	if err := viper.BindPFlag("archive.upload.enabled", cmd.Flags().Lookup("upload")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("archive.export_dir", cmd.Flags().Lookup("export-dir")); err != nil {
		panic(err)
	}
	return cmd
}

// Run exports the archive and uploads it when enabled. It returns the local
// path of the zip file.
func Run(ctx context.Context, settings *conf.Settings, now time.Time) (string, error) {
	path, err := backup.Export(ctx, settings.Archive.Dir, settings.Archive.ExportDir, now.In(settings.Location()))
	if err != nil {
		return "", err
	}
	if !settings.Archive.Upload.Enabled {
		return path, nil
	}

	target, err := targets.New(&settings.Archive.Upload)
	if err != nil {
		return path, err
	}
	if err := target.Validate(); err != nil {
		return path, err
	}
	if err := target.Store(ctx, path); err != nil {
		return path, fmt.Errorf("upload to %s failed: %w", target.Name(), err)
	}
	return path, nil
}
