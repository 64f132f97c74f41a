// Package run provides the command that runs the detection service.
package run

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/cropguard/internal/buildinfo"
	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/service"
	"github.com/tphakala/cropguard/internal/telemetry"
)

// Command creates the run command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch for detections, notify recipients and drive the deterrent",
		Long: `Start the CropGuard service. New images in the watch directory are sent to
every active recipient for confirmation, counters are updated from their
answers and nuisance animals are scared off with lights and a buzzer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings, info)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// Run starts the service and blocks until ctx is cancelled.
func Run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) error {
	if err := telemetry.Init(settings, info, nil); err != nil {
		return err
	}
	defer telemetry.Flush()

	svc, err := service.New(ctx, settings, info)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	return svc.Run(ctx)
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("watch-dir", "", "Directory the detector writes images into")
	cmd.Flags().Bool("deterrent", true, "Drive lights and buzzer for detected animals")
	cmd.Flags().Bool("telemetry", false, "Enable the Prometheus and status endpoint")
	cmd.Flags().String("listen", "", "Listen address of the telemetry endpoint")

	bindings := map[string]string{
		"watch.dir":         "watch-dir",
		"deterrent.enabled": "deterrent",
		"telemetry.enabled": "telemetry",
		"telemetry.listen":  "listen",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
