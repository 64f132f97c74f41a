// Package cmd assembles the cropguard command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/cropguard/cmd/config"
	"github.com/tphakala/cropguard/cmd/export"
	"github.com/tphakala/cropguard/cmd/notify"
	"github.com/tphakala/cropguard/cmd/recipients"
	"github.com/tphakala/cropguard/cmd/run"
	"github.com/tphakala/cropguard/cmd/stats"
	"github.com/tphakala/cropguard/internal/buildinfo"
	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var configFile string
	var central *logger.CentralLogger

	rootCmd := &cobra.Command{
		Use:           "cropguard",
		Short:         "CropGuard wildlife detection alerts",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		run.Command(settings, info),
		stats.Command(settings),
		recipients.Command(settings),
		export.Command(settings),
		notify.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		central, err = initialize(settings, configFile)
		return err
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if central != nil {
			_ = central.Close()
		}
	}

	return rootCmd
}

// initialize loads the configuration and installs the global logger. Flags
// bound to viper keys take precedence over the config file.
func initialize(settings *conf.Settings, configFile string) (*logger.CentralLogger, error) {
	if configFile != "" {
		conf.SetConfigFile(configFile)
	}
	loaded, err := conf.Load()
	if err != nil {
		return nil, err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return central, nil
}

func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to config.yaml (default: search the standard locations)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
