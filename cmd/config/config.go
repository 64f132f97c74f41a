// Package config prints or writes the effective configuration.
package config

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/logger"
)

// Command creates the config command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(dumpCommand(settings))
	return cmd
}

func dumpCommand(settings *conf.Settings) *cobra.Command {
	var redact bool
	cmd := &cobra.Command{
		Use:   "dump [path]",
		Short: "Write the merged configuration as YAML to path, or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := *settings
			if redact {
				redactSecrets(&out)
			}
			if len(args) == 1 {
				return conf.SaveYAMLConfig(args[0], &out)
			}
			data, err := yaml.Marshal(&out)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&redact, "redact", true, "Mask tokens, passwords and DSNs")
	return cmd
}

const masked = "[REDACTED]"

// redactSecrets masks credentials in a copy of the settings. Slices are
// replaced, never modified in place.
func redactSecrets(s *conf.Settings) {
	mask := func(v *string) {
		if *v != "" {
			*v = masked
		}
	}
	mask(&s.Telegram.Token)
	mask(&s.Output.MySQL.Password)
	mask(&s.Archive.Upload.Password)
	mask(&s.MQTT.Password)
	mask(&s.Sentry.DSN)
	mask(&s.Hardware.Sensor.Key)

	urls := make([]string, len(s.Notification.URLs))
	for i, u := range s.Notification.URLs {
		urls[i] = logger.RedactSensitiveData(u)
	}
	s.Notification.URLs = urls
}
