// env.go - Environment variable configuration and validation for CropGuard
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "CROPGUARD_DEBUG", validateEnvBool},
		{"main.timezone", "CROPGUARD_TIMEZONE", validateEnvTimezone},

		{"watch.dir", "CROPGUARD_WATCH_DIR", validateEnvPath},
		{"watch.interval", "CROPGUARD_WATCH_INTERVAL", validateEnvDuration},

		// Secrets are usually injected this way instead of living in config.yaml
		{"telegram.token", "CROPGUARD_TELEGRAM_TOKEN", validateEnvToken},
		{"output.mysql.password", "CROPGUARD_MYSQL_PASSWORD", nil},
		{"mqtt.password", "CROPGUARD_MQTT_PASSWORD", nil},
		{"archive.upload.password", "CROPGUARD_UPLOAD_PASSWORD", nil},
		{"sentry.dsn", "CROPGUARD_SENTRY_DSN", validateEnvURL},

		{"mqtt.broker", "CROPGUARD_MQTT_BROKER", validateEnvURL},
		{"confirmation.window", "CROPGUARD_CONFIRMATION_WINDOW", validateEnvDuration},
		{"deterrent.interval", "CROPGUARD_DETERRENT_INTERVAL", validateEnvDuration},
		{"hardware.driver", "CROPGUARD_HARDWARE_DRIVER", validateEnvHardwareDriver},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value %q", value)
	}
	return nil
}

// validateEnvDuration accepts Go duration strings such as 90s or 1m30s
func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvTimezone(value string) error {
	if _, err := time.LoadLocation(value); err != nil {
		return fmt.Errorf("unknown timezone %q", value)
	}
	return nil
}

func validateEnvPath(value string) error {
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("path contains NUL byte")
	}
	return nil
}

// validateEnvToken checks the <bot id>:<secret> shape of a bot token without echoing it
func validateEnvToken(value string) error {
	id, secret, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || secret == "" {
		return fmt.Errorf("bot token must have the form <id>:<secret>")
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return fmt.Errorf("bot token id is not numeric")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid URL")
	}
	return nil
}

func validateEnvHardwareDriver(value string) error {
	switch value {
	case HardwareDriverGPIO, HardwareDriverMQTT, HardwareDriverLog:
		return nil
	}
	return fmt.Errorf("unknown hardware driver %q", value)
}
