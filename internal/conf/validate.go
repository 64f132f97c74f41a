// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/tphakala/cropguard/internal/detection"
)

// Hardware drivers
const (
	HardwareDriverGPIO = "gpio"
	HardwareDriverMQTT = "mqtt"
	HardwareDriverLog  = "log"
)

// Sensor sources
const (
	SensorSourceMQTT = "mqtt"
	SensorSourceHost = "host"
	SensorSourceNone = "none"
)

// Upload target types
const (
	UploadTypeLocal = "local"
	UploadTypeFTP   = "ftp"
	UploadTypeSFTP  = "sftp"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateMainSettings,
		validateWatchSettings,
		validateTelegramSettings,
		validateConfirmationSettings,
		validateDeterrentSettings,
		validateHardwareSettings,
		validateOutputSettings,
		validateArchiveSettings,
		validateMQTTSettings,
		validateTelemetrySettings,
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(s *Settings) error {
	if s.Main.Timezone == "" {
		return nil
	}
	if err := validateEnvTimezone(s.Main.Timezone); err != nil {
		return fmt.Errorf("main.timezone: %w", err)
	}
	return nil
}

func validateWatchSettings(s *Settings) error {
	if strings.TrimSpace(s.Watch.Dir) == "" {
		return fmt.Errorf("watch.dir must be set")
	}
	if s.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive, got %s", s.Watch.Interval)
	}
	return nil
}

func validateTelegramSettings(s *Settings) error {
	if !s.Telegram.Enabled {
		return nil
	}
	if s.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when telegram is enabled")
	}
	if err := validateEnvToken(s.Telegram.Token); err != nil {
		return fmt.Errorf("telegram.token: %w", err)
	}
	if s.Telegram.RateLimit <= 0 {
		return fmt.Errorf("telegram.rate_limit must be positive")
	}
	if s.Telegram.Burst < 1 {
		return fmt.Errorf("telegram.burst must be at least 1")
	}
	return nil
}

func validateConfirmationSettings(s *Settings) error {
	if s.Confirmation.Window <= 0 {
		return fmt.Errorf("confirmation.window must be positive, got %s", s.Confirmation.Window)
	}
	return nil
}

func validateDeterrentSettings(s *Settings) error {
	d := &s.Deterrent
	if !d.Enabled {
		return nil
	}
	if d.Interval <= 0 {
		return fmt.Errorf("deterrent.interval must be positive")
	}

	var unknown []string
	for _, name := range d.Targets {
		if _, ok := detection.ParseCategory(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if d.AlertCategory != "" {
		if _, ok := detection.ParseCategory(d.AlertCategory); !ok {
			unknown = append(unknown, d.AlertCategory)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("deterrent: unknown categories %v", unknown)
	}

	if d.Timings.NuisanceBuzz < 0 || d.Timings.NuisanceTail < 0 || d.Timings.AlertHold < 0 {
		return fmt.Errorf("deterrent.timings must not be negative")
	}
	return nil
}

func validateHardwareSettings(s *Settings) error {
	h := &s.Hardware
	switch h.Driver {
	case HardwareDriverGPIO:
		for name, a := range map[string]ActuatorSettings{"light1": h.Light1, "light2": h.Light2, "buzzer1": h.Buzzer1} {
			if a.Pin == "" {
				return fmt.Errorf("hardware.%s.pin is required for the gpio driver", name)
			}
		}
	case HardwareDriverMQTT:
		if !s.MQTT.Enabled {
			return fmt.Errorf("hardware.driver mqtt requires mqtt.enabled")
		}
	case HardwareDriverLog:
	default:
		return fmt.Errorf("hardware.driver: unknown driver %q", h.Driver)
	}

	switch h.Sensor.Source {
	case SensorSourceMQTT:
		if !s.MQTT.Enabled {
			return fmt.Errorf("hardware.sensor.source mqtt requires mqtt.enabled")
		}
		if h.Sensor.Topic == "" {
			return fmt.Errorf("hardware.sensor.topic is required for the mqtt source")
		}
	case SensorSourceHost, SensorSourceNone, "":
	default:
		return fmt.Errorf("hardware.sensor.source: unknown source %q", h.Sensor.Source)
	}
	return nil
}

func validateOutputSettings(s *Settings) error {
	o := &s.Output
	switch {
	case o.SQLite.Enabled && o.MySQL.Enabled:
		return fmt.Errorf("output: enable either sqlite or mysql, not both")
	case o.SQLite.Enabled:
		if o.SQLite.Path == "" {
			return fmt.Errorf("output.sqlite.path must be set")
		}
	case o.MySQL.Enabled:
		if o.MySQL.Host == "" || o.MySQL.Database == "" || o.MySQL.Username == "" {
			return fmt.Errorf("output.mysql requires host, database and username")
		}
	default:
		return fmt.Errorf("output: no database enabled")
	}
	return nil
}

func validateArchiveSettings(s *Settings) error {
	if s.Archive.Dir == "" {
		return fmt.Errorf("archive.dir must be set")
	}
	u := &s.Archive.Upload
	if !u.Enabled {
		return nil
	}
	switch u.Type {
	case UploadTypeLocal:
		if u.Path == "" {
			return fmt.Errorf("archive.upload.path is required for local uploads")
		}
	case UploadTypeFTP, UploadTypeSFTP:
		if u.Host == "" {
			return fmt.Errorf("archive.upload.host is required for %s uploads", u.Type)
		}
		if u.Port < 0 || u.Port > 65535 {
			return fmt.Errorf("archive.upload.port out of range: %d", u.Port)
		}
	default:
		return fmt.Errorf("archive.upload.type: unknown type %q", u.Type)
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	u, err := url.Parse(s.MQTT.Broker)
	if err != nil || u.Host == "" {
		return fmt.Errorf("mqtt.broker is not a valid URL: %q", s.MQTT.Broker)
	}
	if !slices.Contains([]string{"tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss"}, u.Scheme) {
		return fmt.Errorf("mqtt.broker: unsupported scheme %q", u.Scheme)
	}
	if s.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic must be set")
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	if !s.Telemetry.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Telemetry.Listen); err != nil {
		return fmt.Errorf("telemetry.listen: %w", err)
	}
	return nil
}
