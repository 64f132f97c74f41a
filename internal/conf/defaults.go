// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/cropguard/internal/logger"
)

// DefaultNuisanceTargets are the categories that trigger the light and buzzer sequence
var DefaultNuisanceTargets = []string{"Nilgai", "Pig", "Jackal"}

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "CropGuard")
	v.SetDefault("main.timezone", "")

	v.SetDefault("watch.dir", "../ngl")
	v.SetDefault("watch.interval", time.Second)
	v.SetDefault("watch.fsnotify", true)

	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_endpoint", "")
	v.SetDefault("telegram.rate_limit", 25.0)
	v.SetDefault("telegram.burst", 5)
	v.SetDefault("telegram.timeout", 30*time.Second)
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.admin_ids", []int64{})
	v.SetDefault("telegram.auto_enroll", true)

	v.SetDefault("confirmation.window", 60*time.Second)
	v.SetDefault("confirmation.resolved_ttl", time.Hour)

	v.SetDefault("deterrent.enabled", true)
	v.SetDefault("deterrent.interval", 20*time.Second)
	v.SetDefault("deterrent.targets", DefaultNuisanceTargets)
	v.SetDefault("deterrent.alert_category", "Person")
	v.SetDefault("deterrent.timings.nuisance_buzz", 2*time.Second)
	v.SetDefault("deterrent.timings.nuisance_tail", time.Second)
	v.SetDefault("deterrent.timings.alert_hold", 5*time.Second)

	v.SetDefault("hardware.driver", "log")
	v.SetDefault("hardware.light1.pin", "GPIO17")
	v.SetDefault("hardware.light1.topic", "cropguard/actuators/light1")
	v.SetDefault("hardware.light2.pin", "GPIO18")
	v.SetDefault("hardware.light2.topic", "cropguard/actuators/light2")
	v.SetDefault("hardware.buzzer1.pin", "GPIO22")
	v.SetDefault("hardware.buzzer1.topic", "cropguard/actuators/buzzer1")
	v.SetDefault("hardware.buzzer2.pin", "GPIO27")
	v.SetDefault("hardware.buzzer2.topic", "cropguard/actuators/buzzer2")
	v.SetDefault("hardware.sensor.source", "none")
	v.SetDefault("hardware.sensor.topic", "cropguard/sensors/temperature")
	v.SetDefault("hardware.sensor.ttl", 5*time.Minute)
	v.SetDefault("hardware.sensor.key", "")

	v.SetDefault("output.sqlite.enabled", true)
	v.SetDefault("output.sqlite.path", "data/stats.db")
	v.SetDefault("output.mysql.enabled", false)
	v.SetDefault("output.mysql.username", "")
	v.SetDefault("output.mysql.password", "")
	v.SetDefault("output.mysql.host", "localhost")
	v.SetDefault("output.mysql.port", "3306")
	v.SetDefault("output.mysql.database", "cropguard")

	v.SetDefault("archive.dir", "backup")
	v.SetDefault("archive.copy_images", true)
	v.SetDefault("archive.export_dir", "exports")
	v.SetDefault("archive.upload.enabled", false)
	v.SetDefault("archive.upload.type", "local")
	v.SetDefault("archive.upload.path", "")
	v.SetDefault("archive.upload.port", 0)
	v.SetDefault("archive.upload.timeout", 30*time.Second)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "cropguard/detections")
	v.SetDefault("mqtt.client_id", "cropguard")
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.discovery", false)
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")

	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.timeout", 10*time.Second)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", "0.0.0.0:8090")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.compress", false)
}
