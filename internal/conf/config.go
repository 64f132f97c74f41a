// config.go: this code defines the configuration settings for CropGuard.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/cropguard/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains the main application settings
type MainSettings struct {
	Name     string `yaml:"name"`     // name of the installation, shown in alerts
	Timezone string `yaml:"timezone"` // IANA timezone for timestamps in captions and the ledger, empty for local
}

// WatchSettings describes the directory written by the detection pipeline
type WatchSettings struct {
	Dir      string        `yaml:"dir"`      // directory observed for new detection images
	Interval time.Duration `yaml:"interval"` // polling interval
	FSNotify bool          `yaml:"fsnotify"` // use inotify to trigger scans between polls
}

// TelegramSettings contains the bot API settings
type TelegramSettings struct {
	Enabled     bool          `yaml:"enabled"`
	Token       string        `yaml:"token"`                                       // bot token from BotFather
	APIEndpoint string        `yaml:"api_endpoint" mapstructure:"api_endpoint"`    // empty for the public API
	RateLimit   float64       `yaml:"rate_limit" mapstructure:"rate_limit"`        // outbound requests per second
	Burst       int           `yaml:"burst"`                                       // outbound burst size
	Timeout     time.Duration `yaml:"timeout"`                                     // per request HTTP timeout
	PollTimeout int           `yaml:"poll_timeout" mapstructure:"poll_timeout"`    // long poll timeout in seconds
	AdminIDs    []int64       `yaml:"admin_ids" mapstructure:"admin_ids"`          // chat IDs promoted to admin at startup
	AutoEnroll  bool          `yaml:"auto_enroll" mapstructure:"auto_enroll"`      // /start registers unknown chats
}

// ConfirmationSettings controls the confirmation window
type ConfirmationSettings struct {
	Window      time.Duration `yaml:"window"`                                   // how long recipients may answer
	ResolvedTTL time.Duration `yaml:"resolved_ttl" mapstructure:"resolved_ttl"` // how long late replies are recognised
}

// DeterrentTimings holds the hold durations of the actuator sequences
type DeterrentTimings struct {
	NuisanceBuzz time.Duration `yaml:"nuisance_buzz" mapstructure:"nuisance_buzz"` // light and buzzer on
	NuisanceTail time.Duration `yaml:"nuisance_tail" mapstructure:"nuisance_tail"` // light on after buzzer off
	AlertHold    time.Duration `yaml:"alert_hold" mapstructure:"alert_hold"`       // both lights on
}

// DeterrentSettings contains settings for the deterrent controller
type DeterrentSettings struct {
	Enabled       bool             `yaml:"enabled"`
	Interval      time.Duration    `yaml:"interval"`                                       // counter polling interval
	Targets       []string         `yaml:"targets"`                                        // nuisance categories
	AlertCategory string           `yaml:"alert_category" mapstructure:"alert_category"`   // category that triggers the intruder alert
	Timings       DeterrentTimings `yaml:"timings"`
}

// ActuatorSettings configures one output device
type ActuatorSettings struct {
	Pin       string `yaml:"pin"`                                    // GPIO pin name, e.g. GPIO17
	Topic     string `yaml:"topic"`                                  // MQTT command topic
	ActiveLow bool   `yaml:"active_low" mapstructure:"active_low"`   // invert the output level
}

// Configured reports whether a pin or topic is set. Optional actuators
// without either are left out of the bank.
func (a ActuatorSettings) Configured() bool {
	return a.Pin != "" || a.Topic != ""
}

// SensorSettings configures the ambient temperature source
type SensorSettings struct {
	Source string        `yaml:"source"` // mqtt, host or none
	Topic  string        `yaml:"topic"`  // MQTT topic carrying readings
	TTL    time.Duration `yaml:"ttl"`    // how long an MQTT reading stays valid
	Key    string        `yaml:"key"`    // host: substring of the gopsutil sensor key; mqtt: JSON field holding the value
}

// HardwareSettings contains settings for actuators and sensors
type HardwareSettings struct {
	Driver  string           `yaml:"driver"` // gpio, mqtt or log
	Light1  ActuatorSettings `yaml:"light1"`
	Light2  ActuatorSettings `yaml:"light2"`
	Buzzer1 ActuatorSettings `yaml:"buzzer1"`
	Buzzer2 ActuatorSettings `yaml:"buzzer2"` // optional second buzzer, switched with buzzer1
	Sensor  SensorSettings   `yaml:"sensor"`
}

// SQLiteSettings contains settings for the SQLite database output
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // path to the database file
}

// MySQLSettings contains settings for the MySQL database output
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

// OutputSettings selects the counter and recipient store
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// UploadSettings describes where archive exports are sent
type UploadSettings struct {
	Enabled        bool          `yaml:"enabled"`
	Type           string        `yaml:"type"` // local, ftp or sftp
	Path           string        `yaml:"path"` // destination directory
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	KeyFile        string        `yaml:"key_file" mapstructure:"key_file"`                 // SSH private key for sftp
	KnownHostsFile string        `yaml:"known_hosts_file" mapstructure:"known_hosts_file"` // empty disables host key checking
	Timeout        time.Duration `yaml:"timeout"`
}

// ArchiveSettings contains settings for the detection ledger and image copies
type ArchiveSettings struct {
	Dir        string         `yaml:"dir"`                                    // ledger and copied images
	CopyImages bool           `yaml:"copy_images" mapstructure:"copy_images"` // copy detection images next to the ledger
	ExportDir  string         `yaml:"export_dir" mapstructure:"export_dir"`   // where zip exports are written
	Upload     UploadSettings `yaml:"upload"`
}

// MQTTSettings contains settings for MQTT integration
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`   // tcp://host:1883
	Topic    string `yaml:"topic"`    // base topic for detection events
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Retain   bool   `yaml:"retain"`
	// Home Assistant discovery
	Discovery       bool   `yaml:"discovery"`
	DiscoveryPrefix string `yaml:"discovery_prefix" mapstructure:"discovery_prefix"`
}

// NotificationSettings contains admin alert providers
type NotificationSettings struct {
	URLs    []string      `yaml:"urls"` // shoutrrr service URLs
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetrySettings controls the Prometheus and JSON status endpoint
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // host:port
}

// SentrySettings controls error reporting
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings contains all configuration options for CropGuard
type Settings struct {
	Debug bool `yaml:"debug"`

	Main         MainSettings         `yaml:"main"`
	Watch        WatchSettings        `yaml:"watch"`
	Telegram     TelegramSettings     `yaml:"telegram"`
	Confirmation ConfirmationSettings `yaml:"confirmation"`
	Deterrent    DeterrentSettings    `yaml:"deterrent"`
	Hardware     HardwareSettings     `yaml:"hardware"`
	Output       OutputSettings       `yaml:"output"`
	Archive      ArchiveSettings      `yaml:"archive"`
	MQTT         MQTTSettings         `yaml:"mqtt"`
	Notification NotificationSettings `yaml:"notification"`
	Telemetry    TelemetrySettings    `yaml:"telemetry"`
	Sentry       SentrySettings       `yaml:"sentry"`
	Logging      logger.LoggingConfig `yaml:"logging"`
}

// Location returns the configured timezone, falling back to time.Local.
func (s *Settings) Location() *time.Location {
	if s == nil || s.Main.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Main.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	configFileOnce   string
)

// SetConfigFile pins the config file path, bypassing the default search paths.
func SetConfigFile(path string) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	configFileOnce = path
}

// Load reads the configuration file and environment variables into the settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := load(viper.GetViper(), configFileOnce)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadFile reads settings from an explicit path with a private viper instance.
// The global settings instance is left untouched.
func LoadFile(path string) (*Settings, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper sets defaults, binds the environment and reads the configuration file.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		// Bad env values are reported but the config file may still be usable.
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(v, configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it back
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, configFileName)

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath. Comments and layout of an
// existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Write to a sibling temp file and rename so readers never see a partial config.
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
