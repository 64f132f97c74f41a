package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		Watch:        WatchSettings{Dir: "in", Interval: time.Second},
		Telegram:     TelegramSettings{Enabled: true, Token: testToken, RateLimit: 1, Burst: 1},
		Confirmation: ConfirmationSettings{Window: time.Minute},
		Deterrent: DeterrentSettings{
			Enabled:       true,
			Interval:      time.Second,
			Targets:       []string{"pig"},
			AlertCategory: "Person",
		},
		Hardware: HardwareSettings{Driver: HardwareDriverLog, Sensor: SensorSettings{Source: SensorSourceNone}},
		Output:   OutputSettings{SQLite: SQLiteSettings{Enabled: true, Path: "x.db"}},
		Archive:  ArchiveSettings{Dir: "backup"},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"missing token", func(s *Settings) { s.Telegram.Token = "" }, "telegram.token"},
		{"malformed token", func(s *Settings) { s.Telegram.Token = "abc:def" }, "not numeric"},
		{"telegram disabled skips token", func(s *Settings) { s.Telegram = TelegramSettings{} }, ""},
		{"zero window", func(s *Settings) { s.Confirmation.Window = 0 }, "confirmation.window"},
		{"unknown alert category", func(s *Settings) { s.Deterrent.AlertCategory = "Yeti" }, "Yeti"},
		{"unknown driver", func(s *Settings) { s.Hardware.Driver = "serial" }, "hardware.driver"},
		{"gpio needs pins", func(s *Settings) { s.Hardware.Driver = HardwareDriverGPIO }, "pin is required"},
		{"mqtt driver needs mqtt", func(s *Settings) { s.Hardware.Driver = HardwareDriverMQTT }, "mqtt.enabled"},
		{"both databases", func(s *Settings) { s.Output.MySQL.Enabled = true }, "not both"},
		{"no database", func(s *Settings) { s.Output.SQLite.Enabled = false }, "no database"},
		{"ftp without host", func(s *Settings) {
			s.Archive.Upload = UploadSettings{Enabled: true, Type: UploadTypeFTP}
		}, "archive.upload.host"},
		{"bad broker scheme", func(s *Settings) {
			s.MQTT = MQTTSettings{Enabled: true, Broker: "http://x:1883", Topic: "t"}
		}, "unsupported scheme"},
		{"bad listen", func(s *Settings) {
			s.Telemetry = TelemetrySettings{Enabled: true, Listen: "8090"}
		}, "telemetry.listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateEnvHelpers(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateEnvBool(" true "))
	require.Error(t, validateEnvBool("yes"))
	require.NoError(t, validateEnvDuration("1m30s"))
	require.Error(t, validateEnvDuration("-1s"))
	require.Error(t, validateEnvDuration("soon"))
	require.NoError(t, validateEnvToken(testToken))
	require.Error(t, validateEnvToken("no-colon"))
	require.NoError(t, validateEnvURL("tcp://broker:1883"))
	require.Error(t, validateEnvURL("broker"))
	require.Error(t, validateEnvHardwareDriver("i2c"))
}
