package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestSlogLoggerLevelsAndFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.Debug("hidden")
	log.Info("fan-out started",
		String("category", "Jackal"),
		Int("recipients", 2),
		Float64("temperature", 21.123456),
		Duration("window", 1500*time.Millisecond))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "fan-out started", lines[0]["msg"])
	assert.Equal(t, "Jackal", lines[0]["category"])
	assert.InDelta(t, 21.123, lines[0]["temperature"], 1e-9)
	assert.Equal(t, "1.5s", lines[0]["window"])
}

func TestModuleAndWithCarryFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	base := NewSlogLogger(buf, LogLevelDebug, time.UTC)
	log := base.Module("fanout").With(String("fanout_id", "abc"))
	log.Module("expiry").Warn("window closed")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "fanout.expiry", lines[0]["module"])
	assert.Equal(t, "abc", lines[0]["fanout_id"])
}

func TestTraceLevelName(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelTrace, time.UTC)
	log.Trace("sql")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "TRACE", lines[0]["level"])
}

func TestSensitiveFieldsRedacted(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)
	log.Info("connecting", String("bot_token", "123:abc"), String("host", "localhost"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, redactedValue, lines[0]["bot_token"])
	assert.Equal(t, "localhost", lines[0]["host"])
}

func TestRedactSensitiveData(t *testing.T) {
	t.Parallel()

	in := "POST https://api.telegram.org/bot123456:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw/sendPhoto"
	out := RedactSensitiveData(in)
	assert.NotContains(t, out, "AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw")
	assert.Contains(t, out, "bot[REDACTED]")

	out = RedactSensitiveData("user:hunter22@tcp(db:3306)/cropguard")
	assert.NotContains(t, out, "hunter22")

	out = RedactSensitiveData("mysql://guard:s3cretpw@db/cropguard")
	assert.Equal(t, "mysql://guard:[REDACTED]@db/cropguard", out)
}

func TestCentralLoggerModuleRouting(t *testing.T) {
	dir := t.TempDir()
	cfg := &LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput: &FileOutput{
			Enabled: true,
			Path:    filepath.Join(dir, "main.log"),
			Level:   "info",
		},
		ModuleOutputs: map[string]ModuleOutput{
			"hardware": {Enabled: true, FilePath: filepath.Join(dir, "hw", "hardware.log"), Level: "debug"},
		},
	}

	cl, err := NewCentralLogger(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })

	cl.Module("hardware").Debug("relay on", String("actuator", "light1"))
	cl.Module("fanout").Info("started")
	cl.Module("fanout").Debug("dropped")

	hw, err := os.ReadFile(filepath.Join(dir, "hw", "hardware.log"))
	require.NoError(t, err)
	assert.Contains(t, string(hw), `"actuator":"light1"`)
	assert.NotContains(t, string(hw), "started")

	main, err := os.ReadFile(filepath.Join(dir, "main.log"))
	require.NoError(t, err)
	assert.Contains(t, string(main), `"module":"fanout"`)
	assert.NotContains(t, string(main), "dropped")
}

func TestNewCentralLoggerRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(nil)
	require.Error(t, err)

	_, err = NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestApplyConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &LoggingConfig{}
	applyConfigDefaults(cfg)

	assert.Equal(t, DefaultLogLevel, cfg.DefaultLevel)
	require.NotNil(t, cfg.FileOutput)
	assert.Equal(t, DefaultLogPath, cfg.FileOutput.Path)
	assert.Contains(t, cfg.ModuleOutputs, "telegram")
	assert.Contains(t, cfg.ModuleOutputs, "hardware")
}
