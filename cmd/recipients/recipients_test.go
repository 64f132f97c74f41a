package recipients

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/datastore"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = filepath.Join(t.TempDir(), "stats.db")
	return s
}

func execute(t *testing.T, settings *conf.Settings, args ...string) (string, error) {
	t.Helper()
	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestAddAndList(t *testing.T) {
	settings := testSettings(t)

	out, err := execute(t, settings, "add", "42", "Asha", "--admin")
	require.NoError(t, err)
	assert.Equal(t, "42 enrolled\n", out)

	out, err = execute(t, settings, "add", "42")
	require.NoError(t, err)
	assert.Equal(t, "42 reactivated\n", out)

	_, err = execute(t, settings, "add", "7", "Ravi")
	require.NoError(t, err)

	out, err = execute(t, settings, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"7", "Ravi", "user", "true"}, strings.Fields(lines[1])[:4])
	assert.Equal(t, []string{"42", "Asha", "admin", "true"}, strings.Fields(lines[2])[:4])
}

func TestDeactivateAndPromote(t *testing.T) {
	settings := testSettings(t)
	_, err := execute(t, settings, "add", "9", "Meera")
	require.NoError(t, err)

	out, err := execute(t, settings, "deactivate", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "false")

	out, err = execute(t, settings, "list", "--active")
	require.NoError(t, err)
	assert.Equal(t, "No recipients.\n", out)

	out, err = execute(t, settings, "promote", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "admin")

	_, err = execute(t, settings, "promote", "9", "--role", "owner")
	require.Error(t, err)
}

func TestUnknownRecipient(t *testing.T) {
	settings := testSettings(t)
	_, err := execute(t, settings, "deactivate", "404")
	require.ErrorIs(t, err, datastore.ErrRecipientNotFound)
}

func TestParseChatID(t *testing.T) {
	id, err := parseChatID(" -100123 ")
	require.NoError(t, err)
	assert.Equal(t, int64(-100123), id)

	_, err = parseChatID("abc")
	require.Error(t, err)
}

func TestWriteTableFormatsDate(t *testing.T) {
	var buf bytes.Buffer
	created := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	require.NoError(t, writeTable(&buf, []datastore.Recipient{{ChatID: 1, Name: "a", Role: datastore.RoleUser, Active: true, CreatedAt: created}}))
	assert.Contains(t, buf.String(), "2024-03-09")
}
