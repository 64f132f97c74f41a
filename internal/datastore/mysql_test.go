package datastore

import (
	"context"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/cropguard/internal/detection"
)

// setupMySQL starts a throwaway MySQL server. Skipped when Docker is unavailable.
func setupMySQL(t *testing.T) *MySQLManager {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("cropguard"),
		tcmysql.WithUsername("guard"),
		tcmysql.WithPassword("guard-pass"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	mgr, err := NewMySQLManager(&MySQLConfig{
		Host:     host,
		Port:     port.Port(),
		Username: "guard",
		Password: "guard-pass",
		Database: "cropguard",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	require.NoError(t, mgr.Initialize())
	return mgr
}

func TestMySQLCountersAndRecipients(t *testing.T) {
	mgr := setupMySQL(t)
	ctx := context.Background()

	assert.True(t, mgr.IsMySQL())
	assert.Contains(t, mgr.Path(), "/cropguard")

	store := NewCounterStore(mgr.DB())
	require.NoError(t, store.Increment(ctx, detection.Detected, detection.Nilgai))
	require.NoError(t, store.Increment(ctx, detection.Incorrect, detection.Nilgai))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Get(detection.Detected, detection.Nilgai))
	assert.Equal(t, int64(1), snap.Get(detection.Incorrect, detection.Nilgai))

	repo := NewRecipientRepository(mgr.DB())
	created, err := repo.Enroll(ctx, 77, "field office")
	require.NoError(t, err)
	assert.True(t, created)

	// Setting the same value twice must not look like a missing row.
	require.NoError(t, repo.SetActive(ctx, 77, true))
	require.NoError(t, repo.SetActive(ctx, 77, true))

	require.NoError(t, ValidateSchema(mgr.DB()))
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	cfg := &MySQLConfig{Host: "db", Port: "3306", Username: "u", Password: "p@ss", Database: "cg"}
	parsed, err := mysqldriver.ParseDSN(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "u", parsed.User)
	assert.Equal(t, "p@ss", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "cg", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Contains(t, cfg.DSN(), "charset=utf8mb4")
}
