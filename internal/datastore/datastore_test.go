package datastore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/errors"
)

func setupSQLite(t *testing.T) (mgr *SQLiteManager, cleanup func()) {
	t.Helper()

	mgr, err := NewSQLiteManager(Config{Path: filepath.Join(t.TempDir(), "data", "stats.db")})
	require.NoError(t, err)
	require.NoError(t, mgr.Initialize())

	return mgr, func() { _ = mgr.Close() }
}

func TestInitializeSeedsRows(t *testing.T) {
	mgr, cleanup := setupSQLite(t)
	defer cleanup()

	// A second Initialize must not duplicate rows.
	require.NoError(t, mgr.Initialize())

	var count int64
	require.NoError(t, mgr.DB().Model(&Stat{}).Count(&count).Error)
	assert.Equal(t, int64(4), count)

	snap, err := NewCounterStore(mgr.DB()).Snapshot(context.Background())
	require.NoError(t, err)
	for _, o := range detection.Outcomes() {
		require.Contains(t, snap, o)
		for _, c := range detection.Categories() {
			assert.Zero(t, snap.Get(o, c))
		}
	}
	assert.False(t, mgr.IsMySQL())
	assert.Contains(t, mgr.Path(), "stats.db")
}

func TestValidateSchemaDetectsMissingColumn(t *testing.T) {
	mgr, cleanup := setupSQLite(t)
	defer cleanup()

	require.NoError(t, mgr.DB().Migrator().DropColumn(&Stat{}, "monkey"))

	err := ValidateSchema(mgr.DB())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
	assert.Contains(t, err.Error(), "monkey")
}

func TestIncrement(t *testing.T) {
	mgr, cleanup := setupSQLite(t)
	defer cleanup()

	var observed []detection.Outcome
	store := NewCounterStore(mgr.DB(), func(o detection.Outcome, _ detection.Category) {
		observed = append(observed, o)
	})
	ctx := context.Background()

	require.NoError(t, store.Increment(ctx, detection.Detected, detection.Jackal))
	require.NoError(t, store.Increment(ctx, detection.Detected, detection.Jackal))
	require.NoError(t, store.Increment(ctx, detection.Correct, detection.Jackal))
	require.NoError(t, store.Increment(ctx, detection.None, detection.Unknown))

	row, err := store.Row(ctx, detection.Detected)
	require.NoError(t, err)
	assert.Equal(t, int64(2), row[detection.Jackal])
	assert.Zero(t, row[detection.Pig])

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Get(detection.Correct, detection.Jackal))
	assert.Equal(t, int64(1), snap.Get(detection.None, detection.Unknown))
	assert.Len(t, observed, 4)
}

func TestIncrementRejectsUnknownCategory(t *testing.T) {
	mgr, cleanup := setupSQLite(t)
	defer cleanup()

	store := NewCounterStore(mgr.DB())
	err := store.Increment(context.Background(), detection.Correct, detection.Category("Dragon"))
	require.Error(t, err)
	assert.ErrorIs(t, err, detection.ErrUnknownCategory)
	assert.True(t, errors.IsCategory(err, errors.CategoryUnknownCategory))

	err = store.Increment(context.Background(), detection.Outcome("Maybe"), detection.Pig)
	require.Error(t, err)
}

func TestIncrementMissingRowIsStorageError(t *testing.T) {
	mgr, cleanup := setupSQLite(t)
	defer cleanup()

	require.NoError(t, mgr.DB().Where("name = ?", "None").Delete(&Stat{}).Error)

	err := NewCounterStore(mgr.DB()).Increment(context.Background(), detection.None, detection.Pig)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestIncrementConcurrent(t *testing.T) {
	mgr, cleanup := setupSQLite(t)
	defer cleanup()

	store := NewCounterStore(mgr.DB())
	const workers, perWorker = 8, 25

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range perWorker {
				assert.NoError(t, store.Increment(context.Background(), detection.Detected, detection.Pig))
			}
		})
	}
	wg.Wait()

	row, err := store.Row(context.Background(), detection.Detected)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), row[detection.Pig])
}

func TestIncrementAfterCloseFails(t *testing.T) {
	mgr, cleanup := setupSQLite(t)
	cleanup()

	err := NewCounterStore(mgr.DB()).Increment(context.Background(), detection.Detected, detection.Pig)
	require.Error(t, err)
}

func TestRecipientRepository(t *testing.T) {
	mgr, cleanup := setupSQLite(t)
	defer cleanup()

	repo := NewRecipientRepository(mgr.DB())
	ctx := context.Background()

	created, err := repo.Enroll(ctx, 1001, "Asha")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Enroll(ctx, 1002, "Ravi")
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, repo.SetActive(ctx, 1002, false))
	active, err := repo.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1001), active[0].ChatID)

	// Re-enrolling reactivates without creating a duplicate.
	created, err = repo.Enroll(ctx, 1002, "")
	require.NoError(t, err)
	assert.False(t, created)
	rec, err := repo.Get(ctx, 1002)
	require.NoError(t, err)
	assert.True(t, rec.Active)
	assert.Equal(t, "Ravi", rec.Name)
	assert.False(t, rec.IsAdmin())

	require.NoError(t, repo.SetRole(ctx, 1002, RoleAdmin))
	rec, err = repo.Get(ctx, 1002)
	require.NoError(t, err)
	assert.True(t, rec.IsAdmin())

	require.Error(t, repo.SetRole(ctx, 1002, Role("root")))
	assert.ErrorIs(t, repo.SetActive(ctx, 4242, true), ErrRecipientNotFound)
	_, err = repo.Get(ctx, 4242)
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	r, ok := ParseRole(" Admin ")
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("owner")
	assert.False(t, ok)
}

type opRecorder struct {
	mu     sync.Mutex
	ops    []string
	errors []string
}

func (r *opRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, operation+":"+status)
}

func (r *opRecorder) RecordDuration(string, float64) {}

func (r *opRecorder) RecordError(operation, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, operation+":"+errorType)
}

func TestRecorderSeesOperations(t *testing.T) {
	mgr, cleanup := setupSQLite(t)
	defer cleanup()
	ctx := context.Background()

	rec := &opRecorder{}
	store := NewCounterStore(mgr.DB()).WithRecorder(rec)
	repo := NewRecipientRepository(mgr.DB()).WithRecorder(rec)

	require.NoError(t, store.Increment(ctx, detection.Detected, detection.Pig))
	require.Error(t, store.Increment(ctx, detection.Detected, detection.Category("Dragon")))
	_, err := store.Snapshot(ctx)
	require.NoError(t, err)
	_, err = repo.Enroll(ctx, 5, "five")
	require.NoError(t, err)
	_, err = repo.Active(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"increment:success",
		"increment:error",
		"snapshot:success",
		"enroll_recipient:success",
		"list_active_recipients:success",
	}, rec.ops)
	assert.Equal(t, []string{"increment:unknown_category"}, rec.errors)
}
