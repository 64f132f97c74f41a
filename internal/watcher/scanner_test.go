package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/cropguard/internal/errors"
)

func writeFile(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestScannerBaselineYieldsNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	writeFile(t, filepath.Join(dir, "Pig.jpg"), base)
	writeFile(t, filepath.Join(dir, "Jackal.jpg"), base)

	s := NewScanner(dir)
	changes, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, changes)

	changes, err = s.Scan()
	require.NoError(t, err)
	assert.Empty(t, changes, "unchanged files must not be reported")
}

func TestScannerReportsNewAndModified(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pig := filepath.Join(dir, "Pig.jpg")
	writeFile(t, pig, base)

	s := NewScanner(dir)
	_, err := s.Scan()
	require.NoError(t, err)

	jackal := filepath.Join(dir, "Jackal.jpg")
	writeFile(t, jackal, base.Add(time.Second))
	writeFile(t, pig, base.Add(2*time.Second))

	changes, err := s.Scan()
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, jackal, changes[0].Path)
	assert.Equal(t, pig, changes[1].Path)
	assert.Equal(t, int64(3), changes[1].Size)

	// Same mtime again: nothing.
	writeFile(t, pig, base.Add(2*time.Second))
	changes, err = s.Scan()
	require.NoError(t, err)
	assert.Empty(t, changes)

	// An older mtime is never reported.
	writeFile(t, pig, base)
	changes, err = s.Scan()
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestScannerForgetsRemovedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(dir, "Cat.jpg")
	writeFile(t, path, base)

	s := NewScanner(dir)
	_, err := s.Scan()
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	changes, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, changes)

	writeFile(t, path, base)
	changes, err = s.Scan()
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, path, changes[0].Path)
}

func TestScannerIgnoresDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewScanner(dir)
	_, err := s.Scan()
	require.NoError(t, err)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "Dog.jpg"), 0o750))
	changes, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestScannerMissingDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "later")
	s := NewScanner(dir)

	_, err := s.Scan()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryWatcher))

	// The first successful scan after a failure is the baseline.
	require.NoError(t, os.Mkdir(dir, 0o750))
	writeFile(t, filepath.Join(dir, "Bull.jpg"), time.Now())
	changes, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, changes)
}
