package backup

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportName(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 12, 31, 23, 59, 7, 0, time.UTC)
	assert.Equal(t, "backup_20241231_235907.zip", ExportName(at))
}

func TestExport(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, LedgerFile), []byte("[1] Detected: Pig\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "old"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "old", "1_Pig.jpg"), []byte("img"), 0o600))

	// Exports written inside the backup folder are skipped on the next run.
	dest := filepath.Join(src, "exports")
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	first, err := Export(t.Context(), src, dest, at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "backup_20240506_070809.zip"), first)

	second, err := Export(t.Context(), src, dest, at.Add(time.Second))
	require.NoError(t, err)

	zr, err := zip.OpenReader(second)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		assert.Equal(t, zip.Deflate, f.Method)
	}
	slices.Sort(names)
	assert.Equal(t, []string{LedgerFile, "old/1_Pig.jpg"}, names)

	leftovers, err := filepath.Glob(filepath.Join(dest, ".export-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestExportErrors(t *testing.T) {
	t.Parallel()

	_, err := Export(t.Context(), filepath.Join(t.TempDir(), "missing"), t.TempDir(), time.Now())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("a"), 0o600))
	dest := t.TempDir()
	_, err = Export(ctx, src, dest, time.Now())
	require.Error(t, err)

	left, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, left)
}
