package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ExportName returns the archive name for an export made at now.
func ExportName(now time.Time) string {
	return fmt.Sprintf("backup_%s.zip", now.Format("20060102_150405"))
}

// Export zips every regular file under srcDir into destDir/ExportName(now)
// and returns the archive path. Entry names are relative to srcDir. The
// archive is written to a temporary file and renamed when complete.
func Export(ctx context.Context, srcDir, destDir string, now time.Time) (string, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return "", ledgerError(err, "stat_source", srcDir)
	}
	if !info.IsDir() {
		return "", ledgerError(fmt.Errorf("%s is not a directory", srcDir), "stat_source", srcDir)
	}
	if err := os.MkdirAll(destDir, dirPerm); err != nil {
		return "", ledgerError(err, "create_dir", destDir)
	}

	final := filepath.Join(destDir, ExportName(now))
	tmp, err := os.CreateTemp(destDir, ".export-*.zip")
	if err != nil {
		return "", ledgerError(err, "create_temp", destDir)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	zw := zip.NewWriter(tmp)
	files := 0
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		// Earlier exports are never packed into new ones.
		if d.IsDir() && path != srcDir && filepath.Clean(path) == filepath.Clean(destDir) {
			return filepath.SkipDir
		}
		if !d.Type().IsRegular() || path == tmpName {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if err := addFile(zw, path, filepath.ToSlash(rel)); err != nil {
			return err
		}
		files++
		return nil
	})

	if walkErr != nil {
		_ = zw.Close()
		_ = tmp.Close()
		cleanup()
		return "", ledgerError(walkErr, "zip_walk", srcDir)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", ledgerError(err, "zip_close", tmpName)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", ledgerError(err, "close_temp", tmpName)
	}
	if err := os.Rename(tmpName, final); err != nil {
		cleanup()
		return "", ledgerError(err, "rename_export", final)
	}

	GetLogger().Info("backup archive created",
		logString("path", final),
		logInt("files", files))
	return final, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path) //nolint:gosec // G304 - path is inside the backup folder
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
