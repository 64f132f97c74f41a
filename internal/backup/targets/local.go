package targets

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/tphakala/cropguard/internal/backup"
)

// LocalTarget copies archives into a directory, typically a mounted share
// or removable drive.
type LocalTarget struct {
	path string
}

var _ backup.Target = (*LocalTarget)(nil)

// NewLocalTarget returns a target writing into dir.
func NewLocalTarget(dir string) (*LocalTarget, error) {
	t := &LocalTarget{path: dir}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *LocalTarget) Name() string { return "local" }

func (t *LocalTarget) Validate() error {
	if t.path == "" {
		return configError("local", "path is required")
	}
	return nil
}

// Store copies sourcePath to a temporary name and renames it into place.
func (t *LocalTarget) Store(ctx context.Context, sourcePath string) error {
	if err := ctx.Err(); err != nil {
		return uploadError(err, t.Name(), "canceled")
	}
	if err := os.MkdirAll(t.path, PermDir); err != nil {
		return uploadError(err, t.Name(), "mkdir")
	}

	base := filepath.Base(sourcePath)
	tmp := filepath.Join(t.path, tempName(base))
	if err := copyTo(sourcePath, tmp); err != nil {
		_ = os.Remove(tmp)
		return uploadError(err, t.Name(), "copy")
	}
	if err := os.Rename(tmp, filepath.Join(t.path, base)); err != nil {
		_ = os.Remove(tmp)
		return uploadError(err, t.Name(), "rename")
	}
	GetLogger().Info("archive stored",
		logString("target", t.Name()),
		logString("path", filepath.Join(t.path, base)))
	return nil
}

func copyTo(src, dst string) (err error) {
	in, err := os.Open(src) //nolint:gosec // G304 - src is an export archive we created
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, PermFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
