// Package watcher reports new and modified files in the directory written by
// the camera pipeline.
package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tphakala/cropguard/internal/errors"
)

// Change is a file that appeared or whose modification time advanced.
type Change struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Scanner diffs successive listings of one directory. The first Scan records a
// baseline and reports nothing. A file is reported at most once per distinct
// modification time; removed files are forgotten so re-created files count as new.
// Scanner is not safe for concurrent use.
type Scanner struct {
	dir      string
	seen     map[string]time.Time
	baseline bool
}

// NewScanner creates a scanner for dir. Nothing is read until the first Scan.
func NewScanner(dir string) *Scanner {
	return &Scanner{dir: dir, seen: make(map[string]time.Time)}
}

// Scan lists the directory and returns the changes since the previous call,
// ordered by modification time then path.
func (s *Scanner) Scan() ([]Change, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.New(err).
			Component("watcher").
			Category(errors.CategoryWatcher).
			Context("operation", "read_dir").
			Context("dir", s.dir).
			Build()
	}

	current := make(map[string]time.Time, len(entries))
	var changes []Change

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		mtime := info.ModTime()

		last, known := s.seen[path]
		if known && !mtime.After(last) {
			// Keep the highest reported mtime so a clock step back is not re-reported.
			current[path] = last
			continue
		}
		current[path] = mtime

		if !s.baseline {
			continue
		}
		changes = append(changes, Change{Path: path, ModTime: mtime, Size: info.Size()})
	}

	s.seen = current
	s.baseline = true

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].ModTime.Equal(changes[j].ModTime) {
			return changes[i].Path < changes[j].Path
		}
		return changes[i].ModTime.Before(changes[j].ModTime)
	})
	return changes, nil
}
