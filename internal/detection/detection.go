// Package detection provides the domain model shared by every CropGuard component:
// the wildlife categories the camera pipeline can report, the outcomes counted for
// each of them, and the event created when a new detection image appears.
package detection

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Event is one detection image observed in the watched directory.
// Its identity is the source path; the category is derived from the file name.
type Event struct {
	Path      string    // absolute or watch-relative path of the image
	Category  Category  // derived from the file stem, Unknown when unrecognised
	Timestamp time.Time // file modification time
}

// NewEvent builds an Event from a path and its modification time.
func NewEvent(path string, modTime time.Time) Event {
	return Event{
		Path:      path,
		Category:  CategoryFromPath(path),
		Timestamp: modTime,
	}
}

// EventFromFile stats path and builds an Event. The file must exist,
// be a regular file and be non-empty.
func EventFromFile(path string) (Event, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Event{}, err
	}
	if !info.Mode().IsRegular() {
		return Event{}, fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() == 0 {
		return Event{}, fmt.Errorf("%s is empty", path)
	}
	return NewEvent(path, info.ModTime()), nil
}

// Ext returns the file extension of the source image, including the dot.
func (e Event) Ext() string {
	return filepath.Ext(e.Path)
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%s", e.Category, e.Timestamp.Format(time.RFC3339))
}
