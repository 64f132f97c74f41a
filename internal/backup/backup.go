// Package backup keeps the detection ledger, copies detection images next
// to it and exports the whole folder as a zip archive.
package backup

import (
	"context"
)

// Target stores an export archive outside the field station.
type Target interface {
	// Name returns the target type, e.g. sftp.
	Name() string
	// Store uploads the file at sourcePath under its base name.
	Store(ctx context.Context, sourcePath string) error
	// Validate checks the configuration without connecting.
	Validate() error
}
