package backup

import (
	"github.com/tphakala/cropguard/internal/errors"
)

// ledgerError wraps a failure of the ledger or the image copy.
func ledgerError(err error, operation, path string) error {
	return errors.New(err).
		Component("archive").
		Category(errors.CategoryArchive).
		Context("operation", operation).
		Context("path", path).
		Build()
}
