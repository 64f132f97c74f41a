package messaging

import (
	"github.com/tphakala/cropguard/internal/errors"
)

// DeliveryError wraps a failed send to one recipient.
func DeliveryError(err error, to RecipientID, operation string) error {
	return errors.New(err).
		Component("messaging").
		Category(errors.CategoryMessaging).
		Context("operation", operation).
		Context("recipient", int64(to)).
		Build()
}

// IsDeliveryError reports whether err came from DeliveryError.
func IsDeliveryError(err error) bool {
	return errors.IsCategory(err, errors.CategoryMessaging)
}
