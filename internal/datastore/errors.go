package datastore

import (
	"fmt"
	"time"

	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/observability/metrics"
)

// ErrRecipientNotFound is returned when a chat ID has no recipient row.
var ErrRecipientNotFound = errors.NewStd("recipient not found")

// dbError creates a categorized storage error with context pairs.
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	for i := 0; i+1 < len(context); i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// unknownCategoryError rejects a counter update for a column that does not exist.
// The result matches detection.ErrUnknownCategory with errors.Is.
func unknownCategoryError(category detection.Category) error {
	return errors.New(fmt.Errorf("%w: %q", detection.ErrUnknownCategory, string(category))).
		Component("datastore").
		Category(errors.CategoryUnknownCategory).
		Context("category", string(category)).
		Build()
}

// record reports one finished operation to rec.
func record(rec metrics.Recorder, operation string, start time.Time, err error) {
	rec.RecordDuration(operation, time.Since(start).Seconds())
	if err == nil {
		rec.RecordOperation(operation, "success")
		return
	}
	rec.RecordOperation(operation, "error")
	rec.RecordError(operation, errorType(err))
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrRecipientNotFound):
		return "not_found"
	case errors.Is(err, detection.ErrUnknownCategory):
		return "unknown_category"
	default:
		return "database"
	}
}
