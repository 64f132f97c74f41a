// Package metrics provides constants used across metric definitions.
package metrics

// Operation label values.
const (
	OpIncrement = "increment"
	OpSnapshot  = "snapshot"
	OpEnroll    = "enroll"

	OpSendRequest  = "send_request"
	OpClearRequest = "clear_request"
	OpNotify       = "notify"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Deterrent sequence kinds.
const (
	SequenceNuisance = "nuisance"
	SequenceAlert    = "alert"
)

// Shared bucket layouts.
var (
	// latencyBuckets spans 1ms to ~16s.
	latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16}
	// recipientBuckets covers household to village sized directories.
	recipientBuckets = []float64{0, 1, 2, 5, 10, 20, 50, 100}
)
