// Package metrics provides custom Prometheus metrics for the CropGuard application.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it rather than on concrete collectors.
type Recorder interface {
	// RecordOperation records an operation with its status, e.g. ("increment", "success").
	RecordOperation(operation, status string)
	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)
	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}

// NoOpRecorder discards everything.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOperation(string, string)  {}
func (NoOpRecorder) RecordDuration(string, float64)  {}
func (NoOpRecorder) RecordError(string, string)      {}
