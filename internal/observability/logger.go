// Package observability exposes Prometheus metrics and a small JSON status
// API for monitoring a CropGuard installation.
package observability

import "github.com/tphakala/cropguard/internal/logger"

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}
