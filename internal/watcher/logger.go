package watcher

import "github.com/tphakala/cropguard/internal/logger"

// GetLogger returns the watcher module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("watcher")
}
