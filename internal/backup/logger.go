package backup

import "github.com/tphakala/cropguard/internal/logger"

// GetLogger returns the "backup" module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("backup")
}

var (
	logString = logger.String
	logInt    = logger.Int
)
