package targets

import "github.com/tphakala/cropguard/internal/logger"

// GetLogger returns the "backup.upload" logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("backup").Module("upload")
}

var (
	logString = logger.String
	logInt64  = logger.Int64
)
