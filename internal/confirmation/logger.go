package confirmation

import "github.com/tphakala/cropguard/internal/logger"

// GetLogger returns the confirmation module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("confirmation")
}
