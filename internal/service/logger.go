package service

import "github.com/tphakala/cropguard/internal/logger"

// GetLogger returns the service module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("service")
}
