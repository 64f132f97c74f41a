// Package conf provides configuration management for CropGuard.
package conf

import "github.com/tphakala/cropguard/internal/logger"

// GetLogger returns the config package logger. It is fetched from the global
// logger each time because SetGlobal runs after configuration is loaded.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
