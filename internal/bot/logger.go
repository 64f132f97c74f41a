package bot

import "github.com/tphakala/cropguard/internal/logger"

// GetLogger returns the bot command logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("bot")
}
