package telegram

import (
	"fmt"

	"github.com/tphakala/cropguard/internal/logger"
)

// GetLogger returns the telegram module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telegram")
}

// botLogger routes the library's Printf-style output to debug level.
// The token is redacted because request errors embed the full URL.
type botLogger struct {
	log logger.Logger
}

func (l botLogger) Println(v ...any) {
	l.log.Debug(logger.RedactSensitiveData(fmt.Sprint(v...)))
}

func (l botLogger) Printf(format string, v ...any) {
	l.log.Debug(logger.RedactSensitiveData(fmt.Sprintf(format, v...)))
}
