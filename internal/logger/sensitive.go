package logger

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

// sensitiveKeywords mark field keys whose string values must never reach a log file
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey", "dsn", "authorization",
}

// sensitivePatterns catch secrets embedded in free text, such as bot API URLs
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(bot)\d+:[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)((api|access|auth|token|secret|passw(or)?d)[0-9a-z\-_\.]*[\s:=]+)([^;,\s]{5,})`),
	regexp.MustCompile(`(?i)(://[^:/\s]+:)([^@/\s]+)(@)`),
}

func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}

// RedactSensitiveData replaces tokens and credentials in free text with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}

	input = sensitivePatterns[0].ReplaceAllString(input, "${1}"+redactedValue)
	input = sensitivePatterns[1].ReplaceAllString(input, "${1}"+redactedValue)
	input = sensitivePatterns[2].ReplaceAllString(input, "${1}"+redactedValue+"${3}")

	return input
}
