package util

import (
	"regexp"
	"strings"
)

var logControlChars = regexp.MustCompile(`[\x00-\x1F\x7F]+`)

// SanitizeForLog removes control characters and newlines from user content before logging.
func SanitizeForLog(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return logControlChars.ReplaceAllString(s, " ")
}

// TruncateForLog sanitizes s and caps it at max bytes, cutting on a rune boundary.
func TruncateForLog(s string, max int) string {
	s = SanitizeForLog(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
