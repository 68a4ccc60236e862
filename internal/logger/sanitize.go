package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps applied before a value is logged.
const (
	MaxPathLength          = 500
	MaxIDLength            = 128
	MaxEntityIDLength      = 255
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

const truncationMarker = "..."

// SanitizeString drops invalid UTF-8 and non-printable runes (tabs and line
// breaks survive) and truncates to maxLength bytes. maxLength <= 0 means
// MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	return truncate(keepRunes(s, isLoggable), maxLength)
}

// SanitizePath sanitizes a request path.
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeEntityID sanitizes a Home Assistant entity id. Entity ids arrive in
// form input and host payloads, so anything that could forge a log line is
// removed, whitespace included.
func SanitizeEntityID(entityID string) string {
	return truncate(keepRunes(entityID, func(r rune) bool {
		return unicode.IsPrint(r) && !unicode.IsSpace(r)
	}), MaxEntityIDLength)
}

// SanitizeError sanitizes an error message. A nil error yields "".
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

func isLoggable(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return unicode.IsPrint(r)
}

func keepRunes(s string, keep func(rune) bool) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.Map(func(r rune) rune {
		if keep(r) {
			return r
		}
		return -1
	}, s)
}

// truncate cuts s to max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}
