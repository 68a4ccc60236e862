package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidResetTime is returned for reset times that are not HH:MM[:SS] with in-range fields.
var ErrInvalidResetTime = errors.New("invalid reset time")

// ParseResetTime parses "HH:MM:SS" (or "HH:MM") into an hour and minute.
// Seconds are validated and then dropped: triggers always fire at :00.
func ParseResetTime(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, fmt.Errorf("%w: %q must be HH:MM:SS", ErrInvalidResetTime, s)
	}

	limits := []int{23, 59, 59}
	values := make([]int, len(parts))
	for i, part := range parts {
		v, err := parseField(part)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q: %v", ErrInvalidResetTime, s, err)
		}
		if v > limits[i] {
			return 0, 0, fmt.Errorf("%w: %q: field %d out of range", ErrInvalidResetTime, s, i+1)
		}
		values[i] = v
	}

	return values[0], values[1], nil
}

// FormatResetTime renders an hour and minute in the canonical HH:MM:00 form.
func FormatResetTime(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d:00", hour, minute)
}

// parseField accepts one or two ASCII digits; signs and whitespace are rejected.
func parseField(part string) (int, error) {
	if len(part) == 0 || len(part) > 2 {
		return 0, fmt.Errorf("field %q must be 1-2 digits", part)
	}
	for _, r := range part {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("field %q is not a number", part)
		}
	}
	return strconv.Atoi(part)
}
