package logger

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{name: "empty", input: "", maxLength: 10, want: ""},
		{name: "plain", input: "todo.groceries", maxLength: 100, want: "todo.groceries"},
		{name: "control characters removed", input: "todo.\x00groc\x07eries", maxLength: 100, want: "todo.groceries"},
		{name: "truncated", input: "abcdefghij", maxLength: 4, want: "abcd..."},
		{name: "invalid utf8 dropped", input: "ab\xffcd", maxLength: 100, want: "abcd"},
		{name: "rune not split", input: "Müll", maxLength: 2, want: "M..."},
		{name: "default cap", input: "todo.x", maxLength: 0, want: "todo.x"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeString(tt.input, tt.maxLength); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeEntityID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "todo.groceries", want: "todo.groceries"},
		{input: "todo.groceries\nfake_log_line", want: "todo.groceriesfake_log_line"},
		{input: "todo.gro ceries\t", want: "todo.groceries"},
		{input: strings.Repeat("a", MaxEntityIDLength+1), want: strings.Repeat("a", MaxEntityIDLength) + "..."},
	}
	for _, tt := range tests {
		if got := SanitizeEntityID(tt.input); got != tt.want {
			t.Errorf("SanitizeEntityID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if SanitizeError(nil) != "" {
		t.Error("Expected empty string for nil error")
	}
	long := errors.New(strings.Repeat("x", MaxErrorMessageLength+50))
	if got := SanitizeError(long); len(got) != MaxErrorMessageLength+3 {
		t.Errorf("Expected truncated error of length %d, got %d", MaxErrorMessageLength+3, len(got))
	}
}

func TestForEntry(t *testing.T) {
	t.Parallel()

	if ForEntry(nil, "id", "todo.x") == nil {
		t.Fatal("Expected a no-op logger for nil parent")
	}
	if ForEntry(zap.NewNop(), "id", "todo.x") == nil {
		t.Fatal("Expected child logger")
	}
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	for _, debug := range []bool{false, true} {
		log, err := NewProductionLogger(debug)
		if err != nil {
			t.Fatalf("NewProductionLogger(%v) error = %v", debug, err)
		}
		if got := log.Core().Enabled(zap.DebugLevel); got != debug {
			t.Errorf("NewProductionLogger(%v): debug enabled = %v", debug, got)
		}
	}
	if err := Sync(nil); err != nil {
		t.Errorf("Sync(nil) error = %v", err)
	}
}
