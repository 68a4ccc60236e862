package scheduler

import (
	"errors"
	"testing"
)

func TestParseResetTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input      string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		{input: "06:00:00", wantHour: 6, wantMinute: 0},
		{input: "23:59:59", wantHour: 23, wantMinute: 59},
		{input: "00:00:00", wantHour: 0, wantMinute: 0},
		{input: "7:05:30", wantHour: 7, wantMinute: 5},
		{input: "18:45", wantHour: 18, wantMinute: 45},
		{input: " 06:30:00 ", wantHour: 6, wantMinute: 30},
		{input: "", wantErr: true},
		{input: "06", wantErr: true},
		{input: "24:00:00", wantErr: true},
		{input: "12:60:00", wantErr: true},
		{input: "12:00:60", wantErr: true},
		{input: "ab:cd:ef", wantErr: true},
		{input: "-1:00:00", wantErr: true},
		{input: "+6:00:00", wantErr: true},
		{input: "06:00:00:00", wantErr: true},
		{input: "006:00:00", wantErr: true},
		{input: "06::00", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			hour, minute, err := ParseResetTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.input)
				}
				if !errors.Is(err, ErrInvalidResetTime) {
					t.Errorf("Expected ErrInvalidResetTime, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error for %q: %v", tt.input, err)
			}
			if hour != tt.wantHour || minute != tt.wantMinute {
				t.Errorf("ParseResetTime(%q) = %d:%d, want %d:%d", tt.input, hour, minute, tt.wantHour, tt.wantMinute)
			}
		})
	}
}

func TestFormatResetTime(t *testing.T) {
	t.Parallel()

	if got := FormatResetTime(6, 5); got != "06:05:00" {
		t.Errorf("FormatResetTime(6, 5) = %q", got)
	}
}
