package models

import "testing"

func TestEntry_UniqueID(t *testing.T) {
	t.Parallel()

	e := &Entry{TargetEntityID: "todo.groceries", ResetTime: "06:00:00"}
	if got := e.UniqueID(); got != "todo.groceries_06:00:00" {
		t.Errorf("UniqueID() = %q", got)
	}
}

func TestEntry_ApplyDefaults(t *testing.T) {
	t.Parallel()

	e := &Entry{TargetEntityID: "todo.groceries", DisplayHours: -1}
	e.ApplyDefaults()

	if e.DisplayPosition != DisplayPositionBefore {
		t.Errorf("Expected default display position, got %q", e.DisplayPosition)
	}
	if e.DisplayHours != DefaultDisplayHours {
		t.Errorf("Expected default display hours, got %d", e.DisplayHours)
	}
	if e.ResetTime != DefaultResetTime {
		t.Errorf("Expected default reset time, got %q", e.ResetTime)
	}
}

func TestEntry_Merge(t *testing.T) {
	t.Parallel()

	base := Entry{
		Title:           "Groceries",
		TargetEntityID:  "todo.groceries",
		ResetTime:       "06:00:00",
		DisplayPosition: DisplayPositionBefore,
		DisplayHours:    2,
	}

	newTime := "07:30:00"
	after := DisplayPositionAfter
	merged := base.Merge(EntryOptions{ResetTime: &newTime, DisplayPosition: &after})

	if merged.ResetTime != "07:30:00" {
		t.Errorf("Expected reset time updated, got %q", merged.ResetTime)
	}
	if merged.DisplayPosition != DisplayPositionAfter {
		t.Errorf("Expected display position updated, got %q", merged.DisplayPosition)
	}
	if merged.TargetEntityID != "todo.groceries" || merged.DisplayHours != 2 {
		t.Errorf("Expected untouched fields preserved, got %+v", merged)
	}
	if base.ResetTime != "06:00:00" {
		t.Error("Merge must not mutate the receiver")
	}
	if !(EntryOptions{}).IsEmpty() {
		t.Error("Expected zero options to be empty")
	}
}
