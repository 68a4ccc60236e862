package models

import (
	"strings"
	"time"
)

// ResetStatus is the observable state of a status entity.
type ResetStatus string

const (
	ResetStatusIdle          ResetStatus = "idle"
	ResetStatusActive        ResetStatus = "active"
	ResetStatusError         ResetStatus = "error"
	ResetStatusResetting     ResetStatus = "resetting"
	ResetStatusResetComplete ResetStatus = "reset_complete"
)

// ErrorKind classifies last_error so callers need not parse the message.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindTargetNotFound ErrorKind = "target_not_found"
	ErrorKindHost           ErrorKind = "host_error"
)

// StatusSnapshot is what the status entity exposes: its state plus attributes.
type StatusSnapshot struct {
	EntryID         string          `json:"entry_id"`
	EntityID        string          `json:"entity_id"`
	FriendlyName    string          `json:"friendly_name"`
	State           ResetStatus     `json:"state"`
	SourceEntityID  string          `json:"source_entity_id"`
	ResetTime       string          `json:"reset_time"`
	DisplayPosition DisplayPosition `json:"display_position"`
	DisplayHours    int             `json:"display_hours"`
	LastReset       *time.Time      `json:"last_reset,omitempty"`
	LastResetCount  int             `json:"last_reset_count"`
	LastError       string          `json:"last_error,omitempty"`
	LastErrorKind   ErrorKind       `json:"last_error_kind,omitempty"`
	ResetStartedAt  *time.Time      `json:"reset_started_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Attributes renders the snapshot as host state attributes.
func (s *StatusSnapshot) Attributes() map[string]any {
	attrs := map[string]any{
		"friendly_name":    s.FriendlyName,
		"source_entity_id": s.SourceEntityID,
		"reset_time":       s.ResetTime,
		"display_position": string(s.DisplayPosition),
		"display_hours":    s.DisplayHours,
		"last_reset_count": s.LastResetCount,
	}
	if s.LastReset != nil {
		attrs["last_reset"] = s.LastReset.UTC().Format(time.RFC3339)
	}
	if s.LastError != "" {
		attrs["last_error"] = s.LastError
	}
	return attrs
}

// objectID returns the part of an entity id after the domain ("todo.groceries" -> "groceries").
func objectID(entityID string) string {
	if i := strings.LastIndex(entityID, "."); i >= 0 {
		return entityID[i+1:]
	}
	return entityID
}

// StatusEntityID derives the status entity id from the source list id.
func StatusEntityID(sourceEntityID string) string {
	return Domain + "." + objectID(sourceEntityID) + "_with_reset"
}

// StatusFriendlyName derives the display name, e.g. "todo.weekly_chores" -> "Weekly Chores With Reset".
func StatusFriendlyName(sourceEntityID string) string {
	words := strings.Split(objectID(sourceEntityID), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.TrimSpace(strings.Join(words, " ")) + " With Reset"
}
