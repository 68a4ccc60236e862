package models

import (
	"time"

	"github.com/google/uuid"
)

// Domain is the integration domain. Status entities and card URLs are namespaced under it.
const Domain = "todo_list"

// DefaultResetTime is offered by the setup form when no time is given.
const DefaultResetTime = "00:00:00"

// DisplayPosition controls where the card renders the reset countdown relative to the list.
type DisplayPosition string

const (
	DisplayPositionBefore DisplayPosition = "before"
	DisplayPositionAfter  DisplayPosition = "after"
)

// DefaultDisplayHours is how many hours before a reset the card starts showing the countdown.
const DefaultDisplayHours = 2

// Entry is one configured reset: a target todo list plus a daily reset time.
type Entry struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	TargetEntityID  string          `json:"entity_id"`
	ResetTime       string          `json:"reset_time"`
	DisplayPosition DisplayPosition `json:"display_position"`
	DisplayHours    int             `json:"display_hours"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// UniqueID identifies the (target, time) pair. Two entries may not share it.
func (e *Entry) UniqueID() string {
	return UniqueID(e.TargetEntityID, e.ResetTime)
}

// UniqueID builds the duplicate-detection key for a target entity and reset time.
func UniqueID(targetEntityID, resetTime string) string {
	return targetEntityID + "_" + resetTime
}

// ApplyDefaults fills optional display settings that were left empty.
func (e *Entry) ApplyDefaults() {
	if e.DisplayPosition == "" {
		e.DisplayPosition = DisplayPositionBefore
	}
	if e.DisplayHours < 0 {
		e.DisplayHours = DefaultDisplayHours
	}
	if e.ResetTime == "" {
		e.ResetTime = DefaultResetTime
	}
}

// EntryOptions is a partial update submitted through the options form.
// Nil fields are left unchanged.
type EntryOptions struct {
	TargetEntityID  *string          `json:"entity_id,omitempty"`
	ResetTime       *string          `json:"reset_time,omitempty"`
	DisplayPosition *DisplayPosition `json:"display_position,omitempty"`
	DisplayHours    *int             `json:"display_hours,omitempty"`
}

// IsEmpty reports whether no option was supplied.
func (o EntryOptions) IsEmpty() bool {
	return o.TargetEntityID == nil && o.ResetTime == nil && o.DisplayPosition == nil && o.DisplayHours == nil
}

// Merge returns a copy of e with the supplied options applied on top.
func (e Entry) Merge(o EntryOptions) Entry {
	if o.TargetEntityID != nil {
		e.TargetEntityID = *o.TargetEntityID
	}
	if o.ResetTime != nil {
		e.ResetTime = *o.ResetTime
	}
	if o.DisplayPosition != nil {
		e.DisplayPosition = *o.DisplayPosition
	}
	if o.DisplayHours != nil {
		e.DisplayHours = *o.DisplayHours
	}
	return e
}
