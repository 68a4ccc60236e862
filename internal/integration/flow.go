package integration

import (
	"errors"
	"fmt"

	"github.com/benvon/todo-reset/internal/models"
	"github.com/benvon/todo-reset/internal/scheduler"
	"github.com/benvon/todo-reset/internal/validation"
)

var (
	// ErrAlreadyConfigured aborts a setup or options change whose target list
	// and reset time are already used by another entry.
	ErrAlreadyConfigured = errors.New("already_configured")
	// ErrSetupFailed is returned when an entry could not be brought up.
	ErrSetupFailed = errors.New("entry setup failed")
	// ErrEntryNotLoaded is returned for operations on an entry that is not running.
	ErrEntryNotLoaded = errors.New("entry not loaded")
	// ErrNoOptions is returned when an options form carries no field.
	ErrNoOptions = errors.New("no options supplied")
)

// InputError is a form validation failure.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// SetupInput is the setup form.
type SetupInput struct {
	Name            string `json:"name" validate:"required,max=255"`
	EntityID        string `json:"entity_id" validate:"required,todo_entity"`
	ResetTime       string `json:"reset_time" validate:"required,reset_time"`
	DisplayPosition string `json:"display_position,omitempty" validate:"omitempty,display_position"`
	DisplayHours    *int   `json:"display_hours,omitempty" validate:"omitempty,min=0,max=24"`
}

// Validate normalizes the form, applies defaults and validates it. The reset
// time is rewritten to HH:MM:00 so equal triggers share one unique id.
func (in *SetupInput) Validate() error {
	in.Name = validation.SanitizeText(in.Name)
	in.EntityID = validation.SanitizeText(in.EntityID)
	in.ResetTime = validation.SanitizeText(in.ResetTime)
	if in.ResetTime == "" {
		in.ResetTime = models.DefaultResetTime
	}
	if err := validation.Validate.Struct(in); err != nil {
		return &InputError{Message: validation.FirstError(err)}
	}
	in.ResetTime = canonicalResetTime(in.ResetTime)
	return nil
}

// Entry builds the entry the form describes.
func (in *SetupInput) Entry() models.Entry {
	e := models.Entry{
		Title:           in.Name,
		TargetEntityID:  in.EntityID,
		ResetTime:       in.ResetTime,
		DisplayPosition: models.DisplayPosition(in.DisplayPosition),
		DisplayHours:    -1,
	}
	if in.DisplayHours != nil {
		e.DisplayHours = *in.DisplayHours
	}
	e.ApplyDefaults()
	return e
}

// OptionsInput is the options form. Omitted fields keep their current value.
type OptionsInput struct {
	EntityID        *string `json:"entity_id,omitempty" validate:"omitempty,todo_entity"`
	ResetTime       *string `json:"reset_time,omitempty" validate:"omitempty,reset_time"`
	DisplayPosition *string `json:"display_position,omitempty" validate:"omitempty,display_position"`
	DisplayHours    *int    `json:"display_hours,omitempty" validate:"omitempty,min=0,max=24"`
}

// Validate checks that at least one option is present and that each is well formed.
func (in *OptionsInput) Validate() error {
	if in.EntityID == nil && in.ResetTime == nil && in.DisplayPosition == nil && in.DisplayHours == nil {
		return ErrNoOptions
	}
	if err := validation.Validate.Struct(in); err != nil {
		return &InputError{Message: validation.FirstError(err)}
	}
	if in.ResetTime != nil {
		t := canonicalResetTime(*in.ResetTime)
		in.ResetTime = &t
	}
	return nil
}

// Options converts the form into an entry patch.
func (in *OptionsInput) Options() models.EntryOptions {
	opts := models.EntryOptions{
		TargetEntityID: in.EntityID,
		ResetTime:      in.ResetTime,
		DisplayHours:   in.DisplayHours,
	}
	if in.DisplayPosition != nil {
		p := models.DisplayPosition(*in.DisplayPosition)
		opts.DisplayPosition = &p
	}
	return opts
}

// canonicalResetTime renders a valid reset time as HH:MM:00 and returns
// anything else unchanged.
func canonicalResetTime(s string) string {
	hour, minute, err := scheduler.ParseResetTime(s)
	if err != nil {
		return s
	}
	return scheduler.FormatResetTime(hour, minute)
}

func setupFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrSetupFailed, err)
}
