package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/benvon/todo-reset/internal/models"
	"github.com/benvon/todo-reset/internal/scheduler"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	entityIDPattern = regexp.MustCompile(`^[a-z0-9_]+\.[a-z0-9_]+$`)
)

// TodoDomain is the host domain a reset target must belong to.
const TodoDomain = "todo"

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("todo_entity", validateTodoEntity); err != nil {
		panic(fmt.Sprintf("failed to register todo_entity validator: %v", err))
	}
	if err := Validate.RegisterValidation("reset_time", validateResetTime); err != nil {
		panic(fmt.Sprintf("failed to register reset_time validator: %v", err))
	}
	if err := Validate.RegisterValidation("display_position", validateDisplayPosition); err != nil {
		panic(fmt.Sprintf("failed to register display_position validator: %v", err))
	}
}

func validateTodoEntity(fl validator.FieldLevel) bool {
	return ValidateTodoEntityID(fl.Field().String()) == nil
}

func validateResetTime(fl validator.FieldLevel) bool {
	_, _, err := scheduler.ParseResetTime(fl.Field().String())
	return err == nil
}

func validateDisplayPosition(fl validator.FieldLevel) bool {
	return ValidateDisplayPosition(fl.Field().String()) == nil
}

// ValidateTodoEntityID checks that entityID is a well-formed entity id in the todo domain.
func ValidateTodoEntityID(entityID string) error {
	if !entityIDPattern.MatchString(entityID) {
		return fmt.Errorf("invalid entity_id: %q (expected <domain>.<object_id>)", entityID)
	}
	if !strings.HasPrefix(entityID, TodoDomain+".") {
		return fmt.Errorf("invalid entity_id: %q (must be a %s entity)", entityID, TodoDomain)
	}
	return nil
}

// ValidateDisplayPosition validates a DisplayPosition string value
func ValidateDisplayPosition(value string) error {
	switch models.DisplayPosition(value) {
	case models.DisplayPositionBefore, models.DisplayPositionAfter:
		return nil
	default:
		return fmt.Errorf("invalid display_position: %s (must be 'before' or 'after')", value)
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// FirstError renders the first field error of a validator failure, or err itself.
func FirstError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return fmt.Sprintf("field '%s' failed '%s' validation", fe.Field(), fe.Tag())
	}
	return err.Error()
}
