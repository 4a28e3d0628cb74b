package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrValidation        = errors.New("validation failed")
)

// NotFoundError reports an entity that does not exist or is not owned by the caller.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidTransitionError is returned when an action is attempted from a state
// that forbids it, including a guarded write that lost a race.
type InvalidTransitionError struct {
	Entity string
	ID     int64
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	entity := e.Entity
	if entity == "" {
		entity = "quest"
	}
	return fmt.Sprintf("cannot %s %s %d in state %q", e.Action, entity, e.ID, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ValidationError is returned for missing or malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func notFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
