package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no identity matches.
	ErrNotFound = errors.New("identity not found")
	// ErrConflict is the kind behind every [ConflictError].
	ErrConflict = errors.New("identity create conflict")
	// ErrAttributeInvalid is returned when the linking attribute is missing or malformed.
	ErrAttributeInvalid = errors.New("identity attribute invalid")
	// ErrCreateConflictExhausted is returned when the create/re-read loop hits its cap.
	ErrCreateConflictExhausted = errors.New("identity create conflict retries exhausted")
)

// ConflictError reports a uniqueness violation on create for a logical field.
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// AttributeError describes why a linking attribute was rejected.
type AttributeError struct {
	Attribute string
	Reason    string
}

func (e AttributeError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrAttributeInvalid, e.Attribute, e.Reason)
}

func (e AttributeError) Unwrap() error { return ErrAttributeInvalid }

// IsConflict reports whether err is a create-time uniqueness conflict:
// a [ConflictError] or anything wrapping [ErrConflict].
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
