package kb

import (
	"errors"
	"fmt"

	"github.com/roach88/akl/internal/ir"
)

// ErrorCode categorizes knowledge base errors. Renderers switch on it to
// choose fallback text.
type ErrorCode string

const (
	// ErrCodeNameNotFound indicates a name that was never registered.
	ErrCodeNameNotFound ErrorCode = "NAME_NOT_FOUND"

	// ErrCodeAttributeNotFound indicates a known entity lacking a key.
	ErrCodeAttributeNotFound ErrorCode = "ATTRIBUTE_NOT_FOUND"

	// ErrCodeDuplicateName indicates a rebind refused by RebindReject.
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"
)

// NameNotFoundError is returned when a name does not resolve.
// Recoverable: the renderer may emphasize the raw name instead.
type NameNotFoundError struct {
	Name string

	// Suggestion is the closest registered name, if any.
	Suggestion string
}

func (e *NameNotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: %q (did you mean %q?)", ErrCodeNameNotFound, e.Name, e.Suggestion)
	}
	return fmt.Sprintf("%s: %q", ErrCodeNameNotFound, e.Name)
}

// Code returns ErrCodeNameNotFound.
func (e *NameNotFoundError) Code() ErrorCode { return ErrCodeNameNotFound }

// AttributeNotFoundError is returned when a resolved entity lacks a key.
// Recoverable like NameNotFoundError.
type AttributeNotFoundError struct {
	Name   string
	Entity ir.EntityID
	Key    string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q has no attribute %q (entity %s)", ErrCodeAttributeNotFound, e.Name, e.Key, e.Entity)
}

// Code returns ErrCodeAttributeNotFound.
func (e *AttributeNotFoundError) Code() ErrorCode { return ErrCodeAttributeNotFound }

// DuplicateNameError is returned under RebindReject when a name is
// registered a second time.
type DuplicateNameError struct {
	Name     string
	Existing ir.EntityID
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s: %q already names entity %s", ErrCodeDuplicateName, e.Name, e.Existing)
}

// Code returns ErrCodeDuplicateName.
func (e *DuplicateNameError) Code() ErrorCode { return ErrCodeDuplicateName }

// IsNameNotFound reports whether err wraps a NameNotFoundError.
func IsNameNotFound(err error) bool {
	var e *NameNotFoundError
	return errors.As(err, &e)
}

// IsAttributeNotFound reports whether err wraps an AttributeNotFoundError.
func IsAttributeNotFound(err error) bool {
	var e *AttributeNotFoundError
	return errors.As(err, &e)
}

// IsDuplicateName reports whether err wraps a DuplicateNameError.
func IsDuplicateName(err error) bool {
	var e *DuplicateNameError
	return errors.As(err, &e)
}

// IsRecoverable reports whether err is a lookup miss the renderer can
// paper over with placeholder text.
func IsRecoverable(err error) bool {
	return IsNameNotFound(err) || IsAttributeNotFound(err)
}
