package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingField indicates a required input was absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidValue indicates an input was present but semantically invalid.
	ErrInvalidValue = errors.New("invalid value")
	// ErrReferenceNotFound indicates a foreign key that does not resolve.
	ErrReferenceNotFound = errors.New("referenced record not found")
	// ErrNotFound indicates the requested id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable indicates the backing store failed or could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Kind is the stable, transport-neutral name of an error category.
type Kind string

const (
	KindMissingField      Kind = "MissingField"
	KindInvalidValue      Kind = "InvalidValue"
	KindReferenceNotFound Kind = "ReferenceNotFound"
	KindNotFound          Kind = "NotFound"
	KindStoreUnavailable  Kind = "StoreUnavailable"
	KindUnknown           Kind = "Unknown"
)

// Error is a client-facing failure: a category plus a human readable message.
type Error struct {
	Err     error
	Message string
	// Fields lists the offending input fields, if any.
	Fields []string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MissingFields builds an ErrMissingField error naming the absent fields.
func MissingFields(fields ...string) *Error {
	return &Error{
		Err:     ErrMissingField,
		Message: "missing required fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

// InvalidValue builds an ErrInvalidValue error for one field.
func InvalidValue(field, message string) *Error {
	return &Error{Err: ErrInvalidValue, Message: message, Fields: []string{field}}
}

// ReferenceNotFound builds an ErrReferenceNotFound error for a dangling foreign key.
func ReferenceNotFound(field, id string) *Error {
	return &Error{
		Err:     ErrReferenceNotFound,
		Message: fmt.Sprintf("%s %q does not match any existing record", field, id),
		Fields:  []string{field},
	}
}

// NotFound builds an ErrNotFound error for an entity id.
func NotFound(entity, id string) *Error {
	return &Error{Err: ErrNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

// StoreError wraps a backend failure. It matches both ErrStoreUnavailable and the cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// KindOf reports the category of err. Nil errors report an empty kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingField):
		return KindMissingField
	case errors.Is(err, ErrInvalidValue):
		return KindInvalidValue
	case errors.Is(err, ErrReferenceNotFound):
		return KindReferenceNotFound
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	default:
		return KindUnknown
	}
}

// IsClientError reports whether err should be shown to the user verbatim.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindMissingField, KindInvalidValue, KindReferenceNotFound, KindNotFound:
		return true
	}
	return false
}

// FieldsOf returns the offending fields recorded on err, if any.
func FieldsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
