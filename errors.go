package goresource

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBodyNotValidated  = errors.New("body not parsed safely")
	ErrQueryNotValidated = errors.New("query not parsed safely")
	ErrPayloadInvalid    = errors.New("payload invalid")
	ErrTargetNotFound    = errors.New("target not found")

	ErrNoPolicyPointer = errors.New("no policy pointer")
	ErrPolicyNotFound  = errors.New("policy not found")
	ErrFieldsNotFound  = errors.New("fields not found")

	ErrEmptyFilter        = errors.New("compileFilter: empty filter encountered")
	ErrSearchFilterParser = errors.New("search filter could not be parsed")

	ErrModelNotFound = errors.New("model not found")
	ErrCreateNoId    = errors.New("create: could not retrieve id for target record")
	// ErrStorage is what clients see in place of a StorageError. The
	// driver message is only logged.
	ErrStorage = errors.New("storage failure")
)

// CompileError wraps a failure to compile a filter string.
type CompileError struct {
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compileFilter: cannot compile %q: %v", e.Source, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// UnknownConnectionError is returned when a connection name has not been
// registered.
type UnknownConnectionError struct {
	Name string
}

func (e *UnknownConnectionError) Error() string {
	return fmt.Sprintf("unknown connection %q", e.Name)
}

// StorageError wraps a failure of the underlying storage engine.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}

	return &StorageError{Op: op, Err: err}
}

// ValidationError carries per-field messages of a rejected body.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d invalid field(s)", ErrPayloadInvalid, len(e.Fields))
}

func (e *ValidationError) Unwrap() error {
	return ErrPayloadInvalid
}

// StatusOf maps an error to the HTTP status class the resource layer
// answers with. Anything unclassified is a server error.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPayloadInvalid):
		return http.StatusConflict
	case errors.Is(err, ErrSearchFilterParser):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// isConfigError reports whether err stems from route or policy configuration
// rather than from client input.
func isConfigError(err error) bool {
	var unknownConn *UnknownConnectionError

	return errors.Is(err, ErrNoPolicyPointer) ||
		errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrFieldsNotFound) ||
		errors.Is(err, ErrModelNotFound) ||
		errors.As(err, &unknownConn)
}
