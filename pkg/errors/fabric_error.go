package errors

import (
	stderrors "errors"
	"fmt"
)

// FabricError pairs a stable Code with the underlying cause, so callers
// across a package boundary can branch on Code without string matching
// on err.Error().
type FabricError struct {
	Code  Code
	Cause error
	Msg   string
}

func (e *FabricError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *FabricError) Unwrap() error { return e.Cause }

// New builds a FabricError for code with a human-readable message.
func New(code Code, msg string) *FabricError {
	return &FabricError{Code: code, Msg: msg}
}

// Wrap builds a FabricError for code, attaching cause as the wrapped error.
func Wrap(code Code, msg string, cause error) *FabricError {
	return &FabricError{Code: code, Msg: msg, Cause: cause}
}

// CodeOf extracts the Code from err, if it (or something it wraps) is
// a *FabricError.
func CodeOf(err error) (Code, bool) {
	var fe *FabricError
	if !stderrors.As(err, &fe) {
		return "", false
	}
	return fe.Code, true
}
