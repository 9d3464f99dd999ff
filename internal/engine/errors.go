package engine

import (
	"errors"
	"fmt"
)

// DeployError represents a fatal error of one Deploy call.
//
// Deploy errors are either precondition failures detected before any
// remote call, or transport failures of a lookup query or bulk call. Both
// abort the whole change group; per-record failures are never DeployErrors.
type DeployError struct {
	// Code identifies the error category.
	Code DeployErrorCode

	// Message is a human-readable description.
	Message string

	// TypeName identifies the record type of the change group.
	TypeName string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// DeployErrorCode categorizes deploy errors.
type DeployErrorCode string

const (
	// ErrCodeMixedTypes indicates changes of more than one record type.
	ErrCodeMixedTypes DeployErrorCode = "MIXED_TYPES"

	// ErrCodeUnmanagedType indicates the record type is excluded from
	// data management.
	ErrCodeUnmanagedType DeployErrorCode = "UNMANAGED_TYPE"

	// ErrCodeMissingIdentity indicates no usable identity configuration.
	ErrCodeMissingIdentity DeployErrorCode = "MISSING_IDENTITY"

	// ErrCodeMixedActions indicates a group mixing action kinds.
	ErrCodeMixedActions DeployErrorCode = "MIXED_ACTIONS"

	// ErrCodeInvalidChange indicates a change missing its instance or
	// record type.
	ErrCodeInvalidChange DeployErrorCode = "INVALID_CHANGE"

	// ErrCodeTransport indicates a failed lookup query or bulk call.
	ErrCodeTransport DeployErrorCode = "TRANSPORT"

	// ErrCodeResultMismatch indicates a bulk call returned a result list
	// not aligned with the submitted records.
	ErrCodeResultMismatch DeployErrorCode = "RESULT_MISMATCH"
)

// Error implements the error interface.
func (e *DeployError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.TypeName != "" {
		msg += fmt.Sprintf(" (type=%s)", e.TypeName)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DeployError) Unwrap() error {
	return e.Err
}

// IsPreconditionError reports whether err is a deploy precondition failure.
// Uses errors.As to handle wrapped errors.
func IsPreconditionError(err error) bool {
	var de *DeployError
	if !errors.As(err, &de) {
		return false
	}
	switch de.Code {
	case ErrCodeMixedTypes, ErrCodeUnmanagedType, ErrCodeMissingIdentity, ErrCodeMixedActions, ErrCodeInvalidChange:
		return true
	}
	return false
}

// IsTransportError reports whether err is a transport-class failure,
// including misaligned bulk results.
func IsTransportError(err error) bool {
	var de *DeployError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == ErrCodeTransport || de.Code == ErrCodeResultMismatch
}

func newPreconditionError(code DeployErrorCode, typeName, format string, args ...any) *DeployError {
	return &DeployError{Code: code, Message: fmt.Sprintf(format, args...), TypeName: typeName}
}

// NewTransportError wraps a failed remote call.
func NewTransportError(typeName, call string, err error) *DeployError {
	return &DeployError{
		Code:     ErrCodeTransport,
		Message:  call + " failed",
		TypeName: typeName,
		Details:  map[string]string{"call": call},
		Err:      err,
	}
}

// NewResultMismatchError reports a bulk call whose result count differs
// from the submitted record count. err is the alignment check failure.
func NewResultMismatchError(typeName, op string, submitted, returned int, err error) *DeployError {
	return &DeployError{
		Code:     ErrCodeResultMismatch,
		Message:  op + " results do not align with submitted records",
		TypeName: typeName,
		Err:      err,
		Details: map[string]string{
			"operation": op,
			"submitted": fmt.Sprintf("%d", submitted),
			"returned":  fmt.Sprintf("%d", returned),
		},
	}
}
