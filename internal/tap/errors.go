package tap

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes runtime errors.
type ErrorCode string

const (
	// ErrCodeStructuralViolation indicates the slot ledger of an instance was
	// walked in a different shape than its previous pass, or a primitive was
	// used outside an active pass.
	ErrCodeStructuralViolation ErrorCode = "STRUCTURAL_VIOLATION"

	// ErrCodeMissingResource indicates a keyed or indexed lookup into a
	// composed list found nothing.
	ErrCodeMissingResource ErrorCode = "MISSING_RESOURCE"

	// ErrCodeUnsupportedOperation indicates an action was invoked on a
	// placeholder facade.
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"

	// ErrCodeEvaluationFailed indicates resource or effect code panicked.
	ErrCodeEvaluationFailed ErrorCode = "EVALUATION_FAILED"

	// ErrCodePassesExceeded indicates a flush kept scheduling follow-up passes
	// past the configured limit.
	ErrCodePassesExceeded ErrorCode = "PASSES_EXCEEDED"
)

// StructuralViolation is raised when the fixed call order of primitives is
// broken. It is fatal for the pass that detected it: the pass is aborted and
// the ledger stays at its last good commit.
type StructuralViolation struct {
	// Resource is the name of the resource whose pass failed.
	Resource string

	// Path locates the instance from its root, e.g. "todos/b".
	Path string

	// Slot is the ledger index at which the violation was detected, or -1.
	Slot int

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *StructuralViolation) Error() string {
	if e.Path != "" && e.Slot >= 0 {
		return fmt.Sprintf("%s: %s (path=%s, slot=%d)", ErrCodeStructuralViolation, e.Message, e.Path, e.Slot)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", ErrCodeStructuralViolation, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", ErrCodeStructuralViolation, e.Message)
}

// Code returns ErrCodeStructuralViolation.
func (e *StructuralViolation) Code() ErrorCode { return ErrCodeStructuralViolation }

// MissingResourceError is returned by keyed and indexed lookups that miss.
type MissingResourceError struct {
	// Key is the requested key (key lookups only).
	Key string

	// Index is the requested position (index lookups only).
	Index int

	// ByIndex reports whether the lookup was positional.
	ByIndex bool

	// Len is the number of entries that were available.
	Len int
}

// Error implements the error interface.
func (e *MissingResourceError) Error() string {
	if e.ByIndex {
		return fmt.Sprintf("%s: no resource at index %d (len=%d)", ErrCodeMissingResource, e.Index, e.Len)
	}
	return fmt.Sprintf("%s: no resource with key %q", ErrCodeMissingResource, e.Key)
}

// Code returns ErrCodeMissingResource.
func (e *MissingResourceError) Code() ErrorCode { return ErrCodeMissingResource }

// UnsupportedOperationError is raised by actions of a placeholder facade,
// i.e. a facade standing in for a scope that is not available yet.
type UnsupportedOperationError struct {
	// Action is the invoked action name.
	Action string

	// Context names what is missing.
	Context string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: %s is not supported: %s is not available",
		ErrCodeUnsupportedOperation, e.Action, e.Context)
}

// Code returns ErrCodeUnsupportedOperation.
func (e *UnsupportedOperationError) Code() ErrorCode { return ErrCodeUnsupportedOperation }

// EvaluationError wraps a panic raised by resource code during a pass, or by
// an effect body or cleanup during commit.
type EvaluationError struct {
	// Resource is the name of the failing resource.
	Resource string

	// Path locates the failing instance.
	Path string

	// Phase is "pass", "update", "effect" or "cleanup".
	Phase string

	// Value is the recovered panic value.
	Value any

	// Err is Value when it was an error.
	Err error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s: %s %s failed: %v (path=%s)", ErrCodeEvaluationFailed, e.Resource, e.Phase, e.Value, e.Path)
}

// Unwrap returns the panic value when it was an error.
func (e *EvaluationError) Unwrap() error { return e.Err }

// Code returns ErrCodeEvaluationFailed.
func (e *EvaluationError) Code() ErrorCode { return ErrCodeEvaluationFailed }

// PassesExceededError is returned when one flush needs more consecutive
// passes than allowed, typically an effect that sets state on every commit.
type PassesExceededError struct {
	Resource string
	Passes   int
	Limit    int
}

// Error implements the error interface.
func (e *PassesExceededError) Error() string {
	return fmt.Sprintf("%s: %s needed %d passes in one flush (limit %d)",
		ErrCodePassesExceeded, e.Resource, e.Passes, e.Limit)
}

// Code returns ErrCodePassesExceeded.
func (e *PassesExceededError) Code() ErrorCode { return ErrCodePassesExceeded }

// CodeOf returns the ErrorCode carried by err, or "" if err is not a runtime
// error. Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var coded interface{ Code() ErrorCode }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// IsStructuralViolation reports whether err is a StructuralViolation.
func IsStructuralViolation(err error) bool {
	var sv *StructuralViolation
	return errors.As(err, &sv)
}

// IsMissingResource reports whether err is a MissingResourceError.
func IsMissingResource(err error) bool {
	var me *MissingResourceError
	return errors.As(err, &me)
}

// IsUnsupportedOperation reports whether err is an UnsupportedOperationError.
func IsUnsupportedOperation(err error) bool {
	var ue *UnsupportedOperationError
	return errors.As(err, &ue)
}

// IsEvaluationError reports whether err is an EvaluationError.
func IsEvaluationError(err error) bool {
	var ee *EvaluationError
	return errors.As(err, &ee)
}

// IsPassesExceeded reports whether err is a PassesExceededError.
func IsPassesExceeded(err error) bool {
	var pe *PassesExceededError
	return errors.As(err, &pe)
}

// violation builds a StructuralViolation for the instance f.
func violation(f *fiber, slot int, format string, args ...any) *StructuralViolation {
	sv := &StructuralViolation{Slot: slot, Message: fmt.Sprintf(format, args...)}
	if f != nil {
		sv.Resource = f.def.name
		sv.Path = f.path
	}
	return sv
}
