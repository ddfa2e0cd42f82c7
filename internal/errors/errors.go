package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// FeedError is the typed failure returned by every feed operation. It carries the
// attempted operation and the id it targeted so callers can show a precise
// message and retry the same call.
type FeedError struct {
	Code     ErrorCode `json:"code"`
	Op       Op        `json:"op,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
	Message  string    `json:"message"`
	Field    string    `json:"field,omitempty"`
	Err      error     `json:"-"`
}

// Error implements the error interface
func (e *FeedError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Op != "" {
		b.WriteString(" [")
		b.WriteString(string(e.Op))
		if e.TargetID != "" {
			b.WriteString(" ")
			b.WriteString(e.TargetID)
		}
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field: %s)", e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for this error
func (e *FeedError) Status() int {
	return e.Code.StatusCode()
}

// FetchFailed wraps a read-side store or transport failure
func FetchFailed(op Op, targetID string, err error) *FeedError {
	return &FeedError{
		Code:     ErrFetchFailed,
		Op:       op,
		TargetID: targetID,
		Message:  "failed to load data",
		Err:      err,
	}
}

// WriteFailed wraps a mutation the store rejected for a reason other than a uniqueness rule
func WriteFailed(op Op, targetID string, err error) *FeedError {
	return &FeedError{
		Code:     ErrWriteFailed,
		Op:       op,
		TargetID: targetID,
		Message:  "failed to save changes",
		Err:      err,
	}
}

// ConstraintViolation wraps a store uniqueness rejection
func ConstraintViolation(op Op, targetID string, err error) *FeedError {
	return &FeedError{
		Code:     ErrConstraintViolation,
		Op:       op,
		TargetID: targetID,
		Message:  "conflicts with an existing record",
		Err:      err,
	}
}

// NotAuthenticated is returned when a mutation runs without a viewer identity
func NotAuthenticated(op Op) *FeedError {
	return &FeedError{
		Code:    ErrNotAuthenticated,
		Op:      op,
		Message: "user not authenticated",
	}
}

// NotFound creates a NOT_FOUND error
func NotFound(op Op, resource, id string) *FeedError {
	return &FeedError{
		Code:     ErrNotFound,
		Op:       op,
		TargetID: id,
		Message:  fmt.Sprintf("%s not found", resource),
	}
}

// Forbidden creates a FORBIDDEN error
func Forbidden(op Op, targetID, message string) *FeedError {
	return &FeedError{
		Code:     ErrForbidden,
		Op:       op,
		TargetID: targetID,
		Message:  message,
	}
}

// ValidationError creates a VALIDATION_ERROR
func ValidationError(op Op, field, message string) *FeedError {
	return &FeedError{
		Code:    ErrValidation,
		Op:      op,
		Field:   field,
		Message: message,
	}
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *FeedError {
	return &FeedError{
		Code:    ErrBadRequest,
		Message: message,
	}
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *FeedError {
	return &FeedError{
		Code:    ErrInternalError,
		Message: message,
	}
}

// As extracts a *FeedError from err's chain
func As(err error) (*FeedError, bool) {
	var fe *FeedError
	if stderrors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// CodeOf returns the code of the first FeedError in err's chain, or ErrInternalError.
func CodeOf(err error) ErrorCode {
	if fe, ok := As(err); ok {
		return fe.Code
	}
	return ErrInternalError
}

// HasCode reports whether err carries the given code
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
