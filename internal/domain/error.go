package domain

import (
	"errors"
	"fmt"
)

// Application error codes.
// These determine user-facing messages and map cleanly to HTTP status codes
// when the engine is embedded behind an API.
const (
	ECONFLICT     = "conflict"         // Resource conflict (concurrent update attempt)
	EINTERNAL     = "internal"         // Internal error (hide details)
	EINVALID      = "invalid"          // Validation error (bad input)
	ENOTFOUND     = "not_found"        // Resource not found
	EPAYMENT      = "payment_required" // Remote processor rejected the request
	EUNAUTHORIZED = "unauthorized"     // Missing or invalid credentials
	ENOTIMPL      = "not_implemented"  // Feature not implemented
)

// Error represents an application error with a code and message.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code is a machine-readable error code (e.g., EINVALID, EPAYMENT).
	Code string

	// Message is a human-readable error message safe to show to users.
	Message string

	// Op is the operation where the error occurred (e.g., "subscription.reconcile").
	// Used for debugging and logging, not shown to users.
	Op string

	// Err is the underlying error, if any. Used for error wrapping.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for non-domain errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return EINTERNAL
}

// ErrorMessage extracts a user-facing message from an error.
// For internal errors, returns a generic message to avoid leaking details.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}

	return "An internal error occurred. Please try again later."
}

// Errorf creates a new domain error with formatted message.
// Example: domain.Errorf(domain.EINVALID, "plan.lookup", "unknown plan: %s", id)
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with a domain error code and operation.
// Preserves the underlying error for logging while providing structure.
// Returns nil if err is nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsCode returns true if err has the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// NotFound creates a not found error for a resource.
// Example: domain.NotFound("subscription.get", "subscription", id)
func NotFound(op, resource, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

// Invalid creates a validation error for a single issue.
// Example: domain.Invalid("subscription.reconcile", "missing card token")
func Invalid(op, message string) error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Payment creates a payment error wrapping the processor's rejection.
// The message is safe to surface to the subscriber.
func Payment(err error, op, message string) error {
	return &Error{
		Code:    EPAYMENT,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Internal creates an internal error (wraps underlying error).
// The message shown to users will be generic; the underlying error is for logging.
func Internal(err error, op, message string) error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// =============================================================================
// Record-level validation errors
// =============================================================================

// ValidationErrors collects user-facing failures attached to a record during
// an update attempt. Base errors apply to the record as a whole; field errors
// point at a specific attribute. A record that has accumulated errors must
// not be persisted by the caller.
type ValidationErrors struct {
	// Base holds record-level error messages (e.g. a processor rejection).
	Base []string

	// Fields maps attribute names to error messages.
	Fields map[string][]string
}

// AddBase appends a record-level error message.
func (v *ValidationErrors) AddBase(message string) {
	v.Base = append(v.Base, message)
}

// AddField appends an error message for a named field.
func (v *ValidationErrors) AddField(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

// Any reports whether any errors have been recorded.
func (v *ValidationErrors) Any() bool {
	return len(v.Base) > 0 || len(v.Fields) > 0
}

// Clear removes all recorded errors, typically at the start of a new attempt.
func (v *ValidationErrors) Clear() {
	v.Base = nil
	v.Fields = nil
}

// Error implements the error interface so a ValidationErrors value can be
// returned directly from validation entry points.
func (v *ValidationErrors) Error() string {
	if len(v.Base) > 0 {
		return v.Base[0]
	}
	for field, msgs := range v.Fields {
		if len(msgs) > 0 {
			return fmt.Sprintf("%s: %s", field, msgs[0])
		}
	}
	return "validation failed"
}
