package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrCustomerNotFound is returned when the remote customer does not exist.
	ErrCustomerNotFound = errors.New("billing: customer not found")

	// ErrNoActiveSubscription is returned when an operation requires an
	// active remote subscription and the customer has none.
	ErrNoActiveSubscription = errors.New("billing: no active subscription")

	// ErrInvalidWebhookSignature is returned when webhook signature
	// verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")
)

// RequestError is a processor rejection of the request itself: unknown plan,
// invalid coupon, malformed parameters. The message is safe to show to the
// subscriber.
type RequestError struct {
	Message string // processor's human-readable message
	Code    string // processor error code (e.g. "resource_missing")
	Err     error  // underlying SDK error
}

func (e *RequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("billing: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("billing: %s", e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// CardError is a rejection of the payment instrument: declined, expired,
// insufficient funds. The message is safe to show to the subscriber.
type CardError struct {
	Message     string
	Code        string // processor error code (e.g. "card_declined")
	DeclineCode string // issuer decline reason, if any
	Err         error
}

func (e *CardError) Error() string {
	if e.DeclineCode != "" {
		return fmt.Sprintf("billing: %s (declined: %s)", e.Message, e.DeclineCode)
	}
	return fmt.Sprintf("billing: %s", e.Message)
}

func (e *CardError) Unwrap() error {
	return e.Err
}

// IsRequestError reports whether err is (or wraps) a RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// IsCardError reports whether err is (or wraps) a CardError.
func IsCardError(err error) bool {
	var ce *CardError
	return errors.As(err, &ce)
}

// UserMessage extracts the processor's subscriber-safe message from a typed
// gateway error. Returns empty for unclassified errors, which must never be
// shown verbatim.
func UserMessage(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Message
	}
	var ce *CardError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return ""
}
