package sambung

import (
	"errors"
	"fmt"
	"time"
)

// Error type identifiers carried by ClientError.Type.
const (
	// ErrorTypeTransport covers unreachable network and non-2xx statuses.
	ErrorTypeTransport = "Transport"
	// ErrorTypeParse covers response bodies that are not valid JSON or lack
	// the success indicator.
	ErrorTypeParse = "Parse"
	// ErrorTypeLogical covers well-formed responses with success=false.
	ErrorTypeLogical = "Logical"
	// ErrorTypeRetryExhausted wraps the last cause after the attempt budget
	// is spent.
	ErrorTypeRetryExhausted = "RetryExhausted"
	// ErrorTypeValidation covers invalid client configuration.
	ErrorTypeValidation = "Validation"
)

// Sentinel errors for common failure scenarios
var (
	// ErrNoTransport is returned when a call is made without a configured transport.
	ErrNoTransport = errors.New("sambung: no transport configured")

	// ErrKeyNotFound is returned by a KeyValueStore when the key is absent.
	ErrKeyNotFound = errors.New("sambung: key not found")

	// ErrStoreUnavailable wraps key-value store transport failures.
	ErrStoreUnavailable = errors.New("sambung: key-value store unavailable")
)

// ClientError is the error type produced by the client and its layers.
type ClientError struct {
	Type        string
	Message     string
	Cause       error
	Operation   string
	RequestID   string
	StatusCode  int
	Attempt     int
	MaxAttempts int
	Timestamp   time.Time
	Duration    time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Operation != "" {
		info += fmt.Sprintf("Operation: %s\n", e.Operation)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxAttempts)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// DefaultRetryCondition retries every failure kind uniformly, matching the
// backend contract where even success=false responses are re-attempted.
func DefaultRetryCondition(err error) bool {
	return err != nil
}

// SkipLogicalFailures is an opt-in retry condition that stops retrying once
// the backend has answered with success=false: the request was delivered and
// rejected, so further attempts cannot change the outcome.
func SkipLogicalFailures(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) && clientErr.Type == ErrorTypeLogical {
		return false
	}
	return true
}

// IsLogicalFailure reports whether err is a backend success=false rejection.
func IsLogicalFailure(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == ErrorTypeLogical
}

// IsRetryExhausted reports whether err is an aggregated retry failure.
func IsRetryExhausted(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == ErrorTypeRetryExhausted
}
