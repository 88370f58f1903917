// Package errors provides centralized error definitions and error handling utilities
// for the message bus. It defines sentinel errors, typed errors carrying the
// subscription or delivery context, and classification helpers.
//
// # Error Types
//
//   - SubscriptionError: a subscribe or unsubscribe call was rejected
//   - DeliveryError: a mailbox failed in a way that aborts a post
//
// # Recoverable and Fatal Failures
//
// A mailbox reports a failure by returning an error from Receive. Plain errors
// are recoverable: the bus reports them and keeps delivering. An error wrapped
// with [Fatal] is not; the bus stops delivering that message and hands the
// failure back to the poster.
//
//	return errors.Fatal(fmt.Errorf("inbox closed: %w", err))
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrNoSuchSubscription) { ... }
//
//	var deliveryErr *errors.DeliveryError
//	if errors.As(err, &deliveryErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for failures the bus absorbs and reports.
	SeverityWarning Severity = iota
	// SeverityError is for failures surfaced to the caller.
	SeverityError
	// SeverityCritical is for failures that abort delivery.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidArgument indicates a required argument was missing or unusable.
	ErrInvalidArgument = New("invalid argument")
	// ErrNoSuchSubscription indicates an unsubscribe for a pair that is not registered.
	ErrNoSuchSubscription = New("no such subscription")
	// ErrFatal marks a mailbox failure that must abort delivery.
	ErrFatal = New("fatal delivery failure")
)

// -----------------------------------------------------------------------------
// Fatal classification
// -----------------------------------------------------------------------------

// fatalError tags a cause as non-recoverable without changing its message.
type fatalError struct {
	cause error
}

func (e *fatalError) Error() string { return e.cause.Error() }

func (e *fatalError) Unwrap() []error { return []error{e.cause, ErrFatal} }

// Fatal marks err as non-recoverable. A nil err yields nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	if IsFatal(err) {
		return err
	}
	return &fatalError{cause: err}
}

// IsFatal reports whether err, or anything it wraps, was marked with [Fatal].
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// SeverityOf classifies err the way the bus treats it.
func SeverityOf(err error) Severity {
	switch {
	case err == nil:
		return SeverityWarning
	case IsFatal(err):
		return SeverityCritical
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrNoSuchSubscription):
		return SeverityError
	default:
		return SeverityWarning
	}
}

// -----------------------------------------------------------------------------
// Typed Errors
// -----------------------------------------------------------------------------

// SubscriptionError represents a rejected subscribe or unsubscribe.
//
// Example:
//
//	err := errors.NewSubscriptionError("unsubscribe", errors.ErrNoSuchSubscription).
//	    WithMessageType(reflect.TypeFor[Ping]())
//	fmt.Println(err) // "subscription error [op=unsubscribe, type=main.Ping]: no such subscription"
type SubscriptionError struct {
	Op          string
	MessageType reflect.Type
	cause       error
}

// NewSubscriptionError creates a new SubscriptionError.
func NewSubscriptionError(op string, cause error) *SubscriptionError {
	return &SubscriptionError{Op: op, cause: cause}
}

// WithMessageType adds the subscription type to the error context.
func (e *SubscriptionError) WithMessageType(t reflect.Type) *SubscriptionError {
	e.MessageType = t
	return e
}

// Error returns the formatted error message.
func (e *SubscriptionError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.MessageType != nil {
		parts = append(parts, fmt.Sprintf("type=%s", e.MessageType))
	}

	prefix := "subscription error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("subscription error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Unwrap returns the underlying error.
func (e *SubscriptionError) Unwrap() error {
	return e.cause
}

// DeliveryError represents a fatal mailbox failure that aborted a post.
type DeliveryError struct {
	MessageType reflect.Type
	Delivered   int
	cause       error
}

// NewDeliveryError creates a new DeliveryError for a message of type t
// after delivered attempts, the last of which failed with cause.
func NewDeliveryError(t reflect.Type, delivered int, cause error) *DeliveryError {
	return &DeliveryError{MessageType: t, Delivered: delivered, cause: cause}
}

// Error returns the formatted error message.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery aborted [type=%s, attempt=%d]: %v", e.MessageType, e.Delivered, e.cause)
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity. Aborted deliveries are always critical.
func (e *DeliveryError) Severity() Severity {
	return SeverityCritical
}
