package bus

import (
	"fmt"

	"github.com/Iron-Ham/magicbus/internal/errors"
	"github.com/Iron-Ham/magicbus/internal/logging"
)

// Mailbox receives messages posted to a [Bus].
//
// Receive returns nil on success. Any other error is reported as a
// [FailedMessage] unless it was marked with errors.Fatal, in which case the
// post that delivered the message stops and returns it.
//
// Mailboxes are compared by identity when subscribing and unsubscribing, so
// the dynamic value must be comparable. Use pointer receivers.
type Mailbox interface {
	Receive(message any) error
}

// funcMailbox adapts an untyped function. It is always used by pointer so
// each adapter has its own identity.
type funcMailbox struct {
	fn func(any) error
}

func (m *funcMailbox) Receive(message any) error { return m.fn(message) }

// Func wraps fn as a Mailbox. Every call returns a distinct Mailbox.
func Func(fn func(message any) error) Mailbox {
	return &funcMailbox{fn: fn}
}

// typedMailbox narrows the message to T before calling fn.
type typedMailbox[T any] struct {
	fn func(T) error
}

func (m *typedMailbox[T]) Receive(message any) error {
	typed, ok := message.(T)
	if !ok {
		// The registry only routes assignable messages, so this is a wiring bug.
		return errors.Fatal(fmt.Errorf("mailbox for %s received %T: %w", typeOf[T](), message, errors.ErrInvalidArgument))
	}
	return m.fn(typed)
}

func (m *typedMailbox[T]) String() string {
	return fmt.Sprintf("mailbox[%s]", typeOf[T]())
}

// Of wraps a typed handler as a Mailbox. It is normally subscribed under T
// or a type implementing T. Every call returns a distinct Mailbox.
func Of[T any](fn func(T) error) Mailbox {
	return &typedMailbox[T]{fn: fn}
}

// ReturnedMessage reports a posted message that matched no mailbox.
type ReturnedMessage struct {
	Bus     *Bus
	Message any
}

func (m ReturnedMessage) String() string {
	return fmt.Sprintf("returned message [bus=%s]: %T", m.Bus, m.Message)
}

// FailedMessage reports a mailbox that failed to receive a message with a
// recoverable error.
type FailedMessage struct {
	Bus     *Bus
	Mailbox Mailbox
	Message any
	Err     error
}

func (m FailedMessage) String() string {
	return fmt.Sprintf("failed message [bus=%s, mailbox=%s]: %T: %v", m.Bus, logging.DescribeMailbox(m.Mailbox), m.Message, m.Err)
}

// Discard returns a callback that drops whatever it is given.
func Discard[T any]() func(T) {
	return func(T) {}
}

// Ignore returns a delivery observer that does nothing.
func Ignore() func(Mailbox, any) {
	return func(Mailbox, any) {}
}

// Chain combines callbacks into one that calls each in order.
// Nil entries are skipped.
func Chain[T any](fns ...func(T)) func(T) {
	return func(v T) {
		for _, fn := range fns {
			if fn != nil {
				fn(v)
			}
		}
	}
}

// ChainObservers combines delivery observers into one that calls each in order.
// Nil entries are skipped.
func ChainObservers(fns ...func(Mailbox, any)) func(Mailbox, any) {
	return func(mailbox Mailbox, message any) {
		for _, fn := range fns {
			if fn != nil {
				fn(mailbox, message)
			}
		}
	}
}

// LogReturned returns a dead-letter callback that writes each returned
// message to logger at INFO level.
func LogReturned(logger *logging.Logger) func(ReturnedMessage) {
	return func(m ReturnedMessage) {
		logger.WithBus(m.Bus.ID()).
			WithMessageType(typeOfValue(m.Message)).
			Info("message returned", "message", fmt.Sprintf("%v", m.Message))
	}
}

// LogFailed returns a failure callback that writes each failed delivery to
// logger at WARN level.
func LogFailed(logger *logging.Logger) func(FailedMessage) {
	return func(m FailedMessage) {
		logger.WithBus(m.Bus.ID()).
			WithMessageType(typeOfValue(m.Message)).
			WithMailbox(m.Mailbox).
			Warn("mailbox failed", "error", m.Err.Error())
	}
}
