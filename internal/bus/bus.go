package bus

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/Iron-Ham/magicbus/internal/errors"
	"github.com/Iron-Ham/magicbus/internal/logging"
)

// Bus is a synchronous, type-dispatched pub-sub message bus.
// It allows components to communicate without direct dependencies.
type Bus struct {
	id          string
	name        string
	subscribers *registry
	returned    func(ReturnedMessage)
	failed      func(FailedMessage)
	observed    func(Mailbox, any)
	logger      *logging.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithName sets a human-readable name used in logs and metrics.
func WithName(name string) Option {
	return func(b *Bus) {
		b.name = name
	}
}

// WithLogger attaches a logger. The bus logs at DEBUG for routine outcomes
// and at ERROR when a fatal mailbox error aborts a post.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a bus. returned receives messages no mailbox matched, failed
// receives recoverable mailbox failures, and observed sees every delivery
// attempt before it is made. All three are required; use [Discard] and
// [Ignore] for no-op defaults.
func New(returned func(ReturnedMessage), failed func(FailedMessage), observed func(Mailbox, any), opts ...Option) (*Bus, error) {
	switch {
	case returned == nil:
		return nil, fmt.Errorf("returned callback is nil: %w", errors.ErrInvalidArgument)
	case failed == nil:
		return nil, fmt.Errorf("failed callback is nil: %w", errors.ErrInvalidArgument)
	case observed == nil:
		return nil, fmt.Errorf("observed callback is nil: %w", errors.ErrInvalidArgument)
	}

	b := &Bus{
		id:          uuid.NewString(),
		subscribers: newRegistry(),
		returned:    returned,
		failed:      failed,
		observed:    observed,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithBus(b.id)
	if b.name != "" {
		b.logger = b.logger.With("bus_name", b.name)
	}
	return b, nil
}

// ID returns the unique identity of this bus.
func (b *Bus) ID() string {
	return b.id
}

// Name returns the configured name, or the ID when no name was set.
func (b *Bus) Name() string {
	if b.name == "" {
		return b.id
	}
	return b.name
}

func (b *Bus) String() string {
	if b == nil {
		return "<nil>"
	}
	return b.Name()
}

// Subscribe registers mailbox for messages of type messageType and its
// subtypes. Subscribing the same pair twice has no further effect.
func (b *Bus) Subscribe(messageType reflect.Type, mailbox Mailbox) error {
	if err := validate("subscribe", messageType, mailbox); err != nil {
		return err
	}
	b.subscribers.subscribe(messageType, mailbox)
	if b.logger.Enabled(logging.LevelDebug) {
		b.logger.WithMessageType(messageType).WithMailbox(mailbox).Debug("mailbox subscribed")
	}
	return nil
}

// Unsubscribe removes a registration made by Subscribe. It returns an error
// wrapping errors.ErrNoSuchSubscription if the pair is not registered.
func (b *Bus) Unsubscribe(messageType reflect.Type, mailbox Mailbox) error {
	if err := validate("unsubscribe", messageType, mailbox); err != nil {
		return err
	}
	if err := b.subscribers.unsubscribe(messageType, mailbox); err != nil {
		return err
	}
	if b.logger.Enabled(logging.LevelDebug) {
		b.logger.WithMessageType(messageType).WithMailbox(mailbox).Debug("mailbox unsubscribed")
	}
	return nil
}

// Post delivers message to every mailbox whose subscription type accepts it.
//
// Recoverable mailbox errors go to the failure callback and delivery
// continues. A fatal mailbox error stops delivery and is returned wrapped in
// an *errors.DeliveryError. If no mailbox matched, the message goes to the
// returned callback.
func (b *Bus) Post(message any) error {
	if message == nil {
		return fmt.Errorf("message is nil: %w", errors.ErrInvalidArgument)
	}

	messageType := reflect.TypeOf(message)
	mailboxes := b.subscribers.matching(messageType)

	deliveries := 0
	for _, mailbox := range mailboxes {
		deliveries++
		b.observed(mailbox, message)
		if err := mailbox.Receive(message); err != nil {
			if errors.IsFatal(err) {
				b.logger.WithMessageType(messageType).WithMailbox(mailbox).
					Error("delivery aborted", "error", err.Error(), "attempt", deliveries, "matched", len(mailboxes))
				return errors.NewDeliveryError(messageType, deliveries, err)
			}
			b.failed(FailedMessage{Bus: b, Mailbox: mailbox, Message: message, Err: err})
		}
	}

	if deliveries == 0 {
		b.logger.WithMessageType(messageType).Debug("no mailbox matched")
		b.returned(ReturnedMessage{Bus: b, Message: message})
	}
	return nil
}

// Subscriptions returns the number of registered (type, mailbox) pairs.
func (b *Bus) Subscriptions() int {
	return b.subscribers.count()
}

// Types returns the subscription types that currently have mailboxes, in
// the order they were first subscribed.
func (b *Bus) Types() []reflect.Type {
	return b.subscribers.types()
}

func validate(op string, messageType reflect.Type, mailbox Mailbox) error {
	if messageType == nil {
		return errors.NewSubscriptionError(op, fmt.Errorf("message type is nil: %w", errors.ErrInvalidArgument))
	}
	if mailbox == nil {
		return errors.NewSubscriptionError(op, fmt.Errorf("mailbox is nil: %w", errors.ErrInvalidArgument)).
			WithMessageType(messageType)
	}
	if !reflect.ValueOf(mailbox).Comparable() {
		return errors.NewSubscriptionError(op, fmt.Errorf("mailbox %T is not comparable: %w", mailbox, errors.ErrInvalidArgument)).
			WithMessageType(messageType)
	}
	return nil
}

// Subscribe registers mailbox on b for messages of type T and its subtypes.
func Subscribe[T any](b *Bus, mailbox Mailbox) error {
	return b.Subscribe(typeOf[T](), mailbox)
}

// Unsubscribe removes a registration made with Subscribe[T] or Handle[T].
func Unsubscribe[T any](b *Bus, mailbox Mailbox) error {
	return b.Unsubscribe(typeOf[T](), mailbox)
}

// Handle subscribes fn for messages of type T and returns the mailbox that
// was registered, for use with Unsubscribe.
func Handle[T any](b *Bus, fn func(T) error) (Mailbox, error) {
	if fn == nil {
		return nil, errors.NewSubscriptionError("subscribe", fmt.Errorf("handler is nil: %w", errors.ErrInvalidArgument)).
			WithMessageType(typeOf[T]())
	}
	mailbox := Of(fn)
	if err := Subscribe[T](b, mailbox); err != nil {
		return nil, err
	}
	return mailbox, nil
}
