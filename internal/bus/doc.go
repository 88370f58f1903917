// Package bus provides an in-process publish/subscribe message bus that
// dispatches by Go type.
//
// Producers post values of any type. Consumers register a [Mailbox] under a
// message type and receive every posted value whose dynamic type is that type
// or, when the subscription type is an interface, any type implementing it.
// Subscribing to a broad interface therefore receives every narrower message.
//
// # Main Types
//
//   - [Bus]: the dispatcher; Subscribe, Unsubscribe and Post
//   - [Mailbox]: the consumer capability, a single Receive method
//   - [ReturnedMessage]: a posted message that matched no mailbox
//   - [FailedMessage]: a mailbox that rejected a message with a recoverable error
//
// # Delivery Rules
//
// A post resolves the matching mailboxes under the registry lock, releases it,
// and then calls each mailbox in turn on the caller's goroutine. Mailboxes
// subscribed to more general types are visited before mailboxes subscribed to
// more specific ones; mailboxes sharing a subscription type are visited in
// subscription order. Types that are unrelated to each other have no defined
// relative order.
//
// An error returned from Receive is recoverable: it is reported through the
// failure callback and delivery continues. An error marked with errors.Fatal
// stops delivery of that message and is returned from Post. A panic in a
// mailbox is not recovered.
//
// A message is returned (dead-lettered) only when no mailbox matched it at
// all. A message that reached a mailbox which then failed is not returned.
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Mailboxes may subscribe, unsubscribe or
// post from inside Receive. Each post sees the subscriptions that existed when
// it resolved its mailboxes; later changes do not affect an in-flight post.
//
// # Basic Usage
//
//	b, err := bus.New(bus.Discard[bus.ReturnedMessage](), bus.Discard[bus.FailedMessage](), bus.Ignore())
//
//	// Receive every Event, including InstanceStarted values
//	audit, err := bus.Handle(b, func(e Event) error {
//	    log.Printf("event: %v", e)
//	    return nil
//	})
//
//	err = b.Post(InstanceStarted{ID: "inst-1"})
//
//	// Stop receiving
//	err = bus.Unsubscribe[Event](b, audit)
package bus
