// Package loadgen drives a bus with a synthetic, concurrent workload and
// reports what happened to every posted message.
package loadgen

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/magicbus/internal/bus"
	"github.com/Iron-Ham/magicbus/internal/errors"
)

// ErrInjected is returned by a worker mailbox on each injected failure.
var ErrInjected = errors.New("injected failure")

// Options controls the shape of a run.
type Options struct {
	// Messages is how many messages each publisher posts.
	Messages int
	// Publishers is the number of goroutines posting concurrently.
	Publishers int
	// MailboxesPerType is how many mailboxes subscribe at each level of the
	// hierarchy: Event, InstanceEvent, InstanceStarted and InstanceStopped.
	MailboxesPerType int
	// FailureEvery makes each mailbox fail recoverably on every Nth message
	// it receives. Zero disables failures.
	FailureEvery int
}

func (o Options) validate() error {
	switch {
	case o.Messages <= 0:
		return fmt.Errorf("messages must be positive, got %d: %w", o.Messages, errors.ErrInvalidArgument)
	case o.Publishers <= 0:
		return fmt.Errorf("publishers must be positive, got %d: %w", o.Publishers, errors.ErrInvalidArgument)
	case o.MailboxesPerType < 0:
		return fmt.Errorf("mailboxes per type must be non-negative, got %d: %w", o.MailboxesPerType, errors.ErrInvalidArgument)
	case o.FailureEvery < 0:
		return fmt.Errorf("failure interval must be non-negative, got %d: %w", o.FailureEvery, errors.ErrInvalidArgument)
	}
	return nil
}

// Hooks are extra sinks chained after the run's own counters. Nil hooks are
// skipped.
type Hooks struct {
	Returned func(bus.ReturnedMessage)
	Failed   func(bus.FailedMessage)
	Observed func(bus.Mailbox, any)
}

// Report summarizes a completed run.
type Report struct {
	BusName   string
	Posted    int64
	Delivered int64
	Failed    int64
	Returned  int64
	Elapsed   time.Duration
	// Subscriptions lists each subscribed type with its mailbox count, in
	// subscription order.
	Subscriptions []Subscription
}

// Subscription is one row of the subscription table in a Report.
type Subscription struct {
	Type      string
	Mailboxes int
}

// Throughput returns posted messages per second.
func (r *Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Posted) / r.Elapsed.Seconds()
}

// worker is a counting mailbox that fails on a fixed interval.
type worker struct {
	name      string
	failEvery int64
	received  atomic.Int64
}

func (w *worker) Receive(message any) error {
	n := w.received.Add(1)
	if w.failEvery > 0 && n%w.failEvery == 0 {
		return fmt.Errorf("%s on message %d: %w", w.name, n, ErrInjected)
	}
	return nil
}

func (w *worker) String() string { return w.name }

// subscriptionTypes are the hierarchy levels that get workers, most general
// first.
var subscriptionTypes = []reflect.Type{
	reflect.TypeFor[Event](),
	reflect.TypeFor[InstanceEvent](),
	reflect.TypeFor[InstanceStarted](),
	reflect.TypeFor[InstanceStopped](),
}

// Run builds a bus, subscribes the workers, and posts the workload from
// opts.Publishers goroutines. It stops early when ctx is cancelled or a post
// fails, returning the partial report alongside the error.
func Run(ctx context.Context, opts Options, hooks Hooks, busOpts ...bus.Option) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var posted, delivered, failed, returned atomic.Int64

	b, err := bus.New(
		bus.Chain(func(bus.ReturnedMessage) { returned.Add(1) }, hooks.Returned),
		bus.Chain(func(bus.FailedMessage) { failed.Add(1) }, hooks.Failed),
		bus.ChainObservers(func(bus.Mailbox, any) { delivered.Add(1) }, hooks.Observed),
		busOpts...,
	)
	if err != nil {
		return nil, err
	}

	for _, t := range subscriptionTypes {
		for i := range opts.MailboxesPerType {
			w := &worker{
				name:      fmt.Sprintf("%s#%d", t.Name(), i),
				failEvery: int64(opts.FailureEvery),
			}
			if err := b.Subscribe(t, w); err != nil {
				return nil, err
			}
		}
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for p := range opts.Publishers {
		g.Go(func() error {
			for i := range opts.Messages {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := b.Post(message(p, i)); err != nil {
					return err
				}
				posted.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()

	report := &Report{
		BusName:   b.Name(),
		Posted:    posted.Load(),
		Delivered: delivered.Load(),
		Failed:    failed.Load(),
		Returned:  returned.Load(),
		Elapsed:   time.Since(start),
	}
	for _, t := range b.Types() {
		report.Subscriptions = append(report.Subscriptions, Subscription{
			Type:      t.String(),
			Mailboxes: opts.MailboxesPerType,
		})
	}
	return report, err
}

// Expected returns the delivered and returned totals a run with opts should
// produce when it completes without cancellation.
func Expected(opts Options) (delivered, returned int64) {
	m := int64(opts.MailboxesPerType)
	for i := range opts.Messages {
		var perMessage int64
		switch i % kinds {
		case 0, 1:
			// Event, InstanceEvent and the concrete type.
			perMessage = 3 * m
		case 2:
			perMessage = m
		}
		delivered += perMessage * int64(opts.Publishers)
		if perMessage == 0 {
			returned += int64(opts.Publishers)
		}
	}
	return delivered, returned
}
