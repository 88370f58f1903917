package bus

import (
	"reflect"
	"slices"
	"sync"

	"github.com/Iron-Ham/magicbus/internal/errors"
)

// typeOf returns the reflect.Type for T, including interface types.
func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// typeOfValue returns the dynamic type of v, or nil for a nil interface.
func typeOfValue(v any) reflect.Type {
	return reflect.TypeOf(v)
}

// accepts reports whether a mailbox subscribed under key should receive a
// message whose dynamic type is t: the same type, or an interface t implements.
func accepts(key, t reflect.Type) bool {
	if key == t {
		return true
	}
	return key.Kind() == reflect.Interface && t.Implements(key)
}

// generalizes reports whether a is a strict ancestor of b. Interfaces with
// identical method sets implement each other and are treated as unrelated.
func generalizes(a, b reflect.Type) bool {
	return a != b && accepts(a, b) && !accepts(b, a)
}

// subscribers holds the mailboxes registered under one exact type, in
// subscription order.
type subscribers struct {
	mailboxes []Mailbox
}

func (s *subscribers) contains(mailbox Mailbox) bool {
	return slices.Contains(s.mailboxes, mailbox)
}

func (s *subscribers) remove(mailbox Mailbox) bool {
	i := slices.Index(s.mailboxes, mailbox)
	if i < 0 {
		return false
	}
	s.mailboxes = slices.Delete(s.mailboxes, i, i+1)
	return true
}

// registry maps subscription types to their mailboxes.
//
// Entries are keyed by exact type identity. The ancestor ordering is applied
// only when a lookup builds its result, so unrelated types never share an
// entry even though they tie in that ordering.
type registry struct {
	mu      sync.Mutex
	entries map[reflect.Type]*subscribers
	keys    []reflect.Type // first-subscription order of live entries
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[reflect.Type]*subscribers),
	}
}

// subscribe adds mailbox under t. Repeating a pair is a no-op.
func (r *registry) subscribe(t reflect.Type, mailbox Mailbox) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[t]
	if !ok {
		entry = &subscribers{}
		r.entries[t] = entry
		r.keys = append(r.keys, t)
	}
	if !entry.contains(mailbox) {
		entry.mailboxes = append(entry.mailboxes, mailbox)
	}
}

// unsubscribe removes mailbox from t, dropping the entry once it is empty.
func (r *registry) unsubscribe(t reflect.Type, mailbox Mailbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[t]
	if !ok || !entry.remove(mailbox) {
		return errors.NewSubscriptionError("unsubscribe", errors.ErrNoSuchSubscription).WithMessageType(t)
	}
	if len(entry.mailboxes) == 0 {
		delete(r.entries, t)
		r.keys = slices.DeleteFunc(r.keys, func(k reflect.Type) bool { return k == t })
	}
	return nil
}

// matching returns a snapshot of every mailbox whose subscription type
// accepts t, most general subscription types first.
func (r *registry) matching(t reflect.Type) []Mailbox {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys []reflect.Type
	for _, key := range r.keys {
		if accepts(key, t) {
			keys = append(keys, key)
		}
	}

	var out []Mailbox
	for _, key := range orderGeneralFirst(keys) {
		out = append(out, r.entries[key].mailboxes...)
	}
	return out
}

// count returns the number of (type, mailbox) pairs.
func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, entry := range r.entries {
		n += len(entry.mailboxes)
	}
	return n
}

// types returns the subscription types in first-subscription order.
func (r *registry) types() []reflect.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.keys)
}

// orderGeneralFirst sorts keys so that no type appears after one of its
// descendants. The relation is only a partial order, so a comparison sort
// cannot be used; this picks, at each step, the earliest remaining key that
// has no remaining ancestor. Unrelated keys keep their input order.
func orderGeneralFirst(keys []reflect.Type) []reflect.Type {
	if len(keys) < 2 {
		return keys
	}

	remaining := slices.Clone(keys)
	ordered := make([]reflect.Type, 0, len(keys))
	for len(remaining) > 0 {
		pick := 0
		for i, candidate := range remaining {
			if !hasAncestorIn(candidate, remaining) {
				pick = i
				break
			}
		}
		ordered = append(ordered, remaining[pick])
		remaining = slices.Delete(remaining, pick, pick+1)
	}
	return ordered
}

func hasAncestorIn(t reflect.Type, keys []reflect.Type) bool {
	for _, k := range keys {
		if generalizes(k, t) {
			return true
		}
	}
	return false
}
