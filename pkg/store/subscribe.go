package store

import (
	"sync"
	"sync/atomic"
)

// subscriber is a type-erased registration held by a store.
type subscriber[S any] interface {
	id() uint64
	active() bool
	// since is the sequence of the last transition published before the
	// registration; older transitions are not delivered to it.
	since() uint64
	notify(next, prev S)
}

// registration holds the bookkeeping shared by all subscriber kinds.
type registration struct {
	sid     uint64
	from    uint64
	removed atomic.Bool
}

func (r *registration) id() uint64    { return r.sid }
func (r *registration) since() uint64 { return r.from }
func (r *registration) active() bool  { return !r.removed.Load() }

// stateSubscription fires on every transition.
type stateSubscription[S any] struct {
	registration
	cb func(next, prev S)
}

func (s *stateSubscription[S]) notify(next, prev S) {
	s.cb(next, prev)
}

// selectorSubscription fires when the selected value changes.
type selectorSubscription[S, T any] struct {
	registration
	selector func(S) T
	equal    func(T, T) bool
	cb       func(next, prev T)

	// last is only touched by the store's drain loop after registration.
	last T
}

func (s *selectorSubscription[S, T]) notify(next, _ S) {
	selected := s.selector(next)
	if s.equal(s.last, selected) {
		return
	}
	prev := s.last
	s.last = selected
	s.cb(selected, prev)
}

// SubscribeOption configures a selector subscription.
type SubscribeOption[T any] func(*subscribeConfig[T])

type subscribeConfig[T any] struct {
	equal           func(T, T) bool
	fireImmediately bool
}

// WithEquality sets the function deciding whether the selected value changed.
// Default: Equal.
func WithEquality[T any](fn func(a, b T) bool) SubscribeOption[T] {
	return func(c *subscribeConfig[T]) {
		c.equal = fn
	}
}

// FireImmediately invokes the callback once on registration with the current
// selected value as both next and prev.
func FireImmediately[T any]() SubscribeOption[T] {
	return func(c *subscribeConfig[T]) {
		c.fireImmediately = true
	}
}

// Subscribe registers cb to run on every transition with the new and the
// previous snapshot. The returned function removes exactly this
// registration; calling it more than once is a no-op.
func (s *Store[S]) Subscribe(cb func(next, prev S)) (unsubscribe func()) {
	if cb == nil {
		return func() {}
	}
	sub := &stateSubscription[S]{cb: cb}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(sub, &sub.registration)
}

// SubscribeSelector registers cb to run when the value returned by selector
// changes. Values are compared with Equal unless WithEquality is given.
func SubscribeSelector[S, T any](s *Store[S], selector func(S) T, cb func(next, prev T), opts ...SubscribeOption[T]) (unsubscribe func()) {
	if selector == nil || cb == nil {
		return func() {}
	}

	cfg := subscribeConfig[T]{equal: Equal[T]}
	for _, opt := range opts {
		opt(&cfg)
	}

	sub := &selectorSubscription[S, T]{
		selector: selector,
		equal:    cfg.equal,
		cb:       cb,
	}

	// Seed last under the write lock so no published snapshot is skipped or
	// reported twice relative to the delivery queue.
	s.mu.Lock()
	current := selector(*s.state.Load())
	sub.last = current
	unsubscribe = s.register(sub, &sub.registration)
	s.mu.Unlock()

	if cfg.fireImmediately {
		s.safeCall("subscriber", func() { cb(current, current) })
	}
	return unsubscribe
}

// register appends a subscriber and returns its idempotent remover.
// Must be called with s.mu held.
func (s *Store[S]) register(sub subscriber[S], reg *registration) func() {
	s.subMu.Lock()
	s.nextID++
	reg.sid = s.nextID
	reg.from = s.seq.Load()
	s.subs = append(s.subs, sub)
	s.subMu.Unlock()

	id := reg.sid
	var once sync.Once
	return func() {
		once.Do(func() {
			reg.removed.Store(true)
			s.unsubscribe(id)
		})
	}
}

// unsubscribe removes a subscriber while preserving registration order.
func (s *Store[S]) unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for i, existing := range s.subs {
		if existing.id() == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of active registrations.
func (s *Store[S]) Subscribers() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}
