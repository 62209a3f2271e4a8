package store

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// SetFunc applies a shallow patch to a store.
type SetFunc[S any] func(patch func(draft *S))

// GetFunc returns the current snapshot of a store.
type GetFunc[S any] func() S

// Initializer builds the initial state and the updaters of a store.
// It runs exactly once, inside Create.
type Initializer[S, A any] func(set SetFunc[S], get GetFunc[S]) (S, A)

// Hook observes every transition before subscribers are notified.
type Hook[S any] func(next, prev S)

// transition is one applied state change awaiting delivery.
type transition[S any] struct {
	seq  uint64
	next S
	prev S
}

// Store is an observable container for a single piece of application state.
type Store[S any] struct {
	name     string
	logger   *slog.Logger
	observer Observer

	// state is the current snapshot. Snapshots are never mutated after
	// they are published.
	state atomic.Pointer[S]

	// mu serializes writers and guards batch bookkeeping and hooks.
	mu         sync.Mutex
	batchDepth int
	batchPrev  S
	batchDirty bool
	hooks      []*hookEntry[S]

	// seq counts published transitions. Written with mu held.
	seq atomic.Uint64

	subMu  sync.RWMutex
	subs   []subscriber[S]
	nextID uint64

	// queueMu guards the delivery queue. Lock order is mu then queueMu.
	queueMu  sync.Mutex
	queue    []transition[S]
	draining bool
}

type hookEntry[S any] struct {
	fn Hook[S]
}

// New creates a store holding initial.
func New[S any](initial S, opts ...Option) *Store[S] {
	s := newStore[S](opts...)
	s.state.Store(&initial)
	return s
}

// Create creates a store from an initializer. The initializer receives the
// store's set and get functions and returns the initial state together with
// the updaters bound to them.
func Create[S, A any](init Initializer[S, A], opts ...Option) (*Store[S], A) {
	s := newStore[S](opts...)
	var zero S
	s.state.Store(&zero)

	initial, actions := init(s.Set, s.Get)
	s.state.Store(&initial)
	return s, actions
}

func newStore[S any](opts ...Option) *Store[S] {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store[S]{
		name:     cfg.name,
		logger:   cfg.logger.With("store", cfg.name),
		observer: cfg.observer,
	}
}

// Name returns the store name used in logs and metrics.
func (s *Store[S]) Name() string {
	return s.name
}

// Get returns the current snapshot. It never blocks.
func (s *Store[S]) Get() S {
	return *s.state.Load()
}

// Set applies patch to a shallow copy of the current snapshot and publishes
// the result. Fields assigned by patch replace the previous values wholesale.
// A patch that panics is logged and publishes nothing.
func (s *Store[S]) Set(patch func(draft *S)) {
	if patch == nil {
		return
	}

	s.mu.Lock()
	prev := *s.state.Load()
	next := prev
	if !s.safeCall("patch", func() { patch(&next) }) {
		s.mu.Unlock()
		return
	}
	s.state.Store(&next)

	if s.batchDepth > 0 {
		s.batchDirty = true
		s.mu.Unlock()
		return
	}
	s.enqueue(transition[S]{next: next, prev: prev})
	s.mu.Unlock()

	s.drain()
}

// SetState replaces the whole snapshot.
func (s *Store[S]) SetState(next S) {
	s.Set(func(draft *S) { *draft = next })
}

// Use registers a hook that runs for every transition before subscribers.
// The returned function removes the hook.
func (s *Store[S]) Use(hook Hook[S]) (remove func()) {
	if hook == nil {
		return func() {}
	}
	entry := &hookEntry[S]{fn: hook}

	s.mu.Lock()
	s.hooks = append(s.hooks, entry)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, h := range s.hooks {
				if h == entry {
					s.hooks = append(s.hooks[:i:i], s.hooks[i+1:]...)
					return
				}
			}
		})
	}
}

// enqueue numbers and appends a transition. Must be called with s.mu held so
// queue order matches the order in which snapshots were published.
func (s *Store[S]) enqueue(t transition[S]) {
	t.seq = s.seq.Add(1)

	s.queueMu.Lock()
	s.queue = append(s.queue, t)
	s.queueMu.Unlock()
}

// drain delivers queued transitions. Only one goroutine drains at a time;
// other callers return and leave their transitions to the active drainer.
func (s *Store[S]) drain() {
	s.queueMu.Lock()
	if s.draining {
		s.queueMu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 {
		t := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		s.deliver(t)

		s.queueMu.Lock()
	}
	s.queue = nil
	s.draining = false
	s.queueMu.Unlock()
}

// deliver runs hooks and subscribers for one transition.
// Uses copy-before-notify so no lock is held while callbacks run.
func (s *Store[S]) deliver(t transition[S]) {
	s.mu.Lock()
	hooks := make([]*hookEntry[S], len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, h := range hooks {
		s.safeCall("hook", func() { h.fn(t.next, t.prev) })
	}

	s.subMu.RLock()
	subs := make([]subscriber[S], len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	s.observer.StateChanged(s.name, len(subs))

	for _, sub := range subs {
		if !sub.active() || sub.since() >= t.seq {
			continue
		}
		s.safeCall("subscriber", func() { sub.notify(t.next, t.prev) })
	}
}

// safeCall isolates a callback so a panic does not abort the notification
// round or leave a lock held. It reports whether fn returned normally.
func (s *Store[S]) safeCall(kind string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.logger.Error("store callback panicked",
				"kind", kind,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			s.observer.CallbackPanicked(s.name)
		}
	}()
	fn()
	return true
}

// Transitions returns the number of transitions published so far.
// Inside a Batch the pending transition is not counted until the batch ends.
func (s *Store[S]) Transitions() uint64 {
	return s.seq.Load()
}

// Select reads a derived value from the current snapshot.
func Select[S, T any](s *Store[S], selector func(S) T) T {
	return selector(s.Get())
}

// Derive binds a derived read function to a store. The returned function
// recomputes from the current snapshot on every call.
func Derive[S, T any](s *Store[S], fn func(S) T) func() T {
	return func() T {
		return fn(s.Get())
	}
}
