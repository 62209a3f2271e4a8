package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vstore/pkg/storage"
	"github.com/vango-dev/vstore/pkg/store"
)

// ErrVersionMismatch is reported when a stored entry has a different version
// and no Migrate function is configured.
var ErrVersionMismatch = errors.New("persist: version mismatch")

// Store is a store whose state is persisted to a storage.Storage.
// All store.Store methods are available through embedding.
type Store[S any] struct {
	*store.Store[S]

	opts   Options[S]
	name   string
	logger *slog.Logger

	removeHook func()
	stopWatch  func()

	hydrated atomic.Bool
	closed   atomic.Bool
	closing  sync.Once

	lmu          sync.Mutex
	onHydrate    map[uint64]func(S)
	onFinish     map[uint64]func(S)
	nextListener uint64

	// emu guards skip and lastSaved. skip holds the encoding of a hydrated
	// snapshot, which must not be written back. lastSaved holds the most
	// recent write, used to recognise our own writes in watch events.
	emu       sync.Mutex
	skip      []byte
	lastSaved []byte

	// Background writer state, guarded by wmu.
	wmu        sync.Mutex
	pending    []byte
	hasPending bool
	queued     uint64
	written    uint64
	progress   chan struct{}
	wake       chan struct{}
	stop       chan struct{}
	done       chan struct{}
}

// New creates a persisted store holding initial and hydrates it from
// storage unless opts.SkipHydration is set.
func New[S any](initial S, opts Options[S], storeOpts ...store.Option) *Store[S] {
	return wrap(store.New(initial, storeOpts...), opts)
}

// Create is store.Create for persisted stores. The actions returned by init
// write through the persisted store.
func Create[S, A any](init store.Initializer[S, A], opts Options[S], storeOpts ...store.Option) (*Store[S], A) {
	s, actions := store.Create(init, storeOpts...)
	return wrap(s, opts), actions
}

func wrap[S any](s *store.Store[S], opts Options[S]) *Store[S] {
	opts.applyDefaults()
	name := opts.Name
	if name == "" {
		name = s.Name()
	}

	p := &Store[S]{
		Store:     s,
		opts:      opts,
		name:      name,
		logger:    opts.Logger.With("entry", name),
		onHydrate: make(map[uint64]func(S)),
		onFinish:  make(map[uint64]func(S)),
		progress:  make(chan struct{}),
	}

	if !opts.Sync {
		p.wake = make(chan struct{}, 1)
		p.stop = make(chan struct{})
		p.done = make(chan struct{})
		go p.run()
	}

	p.removeHook = s.Use(p.persist)

	if !opts.SkipHydration {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		_ = p.Rehydrate(ctx)
		cancel()
	}

	if opts.Watch {
		p.watch()
	}
	return p
}

// EntryName returns the storage key of the store.
func (p *Store[S]) EntryName() string {
	return p.name
}

// Storage returns the backend the store persists to.
func (p *Store[S]) Storage() storage.Storage {
	return p.opts.Storage
}

// Version returns the version written into every envelope.
func (p *Store[S]) Version() int {
	return p.opts.Version
}

// HasHydrated reports whether a hydration has completed.
func (p *Store[S]) HasHydrated() bool {
	return p.hydrated.Load()
}

// OnHydrate registers fn to run when a hydration starts.
func (p *Store[S]) OnHydrate(fn func(state S)) (remove func()) {
	return p.addListener(p.onHydrate, fn)
}

// OnFinishHydration registers fn to run when a hydration completes,
// successfully or not.
func (p *Store[S]) OnFinishHydration(fn func(state S)) (remove func()) {
	return p.addListener(p.onFinish, fn)
}

func (p *Store[S]) addListener(set map[uint64]func(S), fn func(S)) func() {
	if fn == nil {
		return func() {}
	}
	p.lmu.Lock()
	p.nextListener++
	id := p.nextListener
	set[id] = fn
	p.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.lmu.Lock()
			delete(set, id)
			p.lmu.Unlock()
		})
	}
}

func (p *Store[S]) callListeners(set map[uint64]func(S), state S) {
	p.lmu.Lock()
	fns := make([]func(S), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	p.lmu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Rehydrate reloads the persisted entry and merges it into the current
// state. The state is left untouched if the entry is missing or unusable.
// The returned error is informational; it has already been logged.
func (p *Store[S]) Rehydrate(ctx context.Context) error {
	data, err := p.load(ctx)
	return p.hydrate(data, err)
}

func (p *Store[S]) hydrate(data []byte, err error) error {
	p.hydrated.Store(false)
	p.callListeners(p.onHydrate, p.Get())

	if err == nil && data != nil {
		err = p.apply(data)
	}
	if err != nil {
		p.logger.Debug("persist hydration failed, keeping current state", "error", err)
	}

	state := p.Get()
	p.opts.Observer.Hydrated(p.name, err == nil)
	if p.opts.OnRehydrate != nil {
		p.opts.OnRehydrate(state, err)
	}

	p.hydrated.Store(true)
	p.callListeners(p.onFinish, state)
	return err
}

// apply decodes an envelope, migrates it if needed and merges it into the
// current state.
func (p *Store[S]) apply(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		p.opts.Observer.Failed(p.name, "decode")
		return fmt.Errorf("persist: decode %s: %w", p.name, err)
	}

	raw := env.State
	migrated := false
	if env.Version != p.opts.Version {
		if p.opts.Migrate == nil {
			p.opts.Observer.Failed(p.name, "migrate")
			return fmt.Errorf("%w: %s stored version %d, want %d", ErrVersionMismatch, p.name, env.Version, p.opts.Version)
		}
		next, err := p.opts.Migrate(raw, env.Version)
		if err != nil {
			p.opts.Observer.Failed(p.name, "migrate")
			return fmt.Errorf("persist: migrate %s from version %d: %w", p.name, env.Version, err)
		}
		raw = next
		migrated = true
	}

	// An entry that does not merge leaves the store untouched.
	if _, err := p.opts.Merge(raw, p.Get()); err != nil {
		p.opts.Observer.Failed(p.name, "decode")
		return fmt.Errorf("persist: merge %s: %w", p.name, err)
	}

	p.Set(func(draft *S) {
		if merged, err := p.opts.Merge(raw, *draft); err == nil {
			*draft = merged
		}
		// A migrated entry is written back in the current version.
		if !migrated {
			p.skipWrite(*draft)
		}
	})
	return nil
}

// skipWrite marks the encoding of state as already persisted.
func (p *Store[S]) skipWrite(state S) {
	data, err := p.encode(state)
	if err != nil {
		return
	}
	p.emu.Lock()
	p.skip = data
	p.emu.Unlock()
}

// encode builds the stored envelope for state.
func (p *Store[S]) encode(state S) ([]byte, error) {
	raw, err := json.Marshal(p.opts.Partialize(state))
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{State: raw, Version: p.opts.Version})
}

// persist is the store hook that writes every transition.
func (p *Store[S]) persist(next, _ S) {
	if p.closed.Load() {
		return
	}

	data, err := p.encode(next)
	if err != nil {
		p.logger.Warn("persist encode failed", "error", err)
		p.opts.Observer.Failed(p.name, "encode")
		return
	}

	p.emu.Lock()
	skip := p.skip
	p.skip = nil
	p.emu.Unlock()
	if skip != nil && bytes.Equal(skip, data) {
		return
	}

	if p.opts.Sync {
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
		defer cancel()
		p.save(ctx, data)
		return
	}
	p.enqueue(data)
}

// ClearStorage removes the persisted entry. The in-memory state is kept.
func (p *Store[S]) ClearStorage(ctx context.Context) error {
	if err := p.Flush(ctx); err != nil {
		return err
	}

	ctx, span := p.opts.Tracer.Start(ctx, "persist.remove",
		trace.WithAttributes(attribute.String("persist.name", p.name)))
	defer span.End()

	p.emu.Lock()
	p.lastSaved = nil
	p.emu.Unlock()

	if err := p.opts.Storage.Remove(ctx, p.name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("persist remove failed", "error", err)
		p.opts.Observer.Failed(p.name, "remove")
		return fmt.Errorf("persist: remove %s: %w", p.name, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (p *Store[S]) load(ctx context.Context) ([]byte, error) {
	ctx, span := p.opts.Tracer.Start(ctx, "persist.load",
		trace.WithAttributes(attribute.String("persist.name", p.name)))
	defer span.End()

	data, err := p.opts.Storage.Load(ctx, p.name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.opts.Observer.Failed(p.name, "load")
		return nil, fmt.Errorf("persist: load %s: %w", p.name, err)
	}
	span.SetAttributes(attribute.Bool("persist.found", data != nil))
	span.SetStatus(codes.Ok, "")
	return data, nil
}

func (p *Store[S]) save(ctx context.Context, data []byte) {
	ctx, span := p.opts.Tracer.Start(ctx, "persist.save",
		trace.WithAttributes(
			attribute.String("persist.name", p.name),
			attribute.Int("persist.bytes", len(data)),
		))
	defer span.End()

	// Recorded before the write: watchers may fire from inside Save.
	p.emu.Lock()
	p.lastSaved = data
	p.emu.Unlock()

	if err := p.opts.Storage.Save(ctx, p.name, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("persist save failed", "error", err)
		p.opts.Observer.Failed(p.name, "save")
		return
	}
	span.SetStatus(codes.Ok, "")
	p.opts.Observer.Saved(p.name)
}

// watch subscribes to external changes of the entry.
func (p *Store[S]) watch() {
	w, ok := p.opts.Storage.(storage.Watcher)
	if !ok {
		p.logger.Debug("storage cannot be watched")
		return
	}
	stop, err := w.Watch(context.Background(), p.name, p.externalChange)
	if err != nil {
		p.logger.Warn("persist watch failed", "error", err)
		return
	}
	p.stopWatch = stop
}

// externalChange rehydrates from storage unless the entry holds our own
// latest write. A removed entry leaves the state untouched.
func (p *Store[S]) externalChange() {
	if p.closed.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()

	data, err := p.load(ctx)
	if err != nil || data == nil {
		return
	}

	p.emu.Lock()
	own := bytes.Equal(data, p.lastSaved)
	p.emu.Unlock()
	if own {
		return
	}
	_ = p.hydrate(data, nil)
}

// Close stops the background writer after writing anything still queued,
// and stops watching storage. The store keeps working in memory. The
// storage backend is not closed since it may be shared.
func (p *Store[S]) Close() error {
	p.closing.Do(func() {
		p.closed.Store(true)
		p.removeHook()
		if p.stopWatch != nil {
			p.stopWatch()
		}
		if p.stop != nil {
			close(p.stop)
			<-p.done
		}
	})
	return nil
}
