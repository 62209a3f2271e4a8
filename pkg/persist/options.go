package persist

import (
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vstore/pkg/storage"
)

// TracerName is the instrumentation name used when Options.Tracer is nil.
const TracerName = "github.com/vango-dev/vstore/pkg/persist"

// DefaultTimeout bounds each storage operation issued by the background
// writer and by hydration at creation.
const DefaultTimeout = 5 * time.Second

// Options configures a persisted store.
type Options[S any] struct {
	// Name is the storage key. Required.
	Name string

	// Storage is the persistence medium.
	// Default: a private storage.MemoryStorage.
	Storage storage.Storage

	// Partialize selects what gets written. Default: the whole state.
	Partialize func(state S) any

	// Merge combines a persisted projection with the current state.
	// Default: top-level fields present in persisted replace the matching
	// fields of current, matched by JSON name.
	Merge func(persisted json.RawMessage, current S) (S, error)

	// Version is written into every envelope.
	Version int

	// Migrate upgrades a projection written by an older Version.
	// Without Migrate, entries with a different version are discarded.
	Migrate func(persisted json.RawMessage, fromVersion int) (json.RawMessage, error)

	// SkipHydration leaves the defaults in place at creation.
	// Call Rehydrate to restore later.
	SkipHydration bool

	// OnRehydrate is called after every hydration attempt with the
	// resulting state and the error, if any.
	OnRehydrate func(state S, err error)

	// Sync writes inside Set instead of through the background writer.
	Sync bool

	// Watch rehydrates when the storage reports a change made by another
	// writer. Requires a storage.Watcher backend; ignored otherwise.
	Watch bool

	// Timeout bounds every background storage operation.
	// Default: DefaultTimeout.
	Timeout time.Duration

	// Logger receives persistence diagnostics.
	// Default: slog.Default() tagged with component=persist.
	Logger *slog.Logger

	// Observer is notified of persistence activity.
	Observer Observer

	// Tracer creates the persist.load, persist.save and persist.remove spans.
	// Default: otel.Tracer(TracerName).
	Tracer trace.Tracer
}

func (o *Options[S]) applyDefaults() {
	if o.Storage == nil {
		o.Storage = storage.NewMemoryStorage()
	}
	if o.Partialize == nil {
		o.Partialize = func(s S) any { return s }
	}
	if o.Merge == nil {
		o.Merge = MergeShallow[S]
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "persist")
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(TracerName)
	}
}

// Observer receives persistence activity, typically to record metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	// Saved is called after an entry was written.
	Saved(name string)

	// Hydrated is called after every hydration attempt.
	Hydrated(name string, ok bool)

	// Failed is called when a storage or encoding step failed.
	// op is one of "load", "save", "remove", "encode", "decode", "migrate".
	Failed(name, op string)
}

// NopObserver ignores all activity.
type NopObserver struct{}

func (NopObserver) Saved(string)         {}
func (NopObserver) Hydrated(string, bool) {}
func (NopObserver) Failed(string, string) {}
