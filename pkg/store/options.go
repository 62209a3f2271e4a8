package store

import "log/slog"

// Option configures a store.
type Option func(*options)

type options struct {
	name     string
	logger   *slog.Logger
	observer Observer
}

func defaultOptions() options {
	return options{
		name:     "store",
		logger:   slog.Default().With("component", "store"),
		observer: NopObserver{},
	}
}

// WithName sets the store name used in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the logger used to report isolated callback panics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets the observer notified of store activity.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// Observer receives store activity, typically to record metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	// StateChanged is called once per delivered transition with the number
	// of subscribers about to be notified.
	StateChanged(store string, subscribers int)

	// CallbackPanicked is called when a hook or subscriber panicked.
	CallbackPanicked(store string)
}

// NopObserver ignores all activity.
type NopObserver struct{}

func (NopObserver) StateChanged(string, int) {}
func (NopObserver) CallbackPanicked(string)  {}
