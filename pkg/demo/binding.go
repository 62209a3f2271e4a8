package demo

import (
	"context"

	"github.com/vango-dev/vstore/pkg/store"
)

// Snapshot is the render document of a store: its state, the values
// derived from it and the number of transitions it has seen.
type Snapshot struct {
	Store    string         `json:"store"`
	State    any            `json:"state"`
	Computed map[string]any `json:"computed,omitempty"`
	Version  uint64         `json:"version"`
}

// Binding exposes one store to renderers without its state type.
type Binding struct {
	Name string

	// Snapshot returns the current document.
	Snapshot func() Snapshot

	// Subscribe calls fn with a document after every transition.
	Subscribe func(fn func(Snapshot)) (unsubscribe func())

	// Rehydrate reloads persisted state. Nil for in-memory stores.
	Rehydrate func(ctx context.Context) error
}

// Persisted reports whether the store can be rehydrated.
func (b Binding) Persisted() bool {
	return b.Rehydrate != nil
}

func bind[S any](s *store.Store[S], computed func(S) map[string]any, rehydrate func(context.Context) error) Binding {
	doc := func(state S) Snapshot {
		snap := Snapshot{Store: s.Name(), State: state, Version: s.Transitions()}
		if computed != nil {
			snap.Computed = computed(state)
		}
		return snap
	}
	return Binding{
		Name: s.Name(),
		Snapshot: func() Snapshot {
			return doc(s.Get())
		},
		Subscribe: func(fn func(Snapshot)) func() {
			return s.Subscribe(func(next, _ S) { fn(doc(next)) })
		},
		Rehydrate: rehydrate,
	}
}
