// Package demo holds the demo stores and wires them into an App.
//
// Stores are created once by NewApp and passed explicitly to whatever
// renders them (the HTTP server, the terminal UI); there are no package
// level store instances.
package demo

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/vango-dev/vstore/pkg/persist"
	"github.com/vango-dev/vstore/pkg/storage"
	"github.com/vango-dev/vstore/pkg/store"
)

// Config configures NewApp.
type Config struct {
	// Storage backs the persisted stores. Default: in-memory.
	Storage storage.Storage

	// WatchStorage rehydrates persisted stores on external changes.
	WatchStorage bool

	// StorageTimeout bounds each storage call. Default: persist.DefaultTimeout.
	StorageTimeout time.Duration

	// Mailer delivers course requests. Default: LogMailer.
	Mailer    Mailer
	MailFrom  string
	MailAdmin string

	// Latency simulates remote calls in the todo and directory actions.
	Latency time.Duration

	Logger          *slog.Logger
	StoreObserver   store.Observer
	PersistObserver persist.Observer
}

// App owns every demo store.
type App struct {
	Counter   *Counter
	Theme     *ThemeStore
	Cart      *Cart
	Todos     *Todos
	Directory *Directory
	Courses   *CourseRequests

	bindings map[string]Binding
}

// NewApp creates all demo stores. The theme store is rehydrated from
// cfg.Storage before NewApp returns.
func NewApp(cfg Config) *App {
	if cfg.Storage == nil {
		cfg.Storage = storage.NewMemoryStorage()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	storeOpts := []store.Option{store.WithLogger(cfg.Logger.With("component", "store"))}
	if cfg.StoreObserver != nil {
		storeOpts = append(storeOpts, store.WithObserver(cfg.StoreObserver))
	}
	actionOpts := []ActionOption{WithLatency(cfg.Latency)}

	a := &App{
		Counter: NewCounter(storeOpts...),
		Theme: NewTheme(persist.Options[ThemeState]{
			Storage:  cfg.Storage,
			Watch:    cfg.WatchStorage,
			Timeout:  cfg.StorageTimeout,
			Logger:   cfg.Logger.With("component", "persist"),
			Observer: cfg.PersistObserver,
		}, storeOpts...),
		Cart:      NewCart(storeOpts...),
		Todos:     NewTodos(actionOpts, storeOpts...),
		Directory: NewDirectory(actionOpts, storeOpts...),
		Courses: NewCourseRequests(CourseRequestsConfig{
			Mailer: cfg.Mailer,
			From:   cfg.MailFrom,
			To:     cfg.MailAdmin,
			Logger: cfg.Logger.With("component", "courses"),
		}, storeOpts...),
	}

	a.bindings = make(map[string]Binding)
	a.register(bind(a.Counter.Store, nil, nil))
	a.register(bind(a.Theme.Store.Store, nil, a.Theme.Rehydrate))
	a.register(bind(a.Cart.Store, func(s CartState) map[string]any {
		return map[string]any{"totalItems": TotalItems(s), "totalPrice": RoundCents(TotalPrice(s))}
	}, nil))
	a.register(bind(a.Todos.Store, func(s TodosState) map[string]any {
		return map[string]any{"open": OpenTodos(s)}
	}, nil))
	a.register(bind(a.Directory.Store, func(s DirectoryState) map[string]any {
		return map[string]any{"loading": Loading(s)}
	}, nil))
	a.register(bind(a.Courses.Store, nil, nil))
	return a
}

func (a *App) register(b Binding) {
	a.bindings[b.Name] = b
}

// Binding returns the render binding of the named store.
func (a *App) Binding(name string) (Binding, bool) {
	b, ok := a.bindings[name]
	return b, ok
}

// StoreNames lists the bound stores in alphabetical order.
func (a *App) StoreNames() []string {
	names := make([]string, 0, len(a.bindings))
	for name := range a.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush waits for pending persistence writes.
func (a *App) Flush(ctx context.Context) error {
	return a.Theme.Flush(ctx)
}

// Close stops the persistence machinery after writing pending state.
func (a *App) Close() error {
	return a.Theme.Close()
}
