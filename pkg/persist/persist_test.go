package persist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/vango-dev/vstore/pkg/storage"
	"github.com/vango-dev/vstore/pkg/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type prefs struct {
	Theme string          `json:"theme"`
	Count int             `json:"count"`
	Tags  map[string]bool `json:"tags,omitempty"`
}

// countingStorage wraps a backend, counting writes and injecting failures.
type countingStorage struct {
	storage.Storage

	saves    atomic.Int32
	failSave error
	failLoad error
	gate     chan struct{}
}

func (c *countingStorage) Load(ctx context.Context, name string) ([]byte, error) {
	if c.failLoad != nil {
		return nil, c.failLoad
	}
	return c.Storage.Load(ctx, name)
}

func (c *countingStorage) Save(ctx context.Context, name string, data []byte) error {
	if c.gate != nil {
		<-c.gate
	}
	c.saves.Add(1)
	if c.failSave != nil {
		return c.failSave
	}
	return c.Storage.Save(ctx, name, data)
}

type recordingObserver struct {
	mu       sync.Mutex
	saved    int
	hydrated []bool
	failed   []string
}

func (r *recordingObserver) Saved(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved++
}

func (r *recordingObserver) Hydrated(_ string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hydrated = append(r.hydrated, ok)
}

func (r *recordingObserver) Failed(_ string, op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, op)
}

func themeOnly(s prefs) any {
	return map[string]any{"theme": s.Theme}
}

func readEnvelope(t *testing.T, s storage.Storage, name string) envelope {
	t.Helper()
	data, err := s.Load(context.Background(), name)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if data == nil {
		t.Fatalf("expected entry %s to exist", name)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestRehydratesOnlyAllowListedFields(t *testing.T) {
	backend := storage.NewMemoryStorage()
	opts := Options[prefs]{
		Name:       "theme-storage",
		Storage:    backend,
		Partialize: themeOnly,
		Sync:       true,
	}

	first := New(prefs{Theme: "system"}, opts)
	first.Set(func(s *prefs) {
		s.Theme = "dark"
		s.Count = 5
	})
	first.Close()

	second := New(prefs{Theme: "system"}, opts)
	defer second.Close()

	want := prefs{Theme: "dark", Count: 0}
	if diff := cmp.Diff(want, second.Get()); diff != "" {
		t.Errorf("rehydrated state mismatch (-want +got):\n%s", diff)
	}
	if !second.HasHydrated() {
		t.Error("expected HasHydrated after creation")
	}

	env := readEnvelope(t, backend, "theme-storage")
	if string(env.State) != `{"theme":"dark"}` {
		t.Errorf("expected only theme to be written, got %s", env.State)
	}
}

func TestThemeReloadScenario(t *testing.T) {
	backend := storage.NewMemoryStorage()
	opts := Options[prefs]{Name: "theme-storage", Storage: backend, Partialize: themeOnly}

	page := New(prefs{Theme: "system"}, opts)
	page.Set(func(s *prefs) { s.Theme = "dark" })
	if err := page.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	page.Close()

	reloaded := New(prefs{Theme: "system"}, opts)
	defer reloaded.Close()
	if got := reloaded.Get().Theme; got != "dark" {
		t.Errorf("expected dark after reload, got %s", got)
	}
}

func TestMissingEntryKeepsDefaults(t *testing.T) {
	obs := &recordingObserver{}
	var gotErr error
	called := false

	p := New(prefs{Theme: "system", Count: 1}, Options[prefs]{
		Name:     "missing",
		Observer: obs,
		OnRehydrate: func(_ prefs, err error) {
			called = true
			gotErr = err
		},
	})
	defer p.Close()

	if diff := cmp.Diff(prefs{Theme: "system", Count: 1}, p.Get()); diff != "" {
		t.Errorf("defaults changed (-want +got):\n%s", diff)
	}
	if !called || gotErr != nil {
		t.Errorf("expected OnRehydrate with nil error, called=%v err=%v", called, gotErr)
	}
	if diff := cmp.Diff([]bool{true}, obs.hydrated); diff != "" {
		t.Errorf("hydration reports mismatch (-want +got):\n%s", diff)
	}
}

func TestCorruptEntryFallsBackToDefaults(t *testing.T) {
	backend := storage.NewMemoryStorage()
	_ = backend.Save(context.Background(), "theme-storage", []byte("{not json"))
	obs := &recordingObserver{}
	var gotErr error

	p := New(prefs{Theme: "system"}, Options[prefs]{
		Name:        "theme-storage",
		Storage:     backend,
		Observer:    obs,
		OnRehydrate: func(_ prefs, err error) { gotErr = err },
	})
	defer p.Close()

	if got := p.Get().Theme; got != "system" {
		t.Errorf("expected defaults, got %s", got)
	}
	if gotErr == nil {
		t.Error("expected OnRehydrate to receive the decode error")
	}
	if !p.HasHydrated() {
		t.Error("a failed hydration still completes")
	}
	if diff := cmp.Diff([]string{"decode"}, obs.failed); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmergeableEntryPublishesNothing(t *testing.T) {
	backend := storage.NewMemoryStorage()
	obs := &recordingObserver{}
	p := New(prefs{Theme: "system", Count: 3}, Options[prefs]{
		Name:     "theme-storage",
		Storage:  backend,
		Observer: obs,
	})
	defer p.Close()

	notified := 0
	p.Subscribe(func(next, prev prefs) { notified++ })
	before := p.Transitions()

	_ = backend.Save(context.Background(), "theme-storage", []byte(`{"state":{"count":"many"},"version":0}`))
	if err := p.Rehydrate(context.Background()); err == nil {
		t.Fatal("expected a merge error")
	}

	if notified != 0 || p.Transitions() != before {
		t.Errorf("expected no transition, got notified=%d transitions=%d->%d", notified, before, p.Transitions())
	}
	if diff := cmp.Diff(prefs{Theme: "system", Count: 3}, p.Get()); diff != "" {
		t.Errorf("state changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"decode"}, obs.failed); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrorIsSwallowed(t *testing.T) {
	backend := &countingStorage{
		Storage:  storage.NewMemoryStorage(),
		failLoad: errors.New("disk on fire"),
	}

	p := New(prefs{Theme: "light"}, Options[prefs]{Name: "x", Storage: backend, Sync: true})
	defer p.Close()

	if got := p.Get().Theme; got != "light" {
		t.Errorf("expected defaults, got %s", got)
	}
	if err := p.Rehydrate(context.Background()); err == nil {
		t.Error("Rehydrate should report the load error")
	}
}

func TestSaveErrorIsSwallowed(t *testing.T) {
	backend := &countingStorage{
		Storage:  storage.NewMemoryStorage(),
		failSave: errors.New("quota exceeded"),
	}
	obs := &recordingObserver{}

	p := New(prefs{}, Options[prefs]{Name: "x", Storage: backend, Observer: obs, Sync: true})
	defer p.Close()

	p.Set(func(s *prefs) { s.Count = 1 })
	p.Set(func(s *prefs) { s.Count = 2 })

	if got := p.Get().Count; got != 2 {
		t.Errorf("in-memory state must advance despite write failures, got %d", got)
	}
	if diff := cmp.Diff([]string{"save", "save"}, obs.failed); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
	if obs.saved != 0 {
		t.Errorf("expected no successful saves, got %d", obs.saved)
	}
}

func TestVersionMismatchWithoutMigrate(t *testing.T) {
	backend := storage.NewMemoryStorage()
	_ = backend.Save(context.Background(), "p", []byte(`{"state":{"theme":"dark"},"version":0}`))

	var gotErr error
	p := New(prefs{Theme: "system"}, Options[prefs]{
		Name:        "p",
		Storage:     backend,
		Version:     2,
		OnRehydrate: func(_ prefs, err error) { gotErr = err },
	})
	defer p.Close()

	if got := p.Get().Theme; got != "system" {
		t.Errorf("expected stale entry to be discarded, got %s", got)
	}
	if !errors.Is(gotErr, ErrVersionMismatch) {
		t.Errorf("expected ErrVersionMismatch, got %v", gotErr)
	}
}

func TestMigrate(t *testing.T) {
	backend := storage.NewMemoryStorage()
	_ = backend.Save(context.Background(), "p", []byte(`{"state":{"mode":"night"},"version":0}`))

	var from int
	p := New(prefs{Theme: "system"}, Options[prefs]{
		Name:    "p",
		Storage: backend,
		Version: 1,
		Sync:    true,
		Migrate: func(raw json.RawMessage, fromVersion int) (json.RawMessage, error) {
			from = fromVersion
			var old struct {
				Mode string `json:"mode"`
			}
			if err := json.Unmarshal(raw, &old); err != nil {
				return nil, err
			}
			theme := "light"
			if old.Mode == "night" {
				theme = "dark"
			}
			return json.Marshal(map[string]string{"theme": theme})
		},
	})
	defer p.Close()

	if from != 0 {
		t.Errorf("expected migration from version 0, got %d", from)
	}
	if got := p.Get().Theme; got != "dark" {
		t.Errorf("expected migrated theme dark, got %s", got)
	}

	env := readEnvelope(t, backend, "p")
	if env.Version != 1 {
		t.Errorf("expected migrated entry to be written back as version 1, got %d", env.Version)
	}
}

func TestHydrationIsNotWrittenBack(t *testing.T) {
	inner := storage.NewMemoryStorage()
	_ = inner.Save(context.Background(), "p", []byte(`{"state":{"theme":"dark","count":0},"version":0}`))
	backend := &countingStorage{Storage: inner}

	p := New(prefs{}, Options[prefs]{Name: "p", Storage: backend, Sync: true})
	defer p.Close()

	if got := p.Get().Theme; got != "dark" {
		t.Fatalf("expected dark, got %s", got)
	}
	if n := backend.saves.Load(); n != 0 {
		t.Errorf("hydration should not write, got %d saves", n)
	}

	p.Set(func(s *prefs) { s.Count = 1 })
	if n := backend.saves.Load(); n != 1 {
		t.Errorf("expected 1 save after Set, got %d", n)
	}
}

func TestBackgroundWriterCoalesces(t *testing.T) {
	inner := storage.NewMemoryStorage()
	backend := &countingStorage{Storage: inner, gate: make(chan struct{})}

	p := New(prefs{}, Options[prefs]{Name: "p", Storage: backend})
	defer p.Close()

	for i := 1; i <= 100; i++ {
		n := i
		p.Set(func(s *prefs) { s.Count = n })
	}
	close(backend.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if n := backend.saves.Load(); n > 2 {
		t.Errorf("expected writes to coalesce, got %d saves for 100 sets", n)
	}

	var stored prefs
	env := readEnvelope(t, inner, "p")
	if err := json.Unmarshal(env.State, &stored); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if stored.Count != 100 {
		t.Errorf("expected newest snapshot to win, got %d", stored.Count)
	}
}

func TestFlushHonorsContext(t *testing.T) {
	backend := &countingStorage{Storage: storage.NewMemoryStorage(), gate: make(chan struct{})}
	p := New(prefs{}, Options[prefs]{Name: "p", Storage: backend})

	p.Set(func(s *prefs) { s.Count = 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}

	close(backend.gate)
	p.Close()
}

func TestCloseWritesPending(t *testing.T) {
	inner := storage.NewMemoryStorage()
	p := New(prefs{}, Options[prefs]{Name: "p", Storage: inner})

	p.Set(func(s *prefs) { s.Count = 7 })
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	env := readEnvelope(t, inner, "p")
	if string(env.State) != `{"theme":"","count":7}` {
		t.Errorf("unexpected stored state %s", env.State)
	}

	// Writes stop after Close; the store itself keeps working.
	p.Set(func(s *prefs) { s.Count = 8 })
	if got := p.Get().Count; got != 8 {
		t.Errorf("expected in-memory update after Close, got %d", got)
	}
	env = readEnvelope(t, inner, "p")
	if string(env.State) != `{"theme":"","count":7}` {
		t.Errorf("expected no write after Close, got %s", env.State)
	}
}

func TestClearStorage(t *testing.T) {
	inner := storage.NewMemoryStorage()
	p := New(prefs{}, Options[prefs]{Name: "p", Storage: inner})
	defer p.Close()

	p.Set(func(s *prefs) { s.Theme = "dark" })
	if err := p.ClearStorage(context.Background()); err != nil {
		t.Fatalf("ClearStorage: %v", err)
	}

	data, _ := inner.Load(context.Background(), "p")
	if data != nil {
		t.Errorf("expected entry to be removed, got %s", data)
	}
	if got := p.Get().Theme; got != "dark" {
		t.Errorf("ClearStorage must keep in-memory state, got %s", got)
	}
}

func TestSkipHydrationAndListeners(t *testing.T) {
	backend := storage.NewMemoryStorage()
	_ = backend.Save(context.Background(), "p", []byte(`{"state":{"theme":"dark"},"version":0}`))

	p := New(prefs{Theme: "system"}, Options[prefs]{
		Name:          "p",
		Storage:       backend,
		SkipHydration: true,
		Sync:          true,
	})
	defer p.Close()

	if p.HasHydrated() {
		t.Error("expected no hydration with SkipHydration")
	}
	if got := p.Get().Theme; got != "system" {
		t.Errorf("expected defaults before Rehydrate, got %s", got)
	}

	var events []string
	p.OnHydrate(func(s prefs) { events = append(events, "start:"+s.Theme) })
	remove := p.OnFinishHydration(func(s prefs) { events = append(events, "finish:"+s.Theme) })

	if err := p.Rehydrate(context.Background()); err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}
	if !p.HasHydrated() {
		t.Error("expected HasHydrated after Rehydrate")
	}

	remove()
	remove()
	_ = p.Rehydrate(context.Background())

	want := []string{"start:system", "finish:dark", "start:dark"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("listener events mismatch (-want +got):\n%s", diff)
	}
}

func TestWatchRehydratesFromOtherWriter(t *testing.T) {
	shared := storage.NewMemoryStorage()
	opts := Options[prefs]{Name: "theme-storage", Storage: shared, Sync: true}

	writer := New(prefs{Theme: "system"}, opts)
	defer writer.Close()

	watchOpts := opts
	watchOpts.Watch = true
	reader := New(prefs{Theme: "system"}, watchOpts)
	defer reader.Close()

	hydrations := 0
	reader.OnFinishHydration(func(prefs) { hydrations++ })

	writer.Set(func(s *prefs) { s.Theme = "dark" })
	if got := reader.Get().Theme; got != "dark" {
		t.Errorf("expected watcher to pick up dark, got %s", got)
	}
	if hydrations != 1 {
		t.Errorf("expected 1 hydration, got %d", hydrations)
	}

	// The reader's own writes do not bounce back.
	reader.Set(func(s *prefs) { s.Count = 3 })
	if hydrations != 1 {
		t.Errorf("own write triggered hydration, got %d", hydrations)
	}
}

func TestCreateWithActions(t *testing.T) {
	backend := storage.NewMemoryStorage()
	type actions struct {
		SetTheme func(string)
	}
	initTheme := func(set store.SetFunc[prefs], _ store.GetFunc[prefs]) (prefs, actions) {
		return prefs{Theme: "system"}, actions{
			SetTheme: func(theme string) { set(func(s *prefs) { s.Theme = theme }) },
		}
	}
	opts := Options[prefs]{Name: "theme-storage", Storage: backend, Sync: true}

	p, a := Create(initTheme, opts, store.WithName("theme"))
	a.SetTheme("light")
	p.Close()

	if p.Name() != "theme" {
		t.Errorf("expected store name theme, got %s", p.Name())
	}
	if p.EntryName() != "theme-storage" {
		t.Errorf("expected entry theme-storage, got %s", p.EntryName())
	}

	again, _ := Create(initTheme, opts)
	defer again.Close()
	if got := again.Get().Theme; got != "light" {
		t.Errorf("expected light after reload, got %s", got)
	}
}

func TestEntryNameDefaultsToStoreName(t *testing.T) {
	p := New(prefs{}, Options[prefs]{Sync: true}, store.WithName("counter"))
	defer p.Close()
	if p.EntryName() != "counter" {
		t.Errorf("expected entry name counter, got %s", p.EntryName())
	}
}
