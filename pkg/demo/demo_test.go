package demo

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/vango-dev/vstore/pkg/persist"
	"github.com/vango-dev/vstore/pkg/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCounterScenario(t *testing.T) {
	c := NewCounter()
	var seen []int
	c.Subscribe(func(next, _ CounterState) { seen = append(seen, next.Count) })

	c.Increment()
	c.Increment()
	c.Increment()
	if got := c.Get().Count; got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	c.IncrementBy(5)
	if got := c.Get().Count; got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
	c.Decrement()
	c.Reset()
	if got := c.Get().Count; got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}

	if diff := cmp.Diff([]int{1, 2, 3, 8, 7, 0}, seen); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestCartScenario(t *testing.T) {
	c := NewCart()
	if got := c.Get().Items; len(got) != 0 {
		t.Fatalf("expected empty cart, got %v", got)
	}
	if c.TotalItems() != 0 || c.TotalPrice() != 0 {
		t.Fatalf("expected zero totals, got %d / %v", c.TotalItems(), c.TotalPrice())
	}

	a := Product{ID: 1, Name: "A", Price: 10}
	c.AddItem(a)
	if diff := cmp.Diff([]CartItem{{ID: 1, Name: "A", Price: 10, Quantity: 1}}, c.Get().Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if got := c.TotalPrice(); got != 10 {
		t.Errorf("expected total 10, got %v", got)
	}

	c.AddItem(a)
	if diff := cmp.Diff([]CartItem{{ID: 1, Name: "A", Price: 10, Quantity: 2}}, c.Get().Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if got := c.TotalPrice(); got != 20 {
		t.Errorf("expected total 20, got %v", got)
	}

	c.RemoveItem(1)
	if got := c.Get().Items; len(got) != 0 {
		t.Errorf("expected empty cart, got %v", got)
	}
	if got := c.TotalPrice(); got != 0 {
		t.Errorf("expected total 0, got %v", got)
	}
}

func sumPrices(s CartState) float64 {
	sum := 0.0
	for _, item := range s.Items {
		sum += item.Price * float64(item.Quantity)
	}
	return sum
}

func TestCartTotalPriceIsExactSum(t *testing.T) {
	sticker, pen := 0.004, 10.125
	c := NewCart()
	c.AddItem(Product{ID: 10, Name: "Sticker", Price: sticker})
	c.AddItem(Product{ID: 11, Name: "Pen", Price: pen})

	if got, want := c.TotalPrice(), sticker+pen; got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := RoundCents(c.TotalPrice()); got != 10.13 {
		t.Errorf("expected 10.13 for display, got %v", got)
	}
}

func TestCartTotalsTrackMutations(t *testing.T) {
	c := NewCart()
	for _, p := range Products {
		c.AddItem(p)
	}
	c.AddItem(Products[0])
	c.UpdateQuantity(3, 4)

	if got, want := c.TotalPrice(), sumPrices(c.Get()); got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
	// 19.99*2 + 29.99 + 39.99*4
	if got := RoundCents(c.TotalPrice()); got != 229.93 {
		t.Errorf("expected 229.93 after rounding, got %v", got)
	}
	if got := c.TotalItems(); got != 7 {
		t.Errorf("expected 7 items, got %d", got)
	}

	c.UpdateQuantity(2, 0)
	if got := len(c.Get().Items); got != 2 {
		t.Errorf("quantity 0 should remove the item, have %d items", got)
	}

	c.ClearCart()
	if c.TotalItems() != 0 {
		t.Errorf("expected cleared cart")
	}
}

func TestCartSnapshotsAreImmutable(t *testing.T) {
	c := NewCart()
	c.AddItem(Products[0])
	before := c.Get()

	c.AddItem(Products[0])
	c.AddItem(Products[1])
	c.UpdateQuantity(1, 9)

	if diff := cmp.Diff([]CartItem{{ID: 1, Name: "Product A", Price: 19.99, Quantity: 1}}, before.Items); diff != "" {
		t.Errorf("earlier snapshot changed (-want +got):\n%s", diff)
	}
}

func TestFindProduct(t *testing.T) {
	if p, ok := FindProduct(2); !ok || p.Name != "Product B" {
		t.Errorf("expected Product B, got %v %v", p, ok)
	}
	if _, ok := FindProduct(99); ok {
		t.Error("expected unknown product")
	}
}

func TestThemeReload(t *testing.T) {
	backend := storage.NewMemoryStorage()

	theme := NewTheme(persist.Options[ThemeState]{Storage: backend})
	if got := theme.Get().Theme; got != ThemeSystem {
		t.Fatalf("expected default system, got %s", got)
	}
	if err := theme.SetTheme(ThemeDark); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	theme.Close()

	reloaded := NewTheme(persist.Options[ThemeState]{Storage: backend})
	defer reloaded.Close()
	if got := reloaded.Get().Theme; got != ThemeDark {
		t.Errorf("expected dark after reload, got %s", got)
	}
}

func TestSetThemeRejectsUnknown(t *testing.T) {
	theme := NewTheme(persist.Options[ThemeState]{Sync: true})
	defer theme.Close()

	err := theme.SetTheme("sepia")
	if !errors.Is(err, ErrUnknownTheme) {
		t.Errorf("expected ErrUnknownTheme, got %v", err)
	}
	if got := theme.Get().Theme; got != ThemeSystem {
		t.Errorf("state changed on invalid theme: %s", got)
	}
}

func TestSavedUnknownThemeIsIgnored(t *testing.T) {
	backend := storage.NewMemoryStorage()
	if err := backend.Save(context.Background(), ThemeEntry, []byte(`{"state":{"theme":"purple"},"version":0}`)); err != nil {
		t.Fatal(err)
	}

	var hydrateErr error
	theme := NewTheme(persist.Options[ThemeState]{
		Storage:     backend,
		OnRehydrate: func(_ ThemeState, err error) { hydrateErr = err },
	})
	defer theme.Close()

	if got := theme.Get().Theme; got != ThemeSystem {
		t.Errorf("expected default theme, got %q", got)
	}
	if !errors.Is(hydrateErr, ErrUnknownTheme) {
		t.Errorf("expected ErrUnknownTheme from hydration, got %v", hydrateErr)
	}

	if err := backend.Save(context.Background(), ThemeEntry, []byte(`{"state":{"theme":"dark"},"version":0}`)); err != nil {
		t.Fatal(err)
	}
	if err := theme.Rehydrate(context.Background()); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if got := theme.Get().Theme; got != ThemeDark {
		t.Errorf("expected dark, got %q", got)
	}
}

func TestTodos(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	todos := NewTodos([]ActionOption{WithClock(func() time.Time { return clock })})

	res := todos.AddTodo(ctx, TodoInput{Title: "ab"})
	if res.Success || res.Error != "Title must be at least 3 characters" {
		t.Errorf("expected validation failure, got %+v", res)
	}

	first := todos.AddTodo(ctx, TodoInput{Title: "Write tests"})
	second := todos.AddTodo(ctx, TodoInput{Title: "Ship it"})
	if !first.Success || !second.Success {
		t.Fatalf("expected success, got %+v / %+v", first, second)
	}
	if first.Todo.ID == second.Todo.ID {
		t.Errorf("ids must be unique even with a frozen clock")
	}

	if res := todos.ToggleTodo(ctx, first.Todo.ID, true); !res.Success {
		t.Errorf("toggle failed: %+v", res)
	}
	if got := OpenTodos(todos.Get()); got != 1 {
		t.Errorf("expected 1 open todo, got %d", got)
	}

	if res := todos.DeleteTodo(ctx, second.Todo.ID); !res.Success {
		t.Errorf("delete failed: %+v", res)
	}
	if res := todos.DeleteTodo(ctx, second.Todo.ID); res.Success || res.Error != ErrTodoNotFound.Error() {
		t.Errorf("expected not found, got %+v", res)
	}

	want := []Todo{{ID: first.Todo.ID, Title: "Write tests", Completed: true}}
	if diff := cmp.Diff(want, todos.Get().Todos); diff != "" {
		t.Errorf("todos mismatch (-want +got):\n%s", diff)
	}
}

func TestTodosHonorContext(t *testing.T) {
	todos := NewTodos([]ActionOption{WithLatency(time.Hour)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := todos.AddTodo(ctx, TodoInput{Title: "Never lands"})
	if res.Success || !strings.Contains(res.Error, "canceled") {
		t.Errorf("expected cancellation, got %+v", res)
	}
	if len(todos.Get().Todos) != 0 {
		t.Errorf("cancelled action must not change state")
	}
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(nil)

	user, err := d.CreateUser(ctx, UserInput{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID != 3 {
		t.Errorf("expected id max+1 = 3, got %d", user.ID)
	}

	post, err := d.CreatePost(ctx, PostInput{Title: "Notes", Content: "On engines", AuthorID: user.ID})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.ID != 4 || post.Published {
		t.Errorf("unexpected post %+v", post)
	}

	if err := d.TogglePublish(ctx, post.ID); err != nil {
		t.Fatalf("TogglePublish: %v", err)
	}
	if !PostsBy(d.Get(), user.ID)[0].Published {
		t.Error("expected post to be published")
	}

	if err := d.DeleteUser(ctx, 1); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	state := d.Get()
	if got := len(PostsBy(state, 1)); got != 0 {
		t.Errorf("deleting a user must cascade to posts, %d left", got)
	}
	if got := len(state.Posts); got != 2 {
		t.Errorf("expected 2 posts left, got %d", got)
	}
	if Loading(state) {
		t.Error("expected loading to be cleared")
	}
}

func TestDirectoryErrors(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(nil)
	before := d.Get()

	if _, err := d.CreatePost(ctx, PostInput{Title: "x", Content: "y", AuthorID: 42}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := d.DeletePost(ctx, 42); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("expected ErrPostNotFound, got %v", err)
	}
	if err := d.DeleteUser(ctx, 42); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := d.CreateUser(ctx, UserInput{Name: "", Email: "bad"}); err == nil {
		t.Error("expected validation error")
	}

	after := d.Get()
	if diff := cmp.Diff(before.Users, after.Users); diff != "" {
		t.Errorf("failed actions changed users (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(before.Posts, after.Posts); diff != "" {
		t.Errorf("failed actions changed posts (-before +after):\n%s", diff)
	}
}

func TestDirectoryLoadingFlag(t *testing.T) {
	d := NewDirectory([]ActionOption{WithLatency(20 * time.Millisecond)})

	var mu sync.Mutex
	var flags []bool
	d.Subscribe(func(next, _ DirectoryState) {
		mu.Lock()
		flags = append(flags, Loading(next))
		mu.Unlock()
	})

	if err := d.DeletePost(context.Background(), 1); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]bool{true, false}, flags); diff != "" {
		t.Errorf("loading flags mismatch (-want +got):\n%s", diff)
	}
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func validRequest() CourseRequest {
	return CourseRequest{
		CourseTitle:      "Advanced <Go>",
		CourseCategory:   "backend",
		ReasonForRequest: "We are migrating services to Go",
		Email:            "student@example.com",
	}
}

func TestCourseRequestSubmit(t *testing.T) {
	mailer := &recordingMailer{}
	courses := NewCourseRequests(CourseRequestsConfig{
		Mailer: mailer,
		From:   "noreply@example.com",
		To:     "admin@example.com",
	})

	res := courses.Submit(context.Background(), validRequest())
	if !res.Success || res.RequestID == "" {
		t.Fatalf("expected success with id, got %+v", res)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To != "admin@example.com" || msg.From != "noreply@example.com" {
		t.Errorf("unexpected envelope %+v", msg)
	}
	if msg.Subject != "New Course Request: Advanced <Go>" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "Advanced &lt;Go&gt;") {
		t.Errorf("expected escaped title in body:\n%s", msg.HTML)
	}
	if strings.Contains(msg.HTML, "Description") {
		t.Errorf("empty description should be omitted:\n%s", msg.HTML)
	}

	submitted := courses.Get().Submitted
	if len(submitted) != 1 || submitted[0].ID != res.RequestID {
		t.Errorf("expected request to be recorded, got %+v", submitted)
	}
}

func TestCourseRequestValidation(t *testing.T) {
	mailer := &recordingMailer{}
	courses := NewCourseRequests(CourseRequestsConfig{Mailer: mailer})

	req := validRequest()
	req.ReasonForRequest = "short"
	req.Email = "nope"

	res := courses.Submit(context.Background(), req)
	if res.Success {
		t.Fatal("expected failure")
	}
	if _, ok := res.Fields["reasonForRequest"]; !ok {
		t.Errorf("expected reasonForRequest error, got %v", res.Fields)
	}
	if _, ok := res.Fields["email"]; !ok {
		t.Errorf("expected email error, got %v", res.Fields)
	}
	if len(mailer.sent) != 0 {
		t.Error("invalid requests must not be mailed")
	}
}

func TestCourseRequestMailFailure(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("connection refused")}
	courses := NewCourseRequests(CourseRequestsConfig{Mailer: mailer})

	res := courses.Submit(context.Background(), validRequest())
	if res.Success || res.Error != "Failed to send email" {
		t.Errorf("expected generic failure, got %+v", res)
	}
	if len(courses.Get().Submitted) != 0 {
		t.Error("failed requests must not be recorded")
	}
}

func TestSMTPMessage(t *testing.T) {
	mm, err := newMsg(Message{
		From:    "a@example.com",
		To:      "b@example.com",
		Subject: "Hi\r\nBcc: evil@example.com",
		HTML:    "<p>x</p>",
	})
	if err != nil {
		t.Fatalf("newMsg: %v", err)
	}
	var buf bytes.Buffer
	if _, err := mm.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "Subject: Hi  Bcc: evil@example.com\r\n") {
		t.Errorf("header injection not neutralised:\n%s", got)
	}
	if strings.Contains(got, "\r\nBcc:") {
		t.Errorf("subject started a new header:\n%s", got)
	}
	for _, want := range []string{"b@example.com", "text/html", "<p>x</p>"} {
		if !strings.Contains(got, want) {
			t.Errorf("message missing %q:\n%s", want, got)
		}
	}

	if _, err := newMsg(Message{From: "not an address", To: "b@example.com"}); err == nil {
		t.Error("expected an invalid sender to be rejected")
	}
}

func TestSMTPMailerUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m := SMTPMailer{Host: "127.0.0.1", Port: port}
	err = m.Send(ctx, Message{From: "a@example.com", To: "b@example.com", Subject: "s", HTML: "x"})
	if err == nil {
		t.Fatal("expected a send error for a closed port")
	}
}

func TestAppBindings(t *testing.T) {
	app := NewApp(Config{})
	defer app.Close()

	want := []string{"cart", "counter", "courses", "directory", "theme", "todos"}
	if diff := cmp.Diff(want, app.StoreNames()); diff != "" {
		t.Errorf("store names mismatch (-want +got):\n%s", diff)
	}

	cart, ok := app.Binding("cart")
	if !ok {
		t.Fatal("expected cart binding")
	}
	if cart.Persisted() {
		t.Error("cart is not persisted")
	}

	var docs []Snapshot
	unsubscribe := cart.Subscribe(func(s Snapshot) { docs = append(docs, s) })
	app.Cart.AddItem(Products[1])
	unsubscribe()
	app.Cart.AddItem(Products[1])

	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Computed["totalPrice"] != 29.99 || docs[0].Version != 1 {
		t.Errorf("unexpected document %+v", docs[0])
	}

	snap := cart.Snapshot()
	if snap.Computed["totalItems"] != 2 || snap.Version != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	theme, _ := app.Binding("theme")
	if !theme.Persisted() {
		t.Error("theme should be persisted")
	}
}

func TestAppThemeSurvivesRestart(t *testing.T) {
	backend := storage.NewMemoryStorage()

	app := NewApp(Config{Storage: backend})
	if err := app.Theme.SetTheme(ThemeLight); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	if err := app.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	app.Close()

	restarted := NewApp(Config{Storage: backend})
	defer restarted.Close()
	if got := restarted.Theme.Get().Theme; got != ThemeLight {
		t.Errorf("expected light after restart, got %s", got)
	}
}
