package demo

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/vango-dev/vstore/pkg/store"
	"github.com/vango-dev/vstore/pkg/validate"
)

// ErrTodoNotFound is reported for unknown todo ids.
var ErrTodoNotFound = errors.New("todo not found")

// Todo is one entry of the todo list.
type Todo struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// TodoInput is the form payload of AddTodo.
type TodoInput struct {
	Title string `json:"title" validate:"required,min=3" message:"Title must be at least 3 characters"`
}

// TodoResult is the outcome of AddTodo.
type TodoResult struct {
	Result
	Todo *Todo `json:"todo,omitempty"`
}

// TodosState is the state of the todo store.
type TodosState struct {
	Todos []Todo `json:"todos"`
}

// Todos is a todo list with form-style actions.
type Todos struct {
	*store.Store[TodosState]
	cfg actionConfig

	mu     sync.Mutex
	lastID int64
}

// NewTodos creates an empty todo list.
func NewTodos(opts []ActionOption, storeOpts ...store.Option) *Todos {
	cfg := defaultActionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	storeOpts = append([]store.Option{store.WithName("todos")}, storeOpts...)
	return &Todos{
		Store: store.New(TodosState{Todos: []Todo{}}, storeOpts...),
		cfg:   cfg,
	}
}

// nextID derives ids from the clock in milliseconds, bumped to stay unique.
func (t *Todos) nextID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.cfg.now().UnixMilli()
	if id <= t.lastID {
		id = t.lastID + 1
	}
	t.lastID = id
	return id
}

// AddTodo validates in and appends a new open todo.
func (t *Todos) AddTodo(ctx context.Context, in TodoInput) TodoResult {
	if errs := validate.Struct(in); errs != nil {
		return TodoResult{Result: failed(errs)}
	}
	if err := t.cfg.wait(ctx); err != nil {
		return TodoResult{Result: failed(err)}
	}

	todo := Todo{ID: t.nextID(), Title: in.Title}
	t.Set(func(s *TodosState) {
		s.Todos = append(slices.Clone(s.Todos), todo)
	})
	return TodoResult{Result: ok(), Todo: &todo}
}

// ToggleTodo sets the completed flag of a todo.
func (t *Todos) ToggleTodo(ctx context.Context, id int64, completed bool) Result {
	if err := t.cfg.wait(ctx); err != nil {
		return failed(err)
	}

	found := false
	t.Set(func(s *TodosState) {
		todos := slices.Clone(s.Todos)
		for i := range todos {
			if todos[i].ID == id {
				todos[i].Completed = completed
				found = true
			}
		}
		s.Todos = todos
	})
	if !found {
		return failed(ErrTodoNotFound)
	}
	return ok()
}

// DeleteTodo removes a todo.
func (t *Todos) DeleteTodo(ctx context.Context, id int64) Result {
	if err := t.cfg.wait(ctx); err != nil {
		return failed(err)
	}

	found := false
	t.Set(func(s *TodosState) {
		s.Todos = slices.DeleteFunc(slices.Clone(s.Todos), func(todo Todo) bool {
			if todo.ID == id {
				found = true
				return true
			}
			return false
		})
	})
	if !found {
		return failed(ErrTodoNotFound)
	}
	return ok()
}

// OpenTodos counts todos not yet completed.
func OpenTodos(s TodosState) int {
	n := 0
	for _, todo := range s.Todos {
		if !todo.Completed {
			n++
		}
	}
	return n
}
