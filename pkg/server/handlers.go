package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/vstore/pkg/demo"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type storeInfo struct {
	Name      string `json:"name"`
	Persisted bool   `json:"persisted"`
}

func (s *Server) handleListStores(w http.ResponseWriter, _ *http.Request) {
	names := s.app.StoreNames()
	stores := make([]storeInfo, 0, len(names))
	for _, name := range names {
		b, _ := s.app.Binding(name)
		stores = append(stores, storeInfo{Name: name, Persisted: b.Persisted()})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"stores": stores})
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "store")
	b, ok := s.app.Binding(name)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: store %q", errNotFound, name))
		return
	}
	s.writeJSON(w, http.StatusOK, b.Snapshot())
}

// snapshot responds with the current document of a store.
func (s *Server) snapshot(w http.ResponseWriter, name string) {
	b, _ := s.app.Binding(name)
	s.writeJSON(w, http.StatusOK, b.Snapshot())
}

type revalidateResponse struct {
	Revalidated bool   `json:"revalidated"`
	Message     string `json:"message"`
	Now         int64  `json:"now,omitempty"`
}

// handleRevalidate reloads persisted stores from storage. The store query
// parameter selects one store; without it every persisted store reloads.
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	expected := s.config.RevalidateToken
	if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		s.writeJSON(w, http.StatusUnauthorized, revalidateResponse{Message: "Invalid token"})
		return
	}

	names := s.app.StoreNames()
	if name := r.URL.Query().Get("store"); name != "" {
		b, ok := s.app.Binding(name)
		if !ok {
			s.writeError(w, fmt.Errorf("%w: store %q", errNotFound, name))
			return
		}
		if !b.Persisted() {
			s.writeError(w, fmt.Errorf("%w: store %q is not persisted", errBadRequest, name))
			return
		}
		names = []string{name}
	}

	var reloaded []string
	for _, name := range names {
		b, _ := s.app.Binding(name)
		if !b.Persisted() {
			continue
		}
		if err := b.Rehydrate(r.Context()); err != nil {
			s.logger.Warn("revalidate failed", "store", name, "error", err)
			continue
		}
		reloaded = append(reloaded, name)
	}

	s.writeJSON(w, http.StatusOK, revalidateResponse{
		Revalidated: true,
		Message:     "Revalidated " + strings.Join(reloaded, ", "),
		Now:         time.Now().UnixMilli(),
	})
}

type counterAction func(*demo.Counter)

func counterIncrement(c *demo.Counter) { c.Increment() }
func counterDecrement(c *demo.Counter) { c.Decrement() }
func counterReset(c *demo.Counter)     { c.Reset() }

func (s *Server) handleCounter(action counterAction) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		action(s.app.Counter)
		s.snapshot(w, s.app.Counter.Name())
	}
}

type incrementByRequest struct {
	Amount int `json:"amount"`
}

func (s *Server) handleCounterIncrementBy(w http.ResponseWriter, r *http.Request) {
	var req incrementByRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.app.Counter.IncrementBy(req.Amount)
	s.snapshot(w, s.app.Counter.Name())
}

type themeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=light dark system"`
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.app.Theme.SetTheme(demo.Theme(req.Theme)); err != nil {
		s.writeError(w, err)
		return
	}
	s.snapshot(w, s.app.Theme.Name())
}

func (s *Server) handleListProducts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"products": demo.Products})
}

type addCartItemRequest struct {
	ProductID int `json:"productId" validate:"required"`
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	p, ok := demo.FindProduct(req.ProductID)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: product %d", errNotFound, req.ProductID))
		return
	}
	s.app.Cart.AddItem(p)
	s.snapshot(w, s.app.Cart.Name())
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req updateQuantityRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.app.Cart.UpdateQuantity(int(id), req.Quantity)
	s.snapshot(w, s.app.Cart.Name())
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.app.Cart.RemoveItem(int(id))
	s.snapshot(w, s.app.Cart.Name())
}

func (s *Server) handleClearCart(w http.ResponseWriter, _ *http.Request) {
	s.app.Cart.ClearCart()
	s.snapshot(w, s.app.Cart.Name())
}

func (s *Server) handleAddTodo(w http.ResponseWriter, r *http.Request) {
	var in demo.TodoInput
	// Rule failures go through the action so the response keeps the
	// action result shape.
	if err := s.decode(w, r, &in); err != nil && !isValidation(err) {
		s.writeError(w, err)
		return
	}
	res := s.app.Todos.AddTodo(r.Context(), in)
	s.writeResult(w, res.Result, res)
}

type toggleTodoRequest struct {
	Completed bool `json:"completed"`
}

func (s *Server) handleToggleTodo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req toggleTodoRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res := s.app.Todos.ToggleTodo(r.Context(), id, req.Completed)
	s.writeResult(w, res, res)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res := s.app.Todos.DeleteTodo(r.Context(), id)
	s.writeResult(w, res, res)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in demo.UserInput
	if err := s.decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	user, err := s.app.Directory.CreateUser(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.app.Directory.DeleteUser(r.Context(), int(id)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var in demo.PostInput
	if err := s.decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	post, err := s.app.Directory.CreatePost(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleTogglePublish(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.app.Directory.TogglePublish(r.Context(), int(id)); err != nil {
		s.writeError(w, err)
		return
	}
	s.snapshot(w, s.app.Directory.Name())
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.app.Directory.DeletePost(r.Context(), int(id)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCourseRequest(w http.ResponseWriter, r *http.Request) {
	var req demo.CourseRequest
	if err := s.decode(w, r, &req); err != nil && !isValidation(err) {
		s.writeError(w, err)
		return
	}
	res := s.app.Courses.Submit(r.Context(), req)
	s.writeResult(w, res.Result, res)
}
