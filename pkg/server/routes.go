package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.trace)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/ws/{store}", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stores", s.handleListStores)
		r.Get("/stores/{store}", s.handleGetStore)
		r.Get("/revalidate", s.handleRevalidate)

		r.Route("/counter", func(r chi.Router) {
			r.Post("/increment", s.handleCounter(counterIncrement))
			r.Post("/decrement", s.handleCounter(counterDecrement))
			r.Post("/reset", s.handleCounter(counterReset))
			r.Post("/increment-by", s.handleCounterIncrementBy)
		})

		r.Put("/theme", s.handleSetTheme)

		r.Get("/products", s.handleListProducts)
		r.Route("/cart", func(r chi.Router) {
			r.Delete("/", s.handleClearCart)
			r.Post("/items", s.handleAddCartItem)
			r.Patch("/items/{id}", s.handleUpdateCartItem)
			r.Delete("/items/{id}", s.handleRemoveCartItem)
		})

		r.Route("/todos", func(r chi.Router) {
			r.Post("/", s.handleAddTodo)
			r.Patch("/{id}", s.handleToggleTodo)
			r.Delete("/{id}", s.handleDeleteTodo)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", s.handleCreateUser)
			r.Delete("/{id}", s.handleDeleteUser)
		})
		r.Route("/posts", func(r chi.Router) {
			r.Post("/", s.handleCreatePost)
			r.Post("/{id}/publish", s.handleTogglePublish)
			r.Delete("/{id}", s.handleDeletePost)
		})

		r.Post("/course-requests", s.handleCourseRequest)
	})
	return r
}

// trace wraps every request in a span named after its route pattern.
func (s *Server) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.method", r.Method)),
		)
		defer span.End()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				span.SetName(r.Method + " " + pattern)
				span.SetAttributes(attribute.String("http.route", pattern))
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}
