package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/vstore/pkg/demo"
	"github.com/vango-dev/vstore/pkg/validate"
)

type errorBody struct {
	Error  string          `json:"error"`
	Fields validate.Errors `json:"fields,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}

// writeError maps err to a status code: invalid input is 400, unknown
// entities 404, cancelled requests 503 and everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var fields validate.Errors
	switch {
	case errors.As(err, &fields):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: fields.First(), Fields: fields})
	case errors.Is(err, errBadRequest),
		errors.Is(err, demo.ErrUnknownTheme):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, errNotFound),
		errors.Is(err, demo.ErrUserNotFound),
		errors.Is(err, demo.ErrPostNotFound),
		errors.Is(err, demo.ErrTodoNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// writeResult writes an action result. Failed actions are 400 when the
// input was rejected and 422 otherwise.
func (s *Server) writeResult(w http.ResponseWriter, res demo.Result, body any) {
	switch {
	case res.Success:
		s.writeJSON(w, http.StatusOK, body)
	case len(res.Fields) > 0:
		s.writeJSON(w, http.StatusBadRequest, body)
	default:
		s.writeJSON(w, http.StatusUnprocessableEntity, body)
	}
}

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
)

// decode reads a size-limited JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodySize)
	if err := validate.DecodeJSON(body, v); err != nil {
		var fields validate.Errors
		if errors.As(err, &fields) {
			return fields
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func isValidation(err error) bool {
	var fields validate.Errors
	return errors.As(err, &fields)
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, chi.URLParam(r, "id"))
	}
	return id, nil
}
