// Package validate checks external input against struct-tag schemas before
// it is merged into a store.
//
//	type TodoInput struct {
//	    Title string `json:"title" validate:"required,min=3" message:"Title must be at least 3 characters"`
//	}
//
//	if errs := validate.Struct(in); errs != nil {
//	    return errs
//	}
//
// Rules use the go-playground/validator tag grammar (required, min, max,
// email, url, uuid, oneof=a b c, ...). Fields are reported by their JSON
// name. A message tag replaces the default message of every rule on that
// field.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Errors maps field names to the first failing message of each field.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// First returns the message of the alphabetically first failing field.
func (e Errors) First() string {
	first := ""
	for f := range e {
		if first == "" || f < first {
			first = f
		}
	}
	return e[first]
}

var (
	engineOnce sync.Once
	engine     *validator.Validate
)

// Engine returns the shared validator. Register custom rules on it before
// the first call to Struct.
func Engine() *validator.Validate {
	engineOnce.Do(func() {
		engine = validator.New(validator.WithRequiredStructEnabled())
		engine.RegisterTagNameFunc(jsonName)
	})
	return engine
}

// jsonName reports the JSON name of f, which is what clients see.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// Struct validates the exported fields of v, a struct or pointer to one.
// Returns nil when every field is valid.
func Struct(v any) Errors {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Errors{"": "value is nil"}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return Errors{"": fmt.Sprintf("cannot validate %s", rv.Kind())}
	}

	err := Engine().Struct(rv.Interface())
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{"": err.Error()}
	}

	errs := make(Errors, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs[fe.Field()] = message(rv.Type(), fe)
	}
	return errs
}

// DecodeJSON decodes r into v, rejecting unknown fields, and validates the
// result. Decode failures are returned as-is; rule failures as Errors.
func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	if errs := Struct(v); errs != nil {
		return errs
	}
	return nil
}

// Unmarshal is DecodeJSON for a byte slice.
func Unmarshal(data []byte, v any) error {
	return DecodeJSON(bytes.NewReader(data), v)
}
