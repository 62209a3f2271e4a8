package persist

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// envelope is the stored representation of a persisted projection.
type envelope struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

// MergeShallow overlays the top-level fields of persisted onto current.
// Struct fields are matched by their JSON name; fields absent from persisted
// keep their current value. Each present field is decoded into a fresh value
// so the result never shares maps or slices with current.
// For non-struct states persisted replaces current entirely.
func MergeShallow[S any](persisted json.RawMessage, current S) (S, error) {
	out := current
	v := reflect.ValueOf(&out).Elem()
	if v.Kind() != reflect.Struct {
		var next S
		if err := json.Unmarshal(persisted, &next); err != nil {
			return current, err
		}
		return next, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(persisted, &fields); err != nil {
		return current, err
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, ok := jsonName(f)
		if !ok {
			continue
		}
		data, ok := fields[name]
		if !ok {
			continue
		}

		fresh := reflect.New(f.Type)
		if err := json.Unmarshal(data, fresh.Interface()); err != nil {
			return current, fmt.Errorf("persist: field %s: %w", name, err)
		}
		v.Field(i).Set(fresh.Elem())
	}
	return out, nil
}

// jsonName returns the key encoding/json uses for f.
func jsonName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, true
}
