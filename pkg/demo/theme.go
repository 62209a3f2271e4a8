package demo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vango-dev/vstore/pkg/persist"
	"github.com/vango-dev/vstore/pkg/store"
)

// Theme is a color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// ThemeEntry is the storage key of the theme store.
const ThemeEntry = "theme-storage"

// ErrUnknownTheme is returned by SetTheme for values outside light, dark
// and system.
var ErrUnknownTheme = errors.New("unknown theme")

// ParseTheme validates a theme name.
func ParseTheme(name string) (Theme, error) {
	switch t := Theme(name); t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
}

// ThemeState is the state of the theme store.
type ThemeState struct {
	Theme Theme `json:"theme"`
}

// ThemeStore is the persisted theme preference.
type ThemeStore struct {
	*persist.Store[ThemeState]
}

// NewTheme creates the theme store and restores the saved preference.
// opts.Name defaults to ThemeEntry; only the theme field is persisted and a
// saved theme outside light, dark and system is ignored.
func NewTheme(opts persist.Options[ThemeState], storeOpts ...store.Option) *ThemeStore {
	if opts.Name == "" {
		opts.Name = ThemeEntry
	}
	if opts.Partialize == nil {
		opts.Partialize = func(s ThemeState) any {
			return struct {
				Theme Theme `json:"theme"`
			}{s.Theme}
		}
	}
	if opts.Merge == nil {
		opts.Merge = mergeTheme
	}
	storeOpts = append([]store.Option{store.WithName("theme")}, storeOpts...)
	return &ThemeStore{Store: persist.New(ThemeState{Theme: ThemeSystem}, opts, storeOpts...)}
}

// mergeTheme restores a saved preference and rejects values outside light,
// dark and system.
func mergeTheme(persisted json.RawMessage, current ThemeState) (ThemeState, error) {
	merged, err := persist.MergeShallow(persisted, current)
	if err != nil {
		return current, err
	}
	if _, err := ParseTheme(string(merged.Theme)); err != nil {
		return current, err
	}
	return merged, nil
}

// SetTheme switches the preference. Unknown values leave the state as is.
func (t *ThemeStore) SetTheme(theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	t.Set(func(s *ThemeState) { s.Theme = theme })
	return nil
}
