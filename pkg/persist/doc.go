// Package persist makes a store survive restarts.
//
// A persisted store writes an allow-listed projection of its state to a
// storage.Storage after every transition and restores it when created:
//
//	theme := persist.New(ThemeState{Theme: "system"}, persist.Options[ThemeState]{
//	    Name:    "theme-storage",
//	    Storage: backend,
//	})
//	defer theme.Close()
//
//	theme.Set(func(s *ThemeState) { s.Theme = "dark" })
//
// Entries are stored as a versioned envelope:
//
//	{"state":{"theme":"dark"},"version":0}
//
// Persistence failures never reach the caller. A missing, corrupt, or
// unmigratable entry leaves the defaults in place; a failed write is logged
// and reported to the Observer.
//
// Writes go through a background writer that coalesces bursts so only the
// newest snapshot is written. Use Options.Sync to write inline instead, and
// Flush to wait for queued writes.
package persist
