// Package storage provides pluggable key-value backends for persisted stores.
//
// Every backend satisfies the Storage contract: Load returns (nil, nil) for
// a missing entry, Save overwrites, Remove is a no-op for a missing entry.
//
// Available backends:
//
//   - MemoryStorage: process-local, the default. Supports Watch.
//   - FileStorage: one file per entry in a directory. Supports Watch via fsnotify.
//   - SQLStorage: any database/sql driver (PostgreSQL, MySQL, SQLite).
//   - RedisStorage: any client compatible with github.com/redis/go-redis/v9.
//   - S3Storage: an S3 bucket via aws-sdk-go-v2.
//
// Example:
//
//	backend, err := storage.NewFileStorage("./.state")
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	theme := persist.New(ThemeState{Theme: "system"}, persist.Options[ThemeState]{
//	    Name:    "theme-storage",
//	    Storage: backend,
//	})
package storage
