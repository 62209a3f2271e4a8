package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fileExt is appended to every entry file.
const fileExt = ".json"

// FileStorage stores each entry as a file in a directory.
// Writes go through a temporary file and a rename so readers never observe
// a partially written entry.
type FileStorage struct {
	dir    string
	perm   fs.FileMode
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	stops  []func()
}

// FileStorageOption configures FileStorage behavior.
type FileStorageOption func(*fileStorageConfig)

type fileStorageConfig struct {
	perm   fs.FileMode
	logger *slog.Logger
}

// WithFilePerm sets the permission bits of entry files.
// Default: 0o600.
func WithFilePerm(perm fs.FileMode) FileStorageOption {
	return func(c *fileStorageConfig) {
		c.perm = perm
	}
}

// WithFileLogger sets the logger used by watchers.
func WithFileLogger(logger *slog.Logger) FileStorageOption {
	return func(c *fileStorageConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewFileStorage creates a file backend rooted at dir, creating it if needed.
func NewFileStorage(dir string, opts ...FileStorageOption) (*FileStorage, error) {
	cfg := &fileStorageConfig{
		perm:   0o600,
		logger: slog.Default().With("component", "storage.file"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir %s: %w", dir, err)
	}

	return &FileStorage{
		dir:    dir,
		perm:   cfg.perm,
		logger: cfg.logger,
	}, nil
}

// Dir returns the backing directory.
func (f *FileStorage) Dir() string {
	return f.dir
}

// path returns the file path for an entry name.
func (f *FileStorage) path(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidName
	}
	return filepath.Join(f.dir, url.PathEscape(name)+fileExt), nil
}

func (f *FileStorage) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Load reads the entry file.
func (f *FileStorage) Load(ctx context.Context, name string) ([]byte, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	p, err := f.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Save atomically replaces the entry file.
func (f *FileStorage) Save(ctx context.Context, name string, data []byte) error {
	if f.isClosed() {
		return ErrClosed
	}
	p, err := f.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(f.perm); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, p); err != nil {
		cleanup()
		return err
	}
	return nil
}

// Remove deletes the entry file.
func (f *FileStorage) Remove(ctx context.Context, name string) error {
	if f.isClosed() {
		return ErrClosed
	}
	p, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Watch calls fn when the entry file is created, written, renamed or removed
// by anyone, including this process. The watch ends when ctx is done or stop
// is called.
func (f *FileStorage) Watch(ctx context.Context, name string, fn func()) (func(), error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	p, err := f.path(name)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: atomic renames replace the file's inode.
	if err := w.Add(f.dir); err != nil {
		w.Close()
		return nil, err
	}

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			w.Close()
		})
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(p) {
					continue
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
					fn()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.logger.Warn("file watch error", "entry", name, "error", err)
			case <-ctx.Done():
				stop()
				return
			case <-done:
				return
			}
		}
	}()

	f.mu.Lock()
	f.stops = append(f.stops, stop)
	f.mu.Unlock()
	return stop, nil
}

// Close stops all watchers. Entry files are left in place.
func (f *FileStorage) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	stops := f.stops
	f.stops = nil
	f.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	return nil
}
