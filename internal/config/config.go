package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/vango-dev/vstore/internal/errors"
)

const (
	// JSONFileName and TOMLFileName are looked up, in that order, when no
	// config file is given.
	JSONFileName = "vstore.json"
	TOMLFileName = "vstore.toml"

	// DefaultAddress is the default listen address of the demo server.
	DefaultAddress = ":8080"

	// DefaultStorageDir is the default directory of the file backend.
	DefaultStorageDir = ".vstore"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Config is the complete vstore configuration.
type Config struct {
	Server  ServerConfig  `json:"server" toml:"server"`
	Storage StorageConfig `json:"storage" toml:"storage"`
	Mail    MailConfig    `json:"mail" toml:"mail"`
	Log     LogConfig     `json:"log" toml:"log"`
	Demo    DemoConfig    `json:"demo" toml:"demo"`

	// path stores the file the config was loaded from.
	path string
}

// ServerConfig configures the demo server.
type ServerConfig struct {
	// Address is the listen address.
	Address string `json:"address,omitempty" toml:"address,omitempty"`

	// RevalidateToken guards /api/revalidate.
	RevalidateToken string `json:"revalidateToken,omitempty" toml:"revalidate_token,omitempty"`

	// Metrics serves Prometheus metrics at /metrics.
	Metrics bool `json:"metrics" toml:"metrics"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is one of memory, file, sqlite or s3.
	Backend string `json:"backend,omitempty" toml:"backend,omitempty"`

	// Dir is the directory of the file backend.
	Dir string `json:"dir,omitempty" toml:"dir,omitempty"`

	// DSN is the sqlite database path. Default: vstore.db in Dir.
	DSN string `json:"dsn,omitempty" toml:"dsn,omitempty"`

	// Table is the SQL table name.
	Table string `json:"table,omitempty" toml:"table,omitempty"`

	// Watch rehydrates persisted stores when another process changes them.
	Watch bool `json:"watch,omitempty" toml:"watch,omitempty"`

	// Timeout bounds each storage call.
	Timeout Duration `json:"timeout,omitempty" toml:"timeout,omitempty"`

	S3 S3Config `json:"s3,omitempty" toml:"s3,omitempty"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	Bucket          string `json:"bucket,omitempty" toml:"bucket,omitempty"`
	Prefix          string `json:"prefix,omitempty" toml:"prefix,omitempty"`
	Region          string `json:"region,omitempty" toml:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty" toml:"endpoint,omitempty"`
	AccessKeyID     string `json:"accessKeyId,omitempty" toml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty" toml:"secret_access_key,omitempty"`
	PathStyle       bool   `json:"pathStyle,omitempty" toml:"path_style,omitempty"`
}

// MailConfig configures course request delivery. Without a host,
// requests are logged instead of mailed.
type MailConfig struct {
	Host        string `json:"host,omitempty" toml:"host,omitempty"`
	Port        int    `json:"port,omitempty" toml:"port,omitempty"`
	User        string `json:"user,omitempty" toml:"user,omitempty"`
	Password    string `json:"password,omitempty" toml:"password,omitempty"`
	From        string `json:"from,omitempty" toml:"from,omitempty"`
	Admin       string `json:"admin,omitempty" toml:"admin,omitempty"`
	ImplicitTLS bool   `json:"implicitTls,omitempty" toml:"implicit_tls,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" toml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" toml:"format,omitempty"`
}

// DemoConfig tunes the demo stores.
type DemoConfig struct {
	// Latency simulates remote calls in the todo and directory actions.
	Latency Duration `json:"latency,omitempty" toml:"latency,omitempty"`
}

// Duration is a time.Duration written as a string ("250ms", "5s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// New returns a Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = DefaultStorageDir
	}
	if c.Storage.Table == "" {
		c.Storage.Table = "vstore_entries"
	}
	if c.Storage.Timeout.Duration == 0 {
		c.Storage.Timeout.Duration = 5 * time.Second
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 465
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Find returns the config file in dir, or "" when there is none.
func Find(dir string) string {
	for _, name := range []string{JSONFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Load reads the config file found in dir. A directory without a config
// file yields the defaults.
func Load(dir string) (*Config, error) {
	path := Find(dir)
	if path == "" {
		return New(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a JSON or TOML config file, chosen by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("E101").WithSubject(path)
		}
		return nil, errors.New("E102").WithSubject(path).Wrap(err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, errors.New("E103").WithSubject(path)
	}
	if err != nil {
		return nil, errors.New("E102").WithSubject(path).Wrap(err)
	}

	cfg.path = path
	cfg.applyDefaults()
	return cfg, nil
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// SaveTo writes the config as JSON or TOML, chosen by extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	case ".toml":
		data, err = toml.Marshal(c)
	default:
		return errors.New("E103").WithSubject(path)
	}
	if err != nil {
		return errors.New("E102").WithSubject(path).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	c.path = path
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("E104").WithSubject("storage.s3.bucket").
				WithDetail("The s3 backend needs a bucket.")
		}
	default:
		return errors.New("E201").WithSubject(c.Storage.Backend)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return errors.New("E104").WithSubject("log.level").Wrap(err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("E104").WithSubject("log.format").
			WithDetail("The log format must be text or json.")
	}
	if c.Storage.Timeout.Duration < 0 || c.Demo.Latency.Duration < 0 {
		return errors.New("E104").WithSubject("duration").
			WithDetail("Durations must not be negative.")
	}
	return nil
}

// SQLitePath returns the sqlite database path.
func (s StorageConfig) SQLitePath() string {
	if s.DSN != "" {
		return s.DSN
	}
	return filepath.Join(s.Dir, "vstore.db")
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}
