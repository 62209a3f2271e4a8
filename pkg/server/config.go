package server

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

// Config holds the HTTP and WebSocket settings of the demo server.
type Config struct {
	// Address is the listen address.
	// Default: ":8080".
	Address string

	// RevalidateToken guards /api/revalidate. When empty every
	// revalidation request is rejected.
	RevalidateToken string

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	// Default: 4096.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the origin of WebSocket upgrades.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// WriteWait bounds a single WebSocket write.
	// Default: 10 seconds.
	WriteWait time.Duration

	// PingInterval is the time between WebSocket pings. Connections that
	// stay silent for twice the interval are closed.
	// Default: 30 seconds.
	PingInterval time.Duration

	// MaxMessageSize limits incoming WebSocket messages.
	// Default: 4KB.
	MaxMessageSize int64

	// MaxBodySize limits JSON request bodies.
	// Default: 64KB.
	MaxBodySize int64

	// HTTP server timeouts.
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15 seconds.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       SameOriginCheck,
		WriteWait:         10 * time.Second,
		PingInterval:      30 * time.Second,
		MaxMessageSize:    4 * 1024,
		MaxBodySize:       64 * 1024,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   15 * time.Second,
	}
}

// withDefaults returns a copy of c with unset fields filled in.
func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}
	out := *c
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = defaults.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = defaults.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = defaults.CheckOrigin
	}
	if out.WriteWait == 0 {
		out.WriteWait = defaults.WriteWait
	}
	if out.PingInterval == 0 {
		out.PingInterval = defaults.PingInterval
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = defaults.MaxMessageSize
	}
	if out.MaxBodySize == 0 {
		out.MaxBodySize = defaults.MaxBodySize
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = defaults.IdleTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	return &out
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.PingInterval < 0 || c.WriteWait < 0 {
		return errors.New("server: negative WebSocket timeout")
	}
	if c.MaxMessageSize < 0 || c.MaxBodySize < 0 {
		return errors.New("server: negative size limit")
	}
	return nil
}

// SameOriginCheck accepts WebSocket upgrades whose Origin host matches the
// request host. Requests without an Origin header are accepted.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return r.Host != "" && u.Host == r.Host
}
