package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/vstore/pkg/demo"
)

// handleWebSocket streams the documents of one store. The current document
// is sent on connect, then one per transition. Slow clients skip
// intermediate documents but always receive the newest one.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "store")
	b, ok := s.app.Binding(name)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: store %q", errNotFound, name))
		return
	}
	select {
	case <-s.quit:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.recordWSError("upgrade")
		s.logger.Debug("websocket upgrade failed", "store", name, "error", err)
		return
	}

	s.conns.Add(1)
	defer s.conns.Done()
	if s.metrics != nil {
		s.metrics.RecordWebSocketOpen()
		defer s.metrics.RecordWebSocketClose()
	}

	c := &wsConn{
		server:  s,
		conn:    conn,
		store:   name,
		updates: make(chan demo.Snapshot, 1),
		closed:  make(chan struct{}),
	}
	c.serve(b)
}

type wsConn struct {
	server  *Server
	conn    *websocket.Conn
	store   string
	updates chan demo.Snapshot
	closed  chan struct{}
	version uint64
	sent    bool
}

func (c *wsConn) serve(b demo.Binding) {
	unsubscribe := b.Subscribe(c.offer)
	go c.readLoop()
	defer func() {
		unsubscribe()
		c.conn.Close()
		<-c.closed
	}()

	if err := c.write(b.Snapshot()); err != nil {
		c.fail("write", err)
		return
	}
	c.writeLoop()
}

// offer queues snap, replacing a document the writer has not picked up.
// Only the store's delivery loop calls offer.
func (c *wsConn) offer(snap demo.Snapshot) {
	select {
	case c.updates <- snap:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- snap:
	default:
	}
}

// readLoop discards client messages and watches for disconnects.
func (c *wsConn) readLoop() {
	defer close(c.closed)

	cfg := c.server.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(2 * cfg.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * cfg.PingInterval))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.fail("read", err)
			}
			return
		}
	}
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.server.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case snap := <-c.updates:
			if err := c.write(snap); err != nil {
				c.fail("write", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail("ping", err)
				return
			}
		case <-c.closed:
			return
		case <-c.server.quit:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteWait))
			c.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			)
			return
		}
	}
}

// write sends snap unless a newer document already went out.
func (c *wsConn) write(snap demo.Snapshot) error {
	if c.sent && snap.Version <= c.version {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteWait))
	if err := c.conn.WriteJSON(snap); err != nil {
		return err
	}
	c.sent = true
	c.version = snap.Version
	return nil
}

func (c *wsConn) fail(op string, err error) {
	c.server.recordWSError(op)
	c.server.logger.Debug("websocket "+op+" failed", "store", c.store, "error", err)
}

func (s *Server) recordWSError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordWebSocketError(kind)
	}
}
