package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"videoinsight/internal/broadcast"
	"videoinsight/internal/logging"
)

const (
	writeTimeout   = 10 * time.Second
	maxInboundSize = 64 * 1024
)

// wsClient adapts one WebSocket connection to broadcast.Observer.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func (c *wsClient) ID() string { return c.id }

// Deliver writes msg as one JSON text frame. gorilla connections allow one
// concurrent writer, so writes are serialized.
func (c *wsClient) Deliver(ctx context.Context, msg broadcast.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection %s closed", c.id)
	}
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(msg); err != nil {
		c.closeLocked()
		return err
	}
	return nil
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *wsClient) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}

type inbound struct {
	Type broadcast.Type `json:"type"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	conn.SetReadLimit(maxInboundSize)
	client := &wsClient{id: fmt.Sprintf("ws-%d", s.connSeq.Add(1)), conn: conn}
	logger := s.log().With(logging.String("observer", client.id))

	s.hub.Subscribe(client)
	logger.Info("websocket connected", logging.String("remote", r.RemoteAddr), logging.Int("observers", s.hub.Len()))
	defer func() {
		s.hub.Unsubscribe(client)
		client.close()
		logger.Info("websocket disconnected", logging.Int("observers", s.hub.Len()))
	}()

	ctx := context.WithoutCancel(r.Context())
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply := s.reply(data, logger)
		if !s.hub.SendToOne(ctx, client, reply) {
			return
		}
	}
}

func (s *Server) reply(data []byte, logger *slog.Logger) broadcast.Message {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Debug("malformed websocket message", logging.Error(err))
		return broadcast.ErrorMessage("malformed message")
	}
	switch msg.Type {
	case broadcast.TypePing:
		return broadcast.PongMessage()
	case broadcast.TypeStatus:
		return broadcast.StatusMessage(s.backend != nil && s.backend.Ready())
	default:
		return broadcast.ErrorMessage(fmt.Sprintf("unsupported message type %q", msg.Type))
	}
}
