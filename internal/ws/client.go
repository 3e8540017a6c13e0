// Package ws implements the live push channel: one Client per websocket
// connection, pumping messages between the connection and the subscriber
// registry/fanout dispatcher.
package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sos-gateway/internal/auth"
	"sos-gateway/internal/events"
	"sos-gateway/internal/registry"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// pingPeriod is the ping interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound control messages from the peer.
	maxMessageSize = 512
	// sendBufferSize is the per-connection outbound queue. A full queue means
	// the connection is not draining; deliveries are dropped, not queued
	// indefinitely.
	sendBufferSize = 64
)

// Client is one live websocket session. It implements registry.Session: the
// dispatcher hands it marshaled event envelopes and it pushes them down the
// socket from its write pump.
type Client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	registry *registry.Registry
	send     chan []byte
}

// NewClient wraps an upgraded connection for the given verified identity.
func NewClient(conn *websocket.Conn, identity auth.Identity, reg *registry.Registry) *Client {
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		registry: reg,
		send:     make(chan []byte, sendBufferSize),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Send enqueues a message for the write pump. It never blocks: a full send
// buffer means the connection is stalled or gone, and the delivery is dropped
// rather than retried against a session that may be torn down.
func (c *Client) Send(message []byte) error {
	select {
	case c.send <- message:
		return nil
	default:
		return fmt.Errorf("send buffer full for connection %s", c.id)
	}
}

// ReadPump consumes control messages from the peer until the connection drops,
// then unregisters the session. Room membership dies with the connection; the
// client re-joins on reconnect.
func (c *Client) ReadPump() {
	defer func() {
		c.registry.Unregister(c.id)
		c.conn.Close()
		slog.Info("Websocket session closed", "connection_id", c.id, "user_id", c.identity.ID)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("Websocket read error", "connection_id", c.id, "error", err)
			}
			break
		}
		c.handleControl(message)
	}
}

// handleControl processes a client-to-server control message. The only one
// recognized is join-role-room; the declared room is cross-checked against the
// authenticated caller's role before membership is granted, because a
// client-declared room name is untrusted input.
func (c *Client) handleControl(message []byte) {
	var msg events.JoinRoleRoom
	if err := json.Unmarshal(message, &msg); err != nil {
		slog.Debug("Ignoring unparseable control message", "connection_id", c.id, "error", err)
		return
	}
	if msg.Event != events.EventJoinRoleRoom {
		slog.Debug("Ignoring unknown control event", "connection_id", c.id, "event", msg.Event)
		return
	}

	room := msg.Room
	if room != auth.RoleAdmin && room != auth.RoleSupervisor {
		slog.Warn("Join rejected: not a fanout room", "connection_id", c.id, "room", room)
		c.sendEnvelope(events.EventJoinRejected, map[string]string{"room": room, "reason": "unknown room"})
		return
	}
	if room != c.identity.Role {
		slog.Warn("Join rejected: declared room does not match authenticated role",
			"connection_id", c.id,
			"room", room,
			"role", c.identity.Role,
			"user_id", c.identity.ID,
		)
		c.sendEnvelope(events.EventJoinRejected, map[string]string{"room": room, "reason": "role mismatch"})
		return
	}

	c.registry.Join(c.id, room)
	slog.Info("Session joined role room", "connection_id", c.id, "room", room, "user_id", c.identity.ID)
	c.sendEnvelope(events.EventRoomJoined, map[string]string{"room": room})
}

func (c *Client) sendEnvelope(event string, payload any) {
	msg, err := json.Marshal(events.Envelope{Event: event, Payload: payload})
	if err != nil {
		slog.Error("Failed to marshal control reply", "event", event, "error", err)
		return
	}
	if err := c.Send(msg); err != nil {
		slog.Warn("Failed to queue control reply", "connection_id", c.id, "error", err)
	}
}

// WritePump pushes queued messages down the connection and keeps it alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("Websocket write error", "connection_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
