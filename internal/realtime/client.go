package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 64
)

const (
	ActionJoinRoom  = "join_room"
	ActionLeaveRoom = "leave_room"
)

// RoomAuthorizer decides whether a user may subscribe to a room channel.
type RoomAuthorizer interface {
	CanAccessRoom(ctx context.Context, uid string, roomID uuid.UUID) (bool, error)
}

// Client is one websocket connection. channels and closed are guarded by hub.mu.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	uid      string
	send     chan []byte
	channels map[string]struct{}
	closed   bool
}

func NewClient(hub *Hub, conn *websocket.Conn, uid string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		uid:      uid,
		send:     make(chan []byte, sendQueueSize),
		channels: make(map[string]struct{}),
	}
}

type clientCommand struct {
	Action string `json:"action"`
	RoomID string `json:"room_id"`
}

// ReadPump handles join/leave commands until the connection closes.
func (c *Client) ReadPump(ctx context.Context, authz RoomAuthorizer, logger *zap.Logger) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket closed", zap.String("uid", c.uid), zap.Error(err))
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		c.handle(ctx, cmd, authz, logger)
	}
}

func (c *Client) handle(ctx context.Context, cmd clientCommand, authz RoomAuthorizer, logger *zap.Logger) {
	roomID, err := uuid.Parse(cmd.RoomID)
	if err != nil {
		return
	}

	switch cmd.Action {
	case ActionJoinRoom:
		ok, err := authz.CanAccessRoom(ctx, c.uid, roomID)
		if err != nil {
			logger.Warn("room access check failed", zap.String("uid", c.uid), zap.Error(err))
			return
		}
		if !ok {
			return
		}
		c.hub.Join(c, RoomChannel(roomID.String()))
	case ActionLeaveRoom:
		c.hub.Leave(c, RoomChannel(roomID.String()))
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
