package realtime

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks the websocket clients of this process and the channels they joined.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[*Client]struct{}),
		logger:   logger,
	}
}

// Register subscribes c to the global channel and its personal user channel.
func (h *Hub) Register(c *Client) {
	h.Join(c, globalChannel)
	h.Join(c, UserChannel(c.uid))
}

// Unregister removes c from every channel and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	for name := range c.channels {
		h.removeLocked(c, name)
	}
	c.closed = true
	close(c.send)
}

func (h *Hub) Join(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[*Client]struct{})
		h.channels[channel] = set
	}
	set[c] = struct{}{}
	c.channels[channel] = struct{}{}
}

func (h *Hub) Leave(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, channel)
}

func (h *Hub) removeLocked(c *Client, channel string) {
	delete(c.channels, channel)
	if set, ok := h.channels[channel]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Revoke removes the sockets of uid from channel, or all of them when uid
// is empty.
func (h *Hub) Revoke(channel, uid string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.channels[channel] {
		if uid == "" || c.uid == uid {
			h.removeLocked(c, channel)
		}
	}
}

// Deliver writes env to every client on its channel. Clients whose queue is
// full miss the event.
func (h *Hub) Deliver(env *Envelope) {
	if env.Event == eventRevoke {
		var r revocation
		if err := json.Unmarshal(env.Data, &r); err != nil {
			h.logger.Warn("malformed revocation", zap.String("channel", env.Channel), zap.Error(err))
			return
		}
		h.Revoke(env.Channel, r.UID)
		return
	}

	frame, err := json.Marshal(Frame{Event: env.Event, Data: env.Data})
	if err != nil {
		h.logger.Warn("encode frame failed", zap.String("event", env.Event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.channels[env.Channel] {
		select {
		case c.send <- frame:
		default:
			h.logger.Debug("client queue full, dropping event",
				zap.String("uid", c.uid),
				zap.String("event", env.Event),
			)
		}
	}
}

// Presence returns the distinct user uids with a socket joined to the room.
func (h *Hub) Presence(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	for c := range h.channels[RoomChannel(roomID)] {
		seen[c.uid] = struct{}{}
	}

	uids := make([]string, 0, len(seen))
	for uid := range seen {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// ConnectedUsers counts distinct uids with at least one socket.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for name := range h.channels {
		if strings.HasPrefix(name, "user:") {
			n++
		}
	}
	return n
}
