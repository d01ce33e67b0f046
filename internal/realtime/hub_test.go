package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func newTestClient(hub *Hub, uid string) *Client {
	return NewClient(hub, nil, uid)
}

func readFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case raw := <-c.send:
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func TestLocalBus_Scopes(t *testing.T) {
	hub := NewHub(zap.NewNop())
	bus := NewLocalBus(hub, zap.NewNop())
	ctx := context.Background()

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)
	hub.Join(alice, RoomChannel("r1"))

	bus.EmitGlobal(ctx, EventRoomCreated, map[string]string{"id": "r1"})
	if f := readFrame(t, alice); f.Event != EventRoomCreated {
		t.Errorf("alice global: got %q, want %q", f.Event, EventRoomCreated)
	}
	if f := readFrame(t, bob); f.Event != EventRoomCreated {
		t.Errorf("bob global: got %q, want %q", f.Event, EventRoomCreated)
	}

	bus.EmitToRoom(ctx, "r1", EventNewMessage, map[string]string{"content": "hi"})
	if f := readFrame(t, alice); f.Event != EventNewMessage {
		t.Errorf("alice room: got %q, want %q", f.Event, EventNewMessage)
	}
	assertNoFrame(t, bob)

	bus.EmitToUser(ctx, "bob", EventNotificationNew, map[string]string{"title": "x"})
	if f := readFrame(t, bob); f.Event != EventNotificationNew {
		t.Errorf("bob user: got %q, want %q", f.Event, EventNotificationNew)
	}
	assertNoFrame(t, alice)
}

func TestHub_PresenceDeduplicatesByUser(t *testing.T) {
	hub := NewHub(zap.NewNop())

	a1 := newTestClient(hub, "alice")
	a2 := newTestClient(hub, "alice")
	b := newTestClient(hub, "bob")
	for _, c := range []*Client{a1, a2, b} {
		hub.Register(c)
		hub.Join(c, RoomChannel("r1"))
	}

	got := hub.Presence("r1")
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("Presence: got %v, want [alice bob]", got)
	}

	hub.Unregister(a1)
	if got := hub.Presence("r1"); len(got) != 2 {
		t.Errorf("alice still has a socket, got %v", got)
	}

	hub.Unregister(a2)
	if got := hub.Presence("r1"); len(got) != 1 || got[0] != "bob" {
		t.Errorf("after alice left: got %v, want [bob]", got)
	}

	hub.Leave(b, RoomChannel("r1"))
	if got := hub.Presence("r1"); len(got) != 0 {
		t.Errorf("expected empty presence, got %v", got)
	}
	if n := hub.ConnectedUsers(); n != 1 {
		t.Errorf("ConnectedUsers: got %d, want 1", n)
	}
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newTestClient(hub, "alice")
	hub.Register(c)

	hub.Unregister(c)
	hub.Unregister(c)

	hub.Join(c, RoomChannel("r1"))
	if got := hub.Presence("r1"); len(got) != 0 {
		t.Errorf("closed client must not join channels, got %v", got)
	}
}

type allowRooms map[uuid.UUID]bool

func (a allowRooms) CanAccessRoom(_ context.Context, _ string, roomID uuid.UUID) (bool, error) {
	return a[roomID], nil
}

func TestHandler_WebSocketJoinAndReceive(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := NewHub(zap.NewNop())
	bus := NewLocalBus(hub, zap.NewNop())
	allowed := uuid.New()
	denied := uuid.New()
	h := NewHandler(hub, allowRooms{allowed: true}, nil, zap.NewNop())

	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		c.Set(response.AuthUserKey, &response.AuthUser{UID: "alice"})
		c.Next()
	}, h.HandleWebSocket)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status: got %d, want 101", resp.StatusCode)
	}

	for _, id := range []uuid.UUID{allowed, denied} {
		cmd, _ := json.Marshal(clientCommand{Action: ActionJoinRoom, RoomID: id.String()})
		if err := conn.WriteMessage(websocket.TextMessage, cmd); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(hub.Presence(allowed.String())) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never joined the allowed room")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := hub.Presence(denied.String()); len(got) != 0 {
		t.Errorf("denied room presence: got %v, want empty", got)
	}

	bus.EmitToRoom(context.Background(), allowed.String(), EventNewMessage, map[string]string{"content": "hello"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Event != EventNewMessage {
		t.Errorf("event: got %q, want %q", f.Event, EventNewMessage)
	}
	if !strings.Contains(string(f.Data), "hello") {
		t.Errorf("data: got %s", f.Data)
	}
}

func TestLocalBus_RevokeRoom(t *testing.T) {
	hub := NewHub(zap.NewNop())
	bus := NewLocalBus(hub, zap.NewNop())
	ctx := context.Background()

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)
	hub.Join(alice, RoomChannel("r1"))
	hub.Join(bob, RoomChannel("r1"))

	bus.RevokeRoom(ctx, "r1", "bob")
	bus.EmitToRoom(ctx, "r1", EventNewMessage, map[string]string{"content": "after leave"})
	if f := readFrame(t, alice); f.Event != EventNewMessage {
		t.Errorf("alice room: got %q, want %q", f.Event, EventNewMessage)
	}
	assertNoFrame(t, bob)

	bus.EmitToUser(ctx, "bob", EventNotificationNew, map[string]string{"title": "x"})
	if f := readFrame(t, bob); f.Event != EventNotificationNew {
		t.Errorf("bob user channel: got %q, want %q", f.Event, EventNotificationNew)
	}

	bus.RevokeRoom(ctx, "r1", "")
	if got := hub.Presence("r1"); len(got) != 0 {
		t.Errorf("presence after delete = %v, want empty", got)
	}
}

func TestHub_DeliverRevocationEnvelope(t *testing.T) {
	hub := NewHub(zap.NewNop())
	bob := newTestClient(hub, "bob")
	hub.Register(bob)
	hub.Join(bob, RoomChannel("r1"))

	env, err := newEnvelope(RoomChannel("r1"), eventRevoke, revocation{UID: "bob"})
	if err != nil {
		t.Fatalf("newEnvelope: %v", err)
	}
	hub.Deliver(env)

	assertNoFrame(t, bob)
	if got := hub.Presence("r1"); len(got) != 0 {
		t.Errorf("presence = %v, want empty", got)
	}
}
