package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EventRoomCreated              = "room_created"
	EventMembershipCreated        = "membership_created"
	EventMembershipUpdated        = "membership_updated"
	EventNewMessage               = "new_message"
	EventNotificationNew          = "notification:new"
	EventApplicationCreated       = "application_created"
	EventApplicationStatusUpdated = "application_status_updated"
	EventOpportunityCreated       = "opportunity_created"
)

const globalChannel = "global"

// eventRevoke is a hub control event; it is never written to clients.
const eventRevoke = "room:revoke"

// RedisChannel carries envelopes between instances.
const RedisChannel = "earnbuddy:realtime"

func RoomChannel(roomID string) string { return "room:" + roomID }

func UserChannel(uid string) string { return "user:" + uid }

// Bus fans events out to connected clients. Emission is best-effort:
// implementations log failures and never return them.
type Bus interface {
	EmitGlobal(ctx context.Context, event string, payload any)
	EmitToRoom(ctx context.Context, roomID string, event string, payload any)
	EmitToUser(ctx context.Context, uid string, event string, payload any)
	// RevokeRoom drops uid's sockets from the room channel, or every socket
	// when uid is empty.
	RevokeRoom(ctx context.Context, roomID string, uid string)
}

type revocation struct {
	UID string `json:"uid,omitempty"`
}

// Frame is the JSON message written to a websocket client.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Envelope is a Frame addressed to a hub channel.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

func newEnvelope(channel, event string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return &Envelope{Channel: channel, Event: event, Data: data}, nil
}

// LocalBus delivers straight into the hub of this process.
type LocalBus struct {
	hub    *Hub
	logger *zap.Logger
}

func NewLocalBus(hub *Hub, logger *zap.Logger) *LocalBus {
	return &LocalBus{hub: hub, logger: logger}
}

func (b *LocalBus) emit(channel, event string, payload any) {
	env, err := newEnvelope(channel, event, payload)
	if err != nil {
		b.logger.Warn("realtime emit failed", zap.String("event", event), zap.Error(err))
		return
	}
	b.hub.Deliver(env)
}

func (b *LocalBus) EmitGlobal(_ context.Context, event string, payload any) {
	b.emit(globalChannel, event, payload)
}

func (b *LocalBus) EmitToRoom(_ context.Context, roomID string, event string, payload any) {
	b.emit(RoomChannel(roomID), event, payload)
}

func (b *LocalBus) EmitToUser(_ context.Context, uid string, event string, payload any) {
	b.emit(UserChannel(uid), event, payload)
}

func (b *LocalBus) RevokeRoom(_ context.Context, roomID string, uid string) {
	b.hub.Revoke(RoomChannel(roomID), uid)
}

// RedisBus publishes envelopes on RedisChannel; Run delivers every published
// envelope, including this instance's own, to the local hub.
type RedisBus struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

func NewRedisBus(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisBus {
	return &RedisBus{client: client, hub: hub, logger: logger}
}

func (b *RedisBus) publish(ctx context.Context, channel, event string, payload any) {
	env, err := newEnvelope(channel, event, payload)
	if err != nil {
		b.logger.Warn("realtime emit failed", zap.String("event", event), zap.Error(err))
		return
	}

	raw, err := json.Marshal(env)
	if err != nil {
		b.logger.Warn("realtime emit failed", zap.String("event", event), zap.Error(err))
		return
	}

	if err := b.client.Publish(ctx, RedisChannel, raw).Err(); err != nil {
		b.logger.Warn("realtime publish failed",
			zap.String("event", event),
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
}

func (b *RedisBus) EmitGlobal(ctx context.Context, event string, payload any) {
	b.publish(ctx, globalChannel, event, payload)
}

func (b *RedisBus) EmitToRoom(ctx context.Context, roomID string, event string, payload any) {
	b.publish(ctx, RoomChannel(roomID), event, payload)
}

func (b *RedisBus) EmitToUser(ctx context.Context, uid string, event string, payload any) {
	b.publish(ctx, UserChannel(uid), event, payload)
}

// RevokeRoom is published like any event so every instance drops the
// subscription.
func (b *RedisBus) RevokeRoom(ctx context.Context, roomID string, uid string) {
	b.publish(ctx, RoomChannel(roomID), eventRevoke, revocation{UID: uid})
}

// Run subscribes to RedisChannel until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, RedisChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", RedisChannel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("dropping malformed realtime envelope", zap.Error(err))
				continue
			}
			b.hub.Deliver(&env)
		case <-ctx.Done():
			return nil
		}
	}
}
