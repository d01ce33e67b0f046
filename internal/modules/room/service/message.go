package room

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/room/dto"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/ratelimiter"
	"github.com/google/uuid"
)

func (s *service) memberContext(ctx context.Context, uid string, roomID uuid.UUID) (*entity.User, *entity.Room, error) {
	user, err := s.findUser(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := s.isMember(ctx, room, user)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("only members can access this circle's messages: %w", apperror.ErrForbidden)
	}
	return user, room, nil
}

func (s *service) GetMessages(ctx context.Context, uid string, roomID uuid.UUID, query dto.ListMessagesQuery) ([]*entity.Message, error) {
	if _, _, err := s.memberContext(ctx, uid, roomID); err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultMessagePage
	}
	messages, err := s.Messages.ListByRoom(ctx, roomID, query.Before, limit)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*entity.Message{}
	}
	return messages, nil
}

func (s *service) SendMessage(ctx context.Context, uid string, roomID uuid.UUID, req dto.SendMessageRequest) (*entity.Message, error) {
	user, room, err := s.memberContext(ctx, uid, roomID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if content == "" {
		return nil, apperror.New(http.StatusBadRequest, "content is required", apperror.ErrBadRequest)
	}

	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.Redis, user.ID, ratelimiter.ScopeMessage, s.Cooldown)
	if err != nil {
		return nil, err
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.Redis, user.ID, ratelimiter.ScopeMessage)
		return nil, &ratelimiter.RateLimitError{
			Message:    "you are sending messages too fast, please wait",
			RetryAfter: ttl,
		}
	}

	msgType := req.Type
	if msgType == "" {
		msgType = entity.MessageTypeText
	}
	msg := &entity.Message{
		RoomID:   room.ID,
		SenderID: &user.ID,
		Sender:   user,
		Content:  content,
		Type:     msgType,
	}
	if err := s.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	s.Bus.EmitToRoom(ctx, room.ID.String(), realtime.EventNewMessage, msg)
	return msg, nil
}
