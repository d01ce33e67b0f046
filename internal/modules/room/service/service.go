package room

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/room/dto"
	roomRepo "github.com/earnbuddy/backend/internal/modules/room/repository"
	userRepo "github.com/earnbuddy/backend/internal/modules/user/repository"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/cache"
	"github.com/earnbuddy/backend/pkg/storage"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultListTTL     = 300 * time.Second
	DefaultCooldown    = time.Second
	defaultMessagePage = 50
)

// Notifier delivers a persisted notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, notification *entity.Notification)
}

// Indexer keeps the search index in step with room writes.
type Indexer interface {
	IndexRoom(ctx context.Context, room *entity.Room)
	RemoveRoom(ctx context.Context, id uuid.UUID)
}

// PresenceSource reports the uids currently subscribed to a room.
type PresenceSource interface {
	Presence(roomID string) []string
}

type Service interface {
	CreateRoom(ctx context.Context, uid string, req dto.CreateRoomRequest) (*entity.Room, error)
	JoinRoom(ctx context.Context, uid string, roomID uuid.UUID) (*entity.RoomMembership, error)
	GetRooms(ctx context.Context, uid string, query dto.ListRoomsQuery) ([]dto.RoomResponse, error)
	GetMyRooms(ctx context.Context, uid string) ([]dto.MyRoomResponse, error)
	GetPendingRequests(ctx context.Context, uid string, roomID uuid.UUID) ([]dto.MemberResponse, error)
	UpdateMembershipStatus(ctx context.Context, uid string, roomID, userID uuid.UUID, status string) (*entity.RoomMembership, error)
	UpdateRoom(ctx context.Context, uid string, roomID uuid.UUID, req dto.UpdateRoomRequest) (*entity.Room, error)
	DeleteRoom(ctx context.Context, uid string, roomID uuid.UUID) error
	LeaveRoom(ctx context.Context, uid string, roomID uuid.UUID) error
	GetOnlineMembers(ctx context.Context, roomID uuid.UUID) (*dto.OnlineMembersResponse, error)
	GetRoomMembers(ctx context.Context, roomID uuid.UUID) ([]dto.MemberResponse, error)
	GetMessages(ctx context.Context, uid string, roomID uuid.UUID, query dto.ListMessagesQuery) ([]*entity.Message, error)
	SendMessage(ctx context.Context, uid string, roomID uuid.UUID, req dto.SendMessageRequest) (*entity.Message, error)
	CanAccessRoom(ctx context.Context, uid string, roomID uuid.UUID) (bool, error)
}

// Deps wires a room service. Storage, Indexer and Redis may be nil.
type Deps struct {
	Users       userRepo.UserRepository
	Rooms       roomRepo.RoomRepository
	Memberships roomRepo.MembershipRepository
	Messages    roomRepo.MessageRepository
	Cache       cache.Cache
	Bus         realtime.Bus
	Notifier    Notifier
	Indexer     Indexer
	Presence    PresenceSource
	Storage     storage.ImageStorage
	Redis       *redis.Client
	ListTTL     time.Duration
	Cooldown    time.Duration
	Logger      *zap.Logger
}

type service struct {
	Deps
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

func NewService(deps Deps) Service {
	if deps.ListTTL <= 0 {
		deps.ListTTL = DefaultListTTL
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &service{
		Deps:      deps,
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9 -]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
)

// Slugify lower-cases name, drops characters outside [a-z0-9 -] and
// hyphenates whitespace.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return slugWhitespace.ReplaceAllString(s, "-")
}

func listCacheKey(userID uuid.UUID, roomType string) string {
	if roomType == "" {
		roomType = "all"
	}
	return fmt.Sprintf("rooms:list:%s:%s", userID, roomType)
}

func (s *service) evictAllLists(ctx context.Context) {
	if err := s.Cache.DeletePattern(ctx, "rooms:list:*"); err != nil {
		s.Logger.Warn("failed to evict room listings", zap.Error(err))
	}
}

func (s *service) evictUserLists(ctx context.Context, userID uuid.UUID) {
	if err := s.Cache.DeletePattern(ctx, fmt.Sprintf("rooms:list:%s:*", userID)); err != nil {
		s.Logger.Warn("failed to evict user room listings", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func (s *service) findUser(ctx context.Context, uid string) (*entity.User, error) {
	user, err := s.Users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return user, nil
}

func (s *service) findRoom(ctx context.Context, roomID uuid.UUID) (*entity.Room, error) {
	room, err := s.Rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("room not found: %w", err)
	}
	return room, nil
}

// canManage reports whether user is the creator or an accepted admin of room.
func (s *service) canManage(ctx context.Context, room *entity.Room, user *entity.User) (bool, error) {
	if room.CreatedBy == user.ID {
		return true, nil
	}
	membership, err := s.Memberships.Find(ctx, room.ID, user.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return membership.IsAcceptedAdmin(), nil
}

// isMember reports whether user is the creator or holds an accepted membership.
func (s *service) isMember(ctx context.Context, room *entity.Room, user *entity.User) (bool, error) {
	if room.CreatedBy == user.ID {
		return true, nil
	}
	membership, err := s.Memberships.Find(ctx, room.ID, user.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return membership.Status == entity.MembershipAccepted, nil
}

// UniqueSlug derives a slug from name, suffixing the unix millis of now when
// the slug is already taken.
func UniqueSlug(ctx context.Context, rooms roomRepo.RoomRepository, name string, now time.Time) (string, error) {
	slug := Slugify(name)
	if slug == "" {
		slug = "circle"
	}

	_, err := rooms.FindBySlug(ctx, slug)
	if errors.Is(err, apperror.ErrNotFound) {
		return slug, nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", slug, now.UnixMilli()), nil
}

func (s *service) uniqueSlug(ctx context.Context, name string) (string, error) {
	return UniqueSlug(ctx, s.Rooms, name, s.now())
}

func (s *service) postSystemMessage(ctx context.Context, roomID uuid.UUID, content string) {
	msg := &entity.Message{
		RoomID:  roomID,
		Content: content,
		Type:    entity.MessageTypeSystem,
	}
	if err := s.Messages.Create(ctx, msg); err != nil {
		s.Logger.Warn("failed to save system message", zap.String("room_id", roomID.String()), zap.Error(err))
		return
	}
	s.Bus.EmitToRoom(ctx, roomID.String(), realtime.EventNewMessage, msg)
}

func (s *service) indexRoom(ctx context.Context, room *entity.Room) {
	if s.Indexer != nil {
		s.Indexer.IndexRoom(ctx, room)
	}
}

func circleLink(roomID uuid.UUID) string {
	return "/circles/" + roomID.String()
}
