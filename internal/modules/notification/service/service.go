package service

import (
	"context"
	"fmt"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/modules/notification/dto"
	notifRepo "github.com/earnbuddy/backend/internal/modules/notification/repository"
	userRepo "github.com/earnbuddy/backend/internal/modules/user/repository"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/pkg/apperror"
	commonDto "github.com/earnbuddy/backend/pkg/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationService interface {
	// Notify persists notification for its recipient and pushes it to the
	// recipient's realtime channel. Failures are logged, never returned.
	Notify(ctx context.Context, notification *entity.Notification)
	CreateNotification(ctx context.Context, notification *entity.Notification) error
	GetNotifications(ctx context.Context, uid string, query commonDto.PaginationQuery) (*dto.NotificationListResponse, error)
	MarkAsRead(ctx context.Context, uid string, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, uid string) (int64, error)
	UnreadCount(ctx context.Context, uid string) (int64, error)
}

type notificationService struct {
	repo   notifRepo.NotificationRepository
	users  userRepo.UserRepository
	bus    realtime.Bus
	logger *zap.Logger
}

func NewNotificationService(repo notifRepo.NotificationRepository, users userRepo.UserRepository, bus realtime.Bus, logger *zap.Logger) NotificationService {
	return &notificationService{
		repo:   repo,
		users:  users,
		bus:    bus,
		logger: logger,
	}
}

func (s *notificationService) Notify(ctx context.Context, notification *entity.Notification) {
	if err := s.CreateNotification(ctx, notification); err != nil {
		s.logger.Warn("failed to deliver notification",
			zap.String("type", notification.Type),
			zap.String("recipient", notification.UserID.String()),
			zap.Error(err),
		)
	}
}

func (s *notificationService) CreateNotification(ctx context.Context, notification *entity.Notification) error {
	recipient, err := s.users.FindByID(ctx, notification.UserID)
	if err != nil {
		return fmt.Errorf("recipient not found: %w", err)
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	s.bus.EmitToUser(ctx, recipient.FirebaseUID, realtime.EventNotificationNew, notification)
	return nil
}

func (s *notificationService) GetNotifications(ctx context.Context, uid string, query commonDto.PaginationQuery) (*dto.NotificationListResponse, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	query.Normalize(20)
	notifications, err := s.repo.GetByUserID(ctx, user.ID, query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []entity.Notification{}
	}

	return &dto.NotificationListResponse{
		Data:   notifications,
		Meta:   commonDto.PaginationMeta{Limit: query.Limit, Offset: query.Offset, Total: total},
		Unread: unread,
	}, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, uid string, id uuid.UUID) error {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	updated, err := s.repo.MarkAsRead(ctx, id, user.ID)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("notification not found: %w", apperror.ErrNotFound)
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, uid string) (int64, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("user not found: %w", err)
	}
	return s.repo.MarkAllAsRead(ctx, user.ID)
}

func (s *notificationService) UnreadCount(ctx context.Context, uid string) (int64, error) {
	user, err := s.users.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("user not found: %w", err)
	}
	return s.repo.CountUnread(ctx, user.ID)
}
