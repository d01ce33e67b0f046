package repository

import (
	"context"
	"time"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	// ListByRoom returns messages newest first, optionally strictly before a time.
	ListByRoom(ctx context.Context, roomID uuid.UUID, before *time.Time, limit int) ([]*entity.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *entity.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, before *time.Time, limit int) ([]*entity.Message, error) {
	var messages []*entity.Message
	query := r.db.WithContext(ctx).
		Preload("Sender", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "firebase_uid", "display_name", "photo_url", "email")
		}).
		Where("room_id = ?", roomID)
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}
	err := query.Order("created_at desc").Limit(limit).Find(&messages).Error
	return messages, err
}
