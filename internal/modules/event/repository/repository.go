package repository

import (
	"context"
	"time"

	"github.com/earnbuddy/backend/internal/entity"
	"gorm.io/gorm"
)

type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	// ListUpcoming returns events starting at or after from, soonest first.
	ListUpcoming(ctx context.Context, from time.Time, limit, offset int) ([]*entity.Event, error)
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) ListUpcoming(ctx context.Context, from time.Time, limit, offset int) ([]*entity.Event, error) {
	var events []*entity.Event
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("starts_at >= ?", from).
		Order("starts_at asc").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	return events, err
}
