package repository

import (
	"context"
	"errors"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoomFilter selects public rooms for listing. An empty Type excludes
// opportunity circles.
type RoomFilter struct {
	Type string
}

type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Room, error)
	FindBySlug(ctx context.Context, slug string) (*entity.Room, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Room, error)
	ListPublic(ctx context.Context, filter RoomFilter) ([]*entity.Room, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// Delete removes the room with its memberships and messages in one transaction.
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementMembers(ctx context.Context, id uuid.UUID, delta int) error
}

type roomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, room *entity.Room) error {
	return translate(r.db.WithContext(ctx).Create(room).Error)
}

func (r *roomRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Room, error) {
	var room entity.Room
	if err := r.db.WithContext(ctx).Preload("Creator").Where("id = ?", id).First(&room).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (r *roomRepository) FindBySlug(ctx context.Context, slug string) (*entity.Room, error) {
	var room entity.Room
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&room).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (r *roomRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Room, error) {
	var rooms []*entity.Room
	if len(ids) == 0 {
		return rooms, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("id IN ?", ids).
		Order("created_at desc").
		Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) ListPublic(ctx context.Context, filter RoomFilter) ([]*entity.Room, error) {
	var rooms []*entity.Room
	query := r.db.WithContext(ctx).Preload("Creator").Where("is_private = ?", false)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	} else {
		query = query.Where("type <> ?", entity.RoomTypeOpportunity)
	}
	err := query.Order("created_at desc").Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Model(&entity.Room{}).Where("id = ?", id).Updates(updates).Error)
}

func (r *roomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&entity.RoomMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&entity.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&entity.Room{}).Error
	})
}

func (r *roomRepository) IncrementMembers(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&entity.Room{}).
		Where("id = ?", id).
		UpdateColumn("members_count", gorm.Expr("members_count + ?", delta)).Error
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperror.ErrConflict
	}
	return err
}
