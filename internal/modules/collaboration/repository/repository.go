package repository

import (
	"context"
	"errors"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CollaborationRepository interface {
	Create(ctx context.Context, req *entity.CollaborationRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.CollaborationRequest, error)
	// HasPending reports a pending request for the ordered (from, to) pair.
	HasPending(ctx context.Context, fromCircleID, toCircleID uuid.UUID) (bool, error)
	ListPendingForOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.CollaborationRequest, error)
	// Resolve moves a pending request to status. It reports false when the
	// request was no longer pending.
	Resolve(ctx context.Context, id uuid.UUID, status string, resultRoomID *uuid.UUID) (bool, error)
}

type collaborationRepository struct {
	db *gorm.DB
}

func NewCollaborationRepository(db *gorm.DB) CollaborationRepository {
	return &collaborationRepository{db: db}
}

func (r *collaborationRepository) Create(ctx context.Context, req *entity.CollaborationRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *collaborationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.CollaborationRequest, error) {
	var req entity.CollaborationRequest
	err := r.db.WithContext(ctx).
		Preload("FromCircle").
		Preload("ToCircle").
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *collaborationRepository) HasPending(ctx context.Context, fromCircleID, toCircleID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.CollaborationRequest{}).
		Where("from_circle_id = ? AND to_circle_id = ? AND status = ?", fromCircleID, toCircleID, entity.CollabPending).
		Count(&count).Error
	return count > 0, err
}

func (r *collaborationRepository) ListPendingForOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.CollaborationRequest, error) {
	var reqs []*entity.CollaborationRequest
	err := r.db.WithContext(ctx).
		Preload("FromCircle").
		Preload("ToCircle").
		Preload("FromOwner").
		Where("to_owner_id = ? AND status = ?", ownerID, entity.CollabPending).
		Order("created_at desc").
		Find(&reqs).Error
	return reqs, err
}

func (r *collaborationRepository) Resolve(ctx context.Context, id uuid.UUID, status string, resultRoomID *uuid.UUID) (bool, error) {
	updates := map[string]any{"status": status}
	if resultRoomID != nil {
		updates["result_room_id"] = *resultRoomID
	}
	result := r.db.WithContext(ctx).
		Model(&entity.CollaborationRequest{}).
		Where("id = ? AND status = ?", id, entity.CollabPending).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}
