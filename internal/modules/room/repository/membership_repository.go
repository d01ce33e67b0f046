package repository

import (
	"context"

	"github.com/earnbuddy/backend/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository interface {
	// CreateIfAbsent inserts m unless a row for (room, user) already exists.
	// It reports whether the row was inserted.
	CreateIfAbsent(ctx context.Context, m *entity.RoomMembership) (bool, error)
	Find(ctx context.Context, roomID, userID uuid.UUID) (*entity.RoomMembership, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// Promote sets the membership to accepted, reporting false when it already was.
	Promote(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByRoom(ctx context.Context, roomID uuid.UUID, status string) ([]*entity.RoomMembership, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entity.RoomMembership, error)
	// MemberUIDs returns the firebase uids of accepted members for each room.
	MemberUIDs(ctx context.Context, roomIDs []uuid.UUID) (map[uuid.UUID][]string, error)
}

type membershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) CreateIfAbsent(ctx context.Context, m *entity.RoomMembership) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(m)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *membershipRepository) Find(ctx context.Context, roomID, userID uuid.UUID) (*entity.RoomMembership, error) {
	var m entity.RoomMembership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *membershipRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.RoomMembership{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *membershipRepository) Promote(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.RoomMembership{}).
		Where("id = ? AND status <> ?", id, entity.MembershipAccepted).
		Update("status", entity.MembershipAccepted)
	return result.RowsAffected > 0, result.Error
}

func (r *membershipRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.RoomMembership{}).Error
}

func (r *membershipRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, status string) ([]*entity.RoomMembership, error) {
	var memberships []*entity.RoomMembership
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ? AND status = ?", roomID, status).
		Order("created_at asc").
		Find(&memberships).Error
	return memberships, err
}

func (r *membershipRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entity.RoomMembership, error) {
	var memberships []*entity.RoomMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&memberships).Error
	return memberships, err
}

func (r *membershipRepository) MemberUIDs(ctx context.Context, roomIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		RoomID      uuid.UUID
		FirebaseUID string
	}
	err := r.db.WithContext(ctx).
		Table("room_memberships").
		Select("room_memberships.room_id, users.firebase_uid").
		Joins("JOIN users ON users.id = room_memberships.user_id").
		Where("room_memberships.room_id IN ? AND room_memberships.status = ?", roomIDs, entity.MembershipAccepted).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.RoomID] = append(out[row.RoomID], row.FirebaseUID)
	}
	return out, nil
}
