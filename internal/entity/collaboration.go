package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CollabPending  = "pending"
	CollabAccepted = "accepted"
	CollabRejected = "rejected"
)

// CollaborationRequest proposes a partnership between two circles.
// accepted and rejected are terminal.
type CollaborationRequest struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FromCircleID uuid.UUID  `gorm:"type:uuid;not null;index:idx_collab_pair" json:"from_circle_id"`
	ToCircleID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_collab_pair" json:"to_circle_id"`
	FromOwnerID  uuid.UUID  `gorm:"type:uuid;not null" json:"from_owner_id"`
	ToOwnerID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"to_owner_id"`
	FromCircle   *Room      `gorm:"foreignKey:FromCircleID" json:"from_circle,omitempty"`
	ToCircle     *Room      `gorm:"foreignKey:ToCircleID" json:"to_circle,omitempty"`
	FromOwner    *User      `gorm:"foreignKey:FromOwnerID" json:"from_owner,omitempty"`
	Message      string     `gorm:"type:text" json:"message"`
	Status       string     `gorm:"size:20;not null;default:pending" json:"status"`
	ResultRoomID *uuid.UUID `gorm:"type:uuid" json:"result_room_id,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *CollaborationRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
