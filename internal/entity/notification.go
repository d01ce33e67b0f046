package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NotificationJoinRequest         = "join_request"
	NotificationJoinApproved        = "join_approved"
	NotificationNewApplication      = "new_application"
	NotificationApplicationAccepted = "application_accepted"
	NotificationApplicationUpdate   = "application_update"
	NotificationCollabRequest       = "collab_request"
	NotificationCollabAccepted      = "collab_accepted"
	NotificationCollabRejected      = "collab_rejected"
)

type Notification struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_notification_user" json:"user_id"` // recipient
	ActorID   *uuid.UUID `gorm:"type:uuid" json:"actor_id,omitempty"`
	Type      string     `gorm:"size:50;not null" json:"type"`
	Title     string     `gorm:"size:200" json:"title"`
	Body      string     `gorm:"type:text" json:"body"`
	Link      string     `gorm:"type:text" json:"link"`
	IsRead    bool       `gorm:"default:false;index:idx_notification_user" json:"is_read"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Actor *User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
