package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoomTypeCommunity   = "community"
	RoomTypeCollab      = "collab"
	RoomTypeOpportunity = "opportunity"
)

// Room is a circle. MembersCount is a denormalized cache of accepted memberships
// and is only changed through atomic increments.
type Room struct {
	ID            uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string                         `gorm:"size:120;not null" json:"name"`
	Slug          string                         `gorm:"size:160;uniqueIndex;not null" json:"slug"`
	Description   string                         `gorm:"type:text" json:"description"`
	Avatar        string                         `gorm:"type:text" json:"avatar"`
	IsPrivate     bool                           `gorm:"default:false" json:"is_private"`
	CreatedBy     uuid.UUID                      `gorm:"type:uuid;not null;index" json:"created_by"`
	Creator       *User                          `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	MembersCount  int                            `gorm:"not null;default:1" json:"members_count"`
	Type          string                         `gorm:"size:20;not null;default:community;index" json:"type"`
	Collaborators datatypes.JSONSlice[uuid.UUID] `json:"collaborators,omitempty"`
	CreatedAt     time.Time                      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

const (
	MemberRoleAdmin  = "admin"
	MemberRoleMember = "member"

	MembershipPending  = "pending"
	MembershipAccepted = "accepted"
	MembershipRejected = "rejected"
)

// RoomMembership joins a user to a room. At most one row exists per (room, user).
type RoomMembership struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_room_user" json:"room_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_room_user;index" json:"user_id"`
	Role      string    `gorm:"size:20;not null;default:member" json:"role"`
	Status    string    `gorm:"size:20;not null;default:pending" json:"status"`
	Room      *Room     `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *RoomMembership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsAcceptedAdmin reports whether the membership grants room administration.
func (m *RoomMembership) IsAcceptedAdmin() bool {
	return m != nil && m.Status == MembershipAccepted && m.Role == MemberRoleAdmin
}

const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
	MessageTypeImage  = "image"
)

type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_room_created" json:"room_id"`
	SenderID  *uuid.UUID `gorm:"type:uuid" json:"sender_id,omitempty"`
	Sender    *User      `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Type      string     `gorm:"size:20;not null;default:text" json:"type"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index:idx_room_created" json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
