package dto

import (
	"time"

	"github.com/earnbuddy/backend/internal/entity"
	commonDto "github.com/earnbuddy/backend/pkg/dto"
	"github.com/google/uuid"
)

type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=120"`
	Description string `json:"description" binding:"max=2000"`
	IsPrivate   bool   `json:"is_private"`
	Avatar      string `json:"avatar"`
	Icon        string `json:"icon"`
	Slug        string `json:"slug" binding:"omitempty,max=160"`
	Type        string `json:"type" binding:"omitempty,oneof=community collab opportunity"`
}

// AvatarURL resolves the avatar, accepting icon as an alias.
func (r CreateRoomRequest) AvatarURL() string {
	if r.Avatar != "" {
		return r.Avatar
	}
	return r.Icon
}

// UpdateRoomRequest only applies the fields that are present.
type UpdateRoomRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=120"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Avatar      *string `json:"avatar"`
	Slug        *string `json:"slug" binding:"omitempty,min=1,max=160"`
}

type ListRoomsQuery struct {
	Type string `form:"type" binding:"omitempty,oneof=community collab opportunity"`
}

type UpdateMembershipRequest struct {
	Status string `json:"status" binding:"required"`
}

type RoomResponse struct {
	*entity.Room
	IsMember          bool `json:"is_member"`
	HasPendingRequest bool `json:"has_pending_request"`
}

type MyRoomResponse struct {
	*entity.Room
	CreatorUID string   `json:"creator_uid"`
	MemberUIDs []string `json:"member_uids"`
	MyRole     string   `json:"my_role"`
}

type MemberResponse struct {
	MembershipID uuid.UUID             `json:"membership_id"`
	Role         string                `json:"role"`
	Status       string                `json:"status"`
	JoinedAt     time.Time             `json:"joined_at"`
	User         commonDto.UserSummary `json:"user"`
}

type OnlineMembersResponse struct {
	RoomID string   `json:"room_id"`
	Online []string `json:"online"`
	Count  int      `json:"count"`
}

type ListMessagesQuery struct {
	Limit  int        `form:"limit" binding:"omitempty,min=1,max=100"`
	Before *time.Time `form:"before" time_format:"2006-01-02T15:04:05Z07:00"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
	Type    string `json:"type" binding:"omitempty,oneof=text image"`
}
