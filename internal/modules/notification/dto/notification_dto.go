package dto

import (
	"github.com/earnbuddy/backend/internal/entity"
	commonDto "github.com/earnbuddy/backend/pkg/dto"
)

type NotificationListResponse struct {
	Data   []entity.Notification    `json:"data"`
	Meta   commonDto.PaginationMeta `json:"meta"`
	Unread int64                    `json:"unread"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
