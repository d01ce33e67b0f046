package dto

import "github.com/google/uuid"

type SyncUserRequest struct {
	DisplayName string `json:"display_name" binding:"omitempty,max=100"`
	PhotoURL    string `json:"photo_url" binding:"omitempty,url"`
	Role        string `json:"role" binding:"omitempty,oneof=student founder freelancer"`
}

// UpdateUserRequest is a partial update; nil fields are left untouched.
type UpdateUserRequest struct {
	DisplayName *string           `json:"display_name" binding:"omitempty,max=100"`
	PhotoURL    *string           `json:"photo_url"`
	Bio         *string           `json:"bio" binding:"omitempty,max=2000"`
	Role        *string           `json:"role" binding:"omitempty,oneof=student founder freelancer"`
	Skills      []string          `json:"skills" binding:"omitempty,max=50,dive,max=50"`
	SocialLinks map[string]string `json:"social_links"`
}

type ToggleBookmarkRequest struct {
	OpportunityID string `json:"opportunity_id" binding:"required,uuid"`
}

type BookmarkResponse struct {
	Bookmarked bool        `json:"bookmarked"`
	Bookmarks  []uuid.UUID `json:"bookmarks"`
}
