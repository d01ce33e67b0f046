package entity

import (
	"time"

	"github.com/earnbuddy/backend/pkg/dto"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	UserRoleStudent    = "student"
	UserRoleFounder    = "founder"
	UserRoleFreelancer = "freelancer"
)

type User struct {
	ID          uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	FirebaseUID string                         `gorm:"size:128;uniqueIndex;not null" json:"uid"`
	Email       *string                        `gorm:"size:255;uniqueIndex" json:"email"`
	DisplayName string                         `gorm:"size:100" json:"display_name"`
	PhotoURL    string                         `gorm:"type:text" json:"photo_url"`
	Role        string                         `gorm:"size:20;default:student" json:"role"`
	Bio         string                         `gorm:"type:text" json:"bio"`
	Skills      datatypes.JSONSlice[string]    `json:"skills"`
	Bookmarks   datatypes.JSONSlice[uuid.UUID] `json:"bookmarks"`
	SocialLinks datatypes.JSONMap              `json:"social_links"`
	CreatedAt   time.Time                      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Name returns the display name, falling back to the email.
func (u *User) Name() string {
	if u.DisplayName != "" || u.Email == nil {
		return u.DisplayName
	}
	return *u.Email
}

func (u *User) Summary() dto.UserSummary {
	skills := []string(u.Skills)
	if skills == nil {
		skills = []string{}
	}
	return dto.UserSummary{
		ID:          u.ID,
		UID:         u.FirebaseUID,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Skills:      skills,
	}
}

// HasBookmark reports whether opportunityID is bookmarked.
func (u *User) HasBookmark(opportunityID uuid.UUID) bool {
	for _, id := range u.Bookmarks {
		if id == opportunityID {
			return true
		}
	}
	return false
}
