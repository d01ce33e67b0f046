package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OpportunityKindStartup = "startup"
	OpportunityKindProject = "project"
)

type OpportunityRole struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Opportunity struct {
	ID              uuid.UUID                            `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string                               `gorm:"size:160;not null" json:"title"`
	Description     string                               `gorm:"type:text" json:"description"`
	Kind            string                               `gorm:"size:20;not null;default:project;index" json:"kind"`
	PostedBy        uuid.UUID                            `gorm:"type:uuid;not null;index" json:"posted_by"`
	Poster          *User                                `gorm:"foreignKey:PostedBy" json:"poster,omitempty"`
	Applicants      datatypes.JSONSlice[uuid.UUID]       `gorm:"type:jsonb" json:"applicants"`
	TotalApplicants *int                                 `json:"total_applicants,omitempty"`
	RoomID          *uuid.UUID                           `gorm:"type:uuid" json:"room_id,omitempty"`
	Roles           datatypes.JSONSlice[OpportunityRole] `json:"roles,omitempty"`
	Tags            datatypes.JSONSlice[string]          `json:"tags,omitempty"`
	CreatedAt       time.Time                            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *Opportunity) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

const (
	ApplicationPending      = "pending"
	ApplicationAccepted     = "accepted"
	ApplicationRejected     = "rejected"
	ApplicationInterviewing = "interviewing"
)

// Application is unique per (opportunity, applicant).
type Application struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OpportunityID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_opportunity_applicant" json:"opportunity_id"`
	ApplicantID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_opportunity_applicant;index" json:"applicant_id"`
	Opportunity   *Opportunity   `gorm:"foreignKey:OpportunityID" json:"opportunity,omitempty"`
	Applicant     *User          `gorm:"foreignKey:ApplicantID" json:"applicant,omitempty"`
	Message       string         `gorm:"type:text" json:"message"`
	Details       datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`
	RoleID        *string        `gorm:"size:64" json:"role_id,omitempty"`
	Status        string         `gorm:"size:20;not null;default:pending" json:"status"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
