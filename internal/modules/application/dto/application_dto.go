package dto

import (
	"encoding/json"
	"time"

	commonDto "github.com/earnbuddy/backend/pkg/dto"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ApplyRequest carries message either as a JSON string or as any JSON value,
// which is then handled as its encoding.
type ApplyRequest struct {
	OpportunityID string          `json:"opportunity_id" binding:"required,uuid"`
	Message       json.RawMessage `json:"message"`
	RoleID        *string         `json:"role_id" binding:"omitempty,max=64"`
}

// MessageText returns the message as a string.
func (r ApplyRequest) MessageText() string {
	if len(r.Message) == 0 || string(r.Message) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Message, &s); err == nil {
		return s
	}
	return string(r.Message)
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ApplicantResponse struct {
	ApplicationID uuid.UUID             `json:"application_id"`
	Status        string                `json:"status"`
	Message       string                `json:"message"`
	Details       datatypes.JSON        `json:"details,omitempty"`
	RoleID        *string               `json:"role_id,omitempty"`
	AppliedAt     time.Time             `json:"applied_at"`
	Applicant     commonDto.UserSummary `json:"applicant"`
}
