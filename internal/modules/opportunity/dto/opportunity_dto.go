package dto

import (
	"github.com/earnbuddy/backend/internal/entity"
	commonDto "github.com/earnbuddy/backend/pkg/dto"
)

type RoleInput struct {
	ID          string `json:"id" binding:"omitempty,max=64"`
	Title       string `json:"title" binding:"required,max=120"`
	Description string `json:"description" binding:"max=2000"`
}

type CreateOpportunityRequest struct {
	Title        string      `json:"title" binding:"required,min=3,max=160"`
	Description  string      `json:"description" binding:"max=10000"`
	Kind         string      `json:"kind" binding:"omitempty,oneof=startup project"`
	Roles        []RoleInput `json:"roles" binding:"omitempty,max=20,dive"`
	Tags         []string    `json:"tags" binding:"omitempty,max=20,dive,max=40"`
	CreateCircle bool        `json:"create_circle"`
}

type ListOpportunitiesQuery struct {
	commonDto.PaginationQuery
	Kind string `form:"kind" binding:"omitempty,oneof=startup project"`
}

type OpportunityListResponse struct {
	Data []*entity.Opportunity    `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}
