package handler

import (
	"net/http"

	"github.com/earnbuddy/backend/internal/modules/opportunity/dto"
	opportunity "github.com/earnbuddy/backend/internal/modules/opportunity/service"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OpportunityHandler struct {
	service opportunity.Service
}

func NewOpportunityHandler(service opportunity.Service) *OpportunityHandler {
	return &OpportunityHandler{service: service}
}

func (h *OpportunityHandler) CreateOpportunity(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateOpportunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	o, err := h.service.CreateOpportunity(c.Request.Context(), auth.UID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, o)
}

func (h *OpportunityHandler) ListOpportunities(c *gin.Context) {
	var query dto.ListOpportunitiesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.ListOpportunities(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *OpportunityHandler) GetOpportunity(c *gin.Context) {
	id, err := uuid.Parse(c.Param("opportunityId"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid opportunity id", apperror.ErrBadRequest))
		return
	}

	o, err := h.service.GetOpportunity(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, o)
}
