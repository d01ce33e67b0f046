package handler

import (
	"net/http"

	"github.com/earnbuddy/backend/internal/modules/event/dto"
	event "github.com/earnbuddy/backend/internal/modules/event/service"
	commonDto "github.com/earnbuddy/backend/pkg/dto"
	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	service event.Service
}

func NewEventHandler(service event.Service) *EventHandler {
	return &EventHandler{service: service}
}

func (h *EventHandler) ListEvents(c *gin.Context) {
	var query commonDto.PaginationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}

	events, err := h.service.ListEvents(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	e, err := h.service.CreateEvent(c.Request.Context(), auth.UID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, e)
}
