package handler

import (
	"net/http"

	"github.com/earnbuddy/backend/internal/modules/notification/dto"
	notification "github.com/earnbuddy/backend/internal/modules/notification/service"
	"github.com/earnbuddy/backend/pkg/apperror"
	commonDto "github.com/earnbuddy/backend/pkg/dto"
	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	service notification.NotificationService
}

func NewNotificationHandler(service notification.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var query commonDto.PaginationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.GetNotifications(c.Request.Context(), auth.UID, query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), auth.UID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.UnreadCountResponse{Count: count})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid notification id", apperror.ErrBadRequest))
		return
	}

	if err := h.service.MarkAsRead(c.Request.Context(), auth.UID, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusOK, "notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	updated, err := h.service.MarkAllAsRead(c.Request.Context(), auth.UID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusOK, "all notifications marked as read", gin.H{"updated": updated})
}
