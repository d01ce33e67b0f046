package handler

import (
	"net/http"

	"github.com/earnbuddy/backend/internal/modules/collaboration/dto"
	collaboration "github.com/earnbuddy/backend/internal/modules/collaboration/service"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CollaborationHandler struct {
	service collaboration.Service
}

func NewCollaborationHandler(service collaboration.Service) *CollaborationHandler {
	return &CollaborationHandler{service: service}
}

func (h *CollaborationHandler) SendRequest(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	request, err := h.service.SendRequest(c.Request.Context(), auth.UID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusCreated, "collaboration request sent", gin.H{"request": request})
}

func (h *CollaborationHandler) GetPending(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	reqs, err := h.service.GetPending(c.Request.Context(), auth.UID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, reqs)
}

func (h *CollaborationHandler) Accept(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid request id", apperror.ErrBadRequest))
		return
	}

	collab, err := h.service.Accept(c.Request.Context(), auth.UID, requestID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusOK, "collaboration accepted", gin.H{"room": collab})
}

func (h *CollaborationHandler) Reject(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid request id", apperror.ErrBadRequest))
		return
	}

	if err := h.service.Reject(c.Request.Context(), auth.UID, requestID); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusOK, "collaboration rejected", nil)
}
