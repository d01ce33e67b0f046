package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/earnbuddy/backend/internal/modules/room/dto"
	room "github.com/earnbuddy/backend/internal/modules/room/service"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/ratelimiter"
	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RoomHandler struct {
	service room.Service
}

func NewRoomHandler(service room.Service) *RoomHandler {
	return &RoomHandler{service: service}
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, fmt.Sprintf("invalid %s", param), apperror.ErrBadRequest))
		return uuid.Nil, false
	}
	return id, true
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	r, err := h.service.CreateRoom(c.Request.Context(), auth.UID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, r)
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}

	membership, err := h.service.JoinRoom(c.Request.Context(), auth.UID, roomID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusCreated, "join request sent", gin.H{"membership": membership})
}

func (h *RoomHandler) GetRooms(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var query dto.ListRoomsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}

	rooms, err := h.service.GetRooms(c.Request.Context(), auth.UID, query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) GetMyRooms(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	rooms, err := h.service.GetMyRooms(c.Request.Context(), auth.UID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) GetOnlineMembers(c *gin.Context) {
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}

	online, err := h.service.GetOnlineMembers(c.Request.Context(), roomID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, online)
}

func (h *RoomHandler) GetPendingRequests(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}

	pending, err := h.service.GetPendingRequests(c.Request.Context(), auth.UID, roomID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, pending)
}

func (h *RoomHandler) UpdateMembershipStatus(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	var req dto.UpdateMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	membership, err := h.service.UpdateMembershipStatus(c.Request.Context(), auth.UID, roomID, userID, req.Status)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusOK, fmt.Sprintf("membership %s", membership.Status), gin.H{"membership": membership})
}

func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}

	var req dto.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	r, err := h.service.UpdateRoom(c.Request.Context(), auth.UID, roomID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, r)
}

func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}

	if err := h.service.DeleteRoom(c.Request.Context(), auth.UID, roomID); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusOK, "circle deleted", nil)
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}

	if err := h.service.LeaveRoom(c.Request.Context(), auth.UID, roomID); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusOK, "left the circle", nil)
}

func (h *RoomHandler) GetRoomMembers(c *gin.Context) {
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}

	members, err := h.service.GetRoomMembers(c.Request.Context(), roomID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, members)
}

func (h *RoomHandler) GetMessages(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}

	var query dto.ListMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}

	messages, err := h.service.GetMessages(c.Request.Context(), auth.UID, roomID, query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *RoomHandler) SendMessage(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	roomID, ok := parseID(c, "roomId")
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), auth.UID, roomID, req)
	if err != nil {
		var rateLimitErr *ratelimiter.RateLimitError
		if errors.As(err, &rateLimitErr) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(rateLimitErr.RetryAfter.Seconds()))))
		}
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}
