package handler

import (
	"net/http"

	"github.com/earnbuddy/backend/internal/modules/application/dto"
	application "github.com/earnbuddy/backend/internal/modules/application/service"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ApplicationHandler struct {
	service application.Service
}

func NewApplicationHandler(service application.Service) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

func (h *ApplicationHandler) Apply(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	app, err := h.service.Apply(c.Request.Context(), auth.UID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusCreated, "application submitted", gin.H{"application": app})
}

func (h *ApplicationHandler) GetMyApplications(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	apps, err := h.service.GetMyApplications(c.Request.Context(), auth.UID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, apps)
}

func (h *ApplicationHandler) GetApplicationsForOpportunity(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	opportunityID, err := uuid.Parse(c.Param("opportunityId"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid opportunity id", apperror.ErrBadRequest))
		return
	}

	applicants, err := h.service.GetApplicationsForOpportunity(c.Request.Context(), auth.UID, opportunityID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, applicants)
}

func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	auth, err := response.GetAuthUser(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	applicationID, err := uuid.Parse(c.Param("applicationId"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid application id", apperror.ErrBadRequest))
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	app, err := h.service.UpdateStatus(c.Request.Context(), auth.UID, applicationID, req.Status)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Message(c, http.StatusOK, "application status updated", gin.H{"application": app})
}
