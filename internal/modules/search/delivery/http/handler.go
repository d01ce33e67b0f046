package handler

import (
	"net/http"

	search "github.com/earnbuddy/backend/internal/modules/search/service"
	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	service search.Service
}

func NewSearchHandler(service search.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

type searchQuery struct {
	Q     string `form:"q"`
	Index string `form:"index" binding:"omitempty,oneof=rooms opportunities"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var query searchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}
	if query.Index == "" {
		query.Index = search.IndexRooms
	}

	result, err := h.service.Search(c.Request.Context(), query.Index, query.Q, query.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
