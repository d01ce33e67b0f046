package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/response"
	"github.com/earnbuddy/backend/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadSize = 5 << 20

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type UploadHandler struct {
	storage storage.ImageStorage
}

// NewUploadHandler accepts a nil storage, in which case every upload is refused.
func NewUploadHandler(storage storage.ImageStorage) *UploadHandler {
	return &UploadHandler{storage: storage}
}

type signatureRequest struct {
	Folder string `json:"folder" binding:"omitempty,max=100,excludesall=.\\"`
}

func (h *UploadHandler) unavailable(c *gin.Context) bool {
	if h.storage == nil {
		response.ResponseError(c, fmt.Errorf("uploads are not configured: %w", apperror.ErrUnavailable))
		return true
	}
	return false
}

func (h *UploadHandler) Signature(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	var req signatureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BindError(c, err)
			return
		}
	}

	sig, err := h.storage.SignUpload(req.Folder)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, sig)
}

func (h *UploadHandler) Upload(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "file is required", apperror.ErrBadRequest))
		return
	}
	if file.Size > maxUploadSize {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "file must be at most 5MB", apperror.ErrBadRequest))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "only jpg, png, gif and webp images are allowed", apperror.ErrBadRequest))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.ResponseError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer src.Close()

	url, err := h.storage.UploadImage(c.Request.Context(), src, c.PostForm("folder"), uuid.NewString()+ext)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}
