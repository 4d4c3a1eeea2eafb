package handlers

import (
	"errors"
	"net/http"

	"github.com/carshot/backend/internal/config"
	"github.com/carshot/backend/internal/services"
	"github.com/carshot/backend/pkg/validation"
	"github.com/gin-gonic/gin"
)

type BackgroundHandler struct {
	backgroundService *services.BackgroundService
	cfg               *config.Config
}

func NewBackgroundHandler(backgroundService *services.BackgroundService, cfg *config.Config) *BackgroundHandler {
	return &BackgroundHandler{
		backgroundService: backgroundService,
		cfg:               cfg,
	}
}

// ListBackgrounds returns built-in and custom backdrops
func (h *BackgroundHandler) ListBackgrounds(c *gin.Context) {
	userID := c.GetString("user_id")
	ctx := c.Request.Context()

	backgrounds, err := h.backgroundService.Backgrounds(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load backgrounds"})
		return
	}
	selected, err := h.backgroundService.SelectedBackground(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load selection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"backgrounds": backgrounds, "selected": selected})
}

// AddCustomBackground uploads a user backdrop
func (h *BackgroundHandler) AddCustomBackground(c *gin.Context) {
	userID := c.GetString("user_id")

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file required"})
		return
	}
	if file.Size > h.cfg.UploadMaxImageSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image too large"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read image"})
		return
	}
	defer src.Close()

	name := validation.SanitizeString(c.PostForm("name"))
	bg, err := h.backgroundService.AddCustomBackground(c.Request.Context(), userID, name, file.Filename, src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"background": bg})
}

// SelectBackground stores the user's backdrop choice
func (h *BackgroundHandler) SelectBackground(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		BackgroundID string `json:"background_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.backgroundService.SelectBackground(c.Request.Context(), userID, req.BackgroundID); err != nil {
		if errors.Is(err, services.ErrBackgroundNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Background not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to select background"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Background selected"})
}
