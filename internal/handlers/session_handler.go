package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/carshot/backend/internal/config"
	"github.com/carshot/backend/internal/services"
	"github.com/carshot/backend/pkg/validation"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionService *services.SessionService
	angleService   *services.AngleService
	storageService *services.StorageService
	cfg            *config.Config
}

func NewSessionHandler(sessionService *services.SessionService, angleService *services.AngleService, storageService *services.StorageService, cfg *config.Config) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		angleService:   angleService,
		storageService: storageService,
		cfg:            cfg,
	}
}

// ListAngles returns the guided capture catalog
func (h *SessionHandler) ListAngles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"angles": h.angleService.Angles()})
}

// CreateSession starts a new photo session for a vehicle
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req struct {
		CarMake      string `json:"car_make" binding:"required"`
		CarModel     string `json:"car_model" binding:"required"`
		Year         int    `json:"year" binding:"required"`
		DealershipID string `json:"dealership_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validation.ValidateVehicleYear(req.Year) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle year"})
		return
	}

	userID := c.GetString("user_id")
	session, err := h.sessionService.CreateSession(c.Request.Context(), userID, req.DealershipID, req.CarMake, req.CarModel, req.Year)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// GetActiveSession returns the current session, or 404 when none exists
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	userID := c.GetString("user_id")
	session, err := h.sessionService.ActiveSession(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":                session,
		"has_all_required_angles": h.sessionService.HasAllRequiredAngles(session),
	})
}

// AddPhoto registers a capture. Accepts either a multipart upload (field
// "image") or a JSON body with a uri of an already stored file.
func (h *SessionHandler) AddPhoto(c *gin.Context) {
	userID := c.GetString("user_id")

	var uri, angleID string

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		angleID = c.PostForm("angle_id")

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

		key := h.storageService.BuildObjectKey("captures/"+userID, file.Filename)
		absPath, _, _, err := h.storageService.SaveStream(c.Request.Context(), key, src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
			return
		}
		uri = absPath
	} else {
		var req struct {
			URI     string `json:"uri" binding:"required"`
			AngleID string `json:"angle_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		uri, angleID = req.URI, req.AngleID
	}

	photo, err := h.sessionService.AddPhoto(c.Request.Context(), userID, uri, angleID)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "No active session"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"photo": photo})
}

// UpdatePhoto merges a partial update into one photo
func (h *SessionHandler) UpdatePhoto(c *gin.Context) {
	userID := c.GetString("user_id")
	photoID := c.Param("photoId")

	var upd services.PhotoUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.sessionService.UpdatePhoto(c.Request.Context(), userID, photoID, upd)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "No active session"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update photo"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Photo updated"})
}

// ApplyBackgrounds records composited results for a batch of photos
func (h *SessionHandler) ApplyBackgrounds(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		Updates []services.BackgroundUpdate `json:"updates" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.sessionService.UpdateAllBackgrounds(c.Request.Context(), userID, req.Updates)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "No active session"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply backgrounds"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": ok})
}

// CompleteSession finishes the active session
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	userID := c.GetString("user_id")

	ok, err := h.sessionService.CompleteSession(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "No active session"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"completed": ok})
}

// GetPhotosForAngle lists the active session's photos for one angle
func (h *SessionHandler) GetPhotosForAngle(c *gin.Context) {
	userID := c.GetString("user_id")
	angleID := c.Param("angleId")

	photos, err := h.sessionService.GetPhotosForAngle(c.Request.Context(), userID, angleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load photos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"photos": photos})
}

// ListCompletedSessions returns the user's session archive
func (h *SessionHandler) ListCompletedSessions(c *gin.Context) {
	userID := c.GetString("user_id")
	sessions, err := h.sessionService.CompletedSessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
