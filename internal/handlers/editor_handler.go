package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/carshot/backend/internal/config"
	"github.com/carshot/backend/internal/pkg/transform"
	"github.com/carshot/backend/internal/services"
	"github.com/gin-gonic/gin"
)

type EditorHandler struct {
	backgroundService *services.BackgroundService
	cfg               *config.Config
}

func NewEditorHandler(backgroundService *services.BackgroundService, cfg *config.Config) *EditorHandler {
	return &EditorHandler{
		backgroundService: backgroundService,
		cfg:               cfg,
	}
}

func (h *EditorHandler) editorConfig() transform.Config {
	return transform.Config{
		PanDamping:     h.cfg.EditorPanDamping,
		PinchSmoothing: h.cfg.EditorPinchSmoothing,
		MinScale:       h.cfg.EditorMinScale,
		MaxScale:       h.cfg.EditorMaxScale,
		CanvasWidth:    float64(h.cfg.CaptureWidth),
		CanvasHeight:   float64(h.cfg.CaptureHeight),
		MarginRatio:    h.cfg.EditorMarginRatio,
	}
}

// GetConfig exposes the gesture tuning so clients stay in sync with the
// server-side compositor.
func (h *EditorHandler) GetConfig(c *gin.Context) {
	cfg := h.editorConfig()
	c.JSON(http.StatusOK, gin.H{
		"pan_damping":     cfg.PanDamping,
		"pinch_smoothing": cfg.PinchSmoothing,
		"min_scale":       cfg.MinScale,
		"max_scale":       cfg.MaxScale,
		"margin_ratio":    cfg.MarginRatio,
		"canvas_width":    h.cfg.CaptureWidth,
		"canvas_height":   h.cfg.CaptureHeight,
	})
}

// SimulateGesture replays recorded touch frames through the gesture
// engine and returns the resulting transform.
func (h *EditorHandler) SimulateGesture(c *gin.Context) {
	var req struct {
		Initial *transform.State    `json:"initial"`
		Frames  [][]transform.Touch `json:"frames" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	editor := transform.NewEditor(h.editorConfig())
	if req.Initial != nil {
		editor.SetState(*req.Initial)
	}

	for i, frame := range req.Frames {
		if i == 0 {
			editor.Begin(frame)
			continue
		}
		editor.Move(frame)
	}
	editor.End()

	c.JSON(http.StatusOK, gin.H{"state": editor.State()})
}

// Composite flattens a foreground over a backdrop with the given
// transform and streams back the PNG. The foreground is a multipart
// upload; the background is either a second upload or a catalog ID.
func (h *EditorHandler) Composite(c *gin.Context) {
	userID := c.GetString("user_id")

	fgFile, err := c.FormFile("foreground")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Foreground image required"})
		return
	}
	if fgFile.Size > h.cfg.UploadMaxImageSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image too large"})
		return
	}

	foreground, err := decodeUpload(c, "foreground")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not decode foreground image"})
		return
	}

	var background image.Image
	if _, err := c.FormFile("background"); err == nil {
		background, err = decodeUpload(c, "background")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not decode background image"})
			return
		}
	} else if bgID := c.PostForm("background_id"); bgID != "" {
		bg, err := h.backgroundService.Get(c.Request.Context(), userID, bgID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Background not found"})
			return
		}
		src, err := h.backgroundService.Open(c.Request.Context(), bg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load background"})
			return
		}
		background, _, err = image.Decode(src)
		src.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not decode background"})
			return
		}
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Background image or background_id required"})
		return
	}

	state := transform.Identity()
	if raw := c.PostForm("state"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transform state"})
			return
		}
	}

	var buf bytes.Buffer
	if err := transform.CapturePNG(&buf, background, foreground, state, transform.CaptureOptions{
		Width:  h.cfg.CaptureWidth,
		Height: h.cfg.CaptureHeight,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render composite"})
		return
	}

	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func decodeUpload(c *gin.Context, field string) (image.Image, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	img, _, err := image.Decode(src)
	return img, err
}
