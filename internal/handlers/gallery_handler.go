package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/carshot/backend/internal/config"
	"github.com/carshot/backend/internal/models"
	"github.com/carshot/backend/internal/services"
	"github.com/carshot/backend/pkg/validation"
	"github.com/gin-gonic/gin"
)

type GalleryHandler struct {
	galleryService *services.GalleryService
	storageService *services.StorageService
	cfg            *config.Config
}

func NewGalleryHandler(galleryService *services.GalleryService, storageService *services.StorageService, cfg *config.Config) *GalleryHandler {
	return &GalleryHandler{
		galleryService: galleryService,
		storageService: storageService,
		cfg:            cfg,
	}
}

// ListImages returns the user's gallery, with optional filters
func (h *GalleryHandler) ListImages(c *gin.Context) {
	userID := c.GetString("user_id")
	ctx := c.Request.Context()

	var (
		images []models.GalleryImage
		err    error
	)
	switch {
	case c.Query("session_id") != "":
		images, err = h.galleryService.ImagesBySession(ctx, userID, c.Query("session_id"))
	case c.Query("car_make") != "" && c.Query("car_model") != "":
		images, err = h.galleryService.ImagesByCarModel(ctx, userID, c.Query("car_make"), c.Query("car_model"))
	case c.Query("category") != "":
		images, err = h.galleryService.ImagesByCategory(ctx, userID, c.Query("category"))
	default:
		images, err = h.galleryService.Images(ctx, userID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load gallery"})
		return
	}
	if images == nil {
		images = []models.GalleryImage{}
	}

	c.JSON(http.StatusOK, gin.H{"images": images})
}

// ListFolders returns the derived category folders
func (h *GalleryHandler) ListFolders(c *gin.Context) {
	userID := c.GetString("user_id")
	folders, err := h.galleryService.Folders(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load folders"})
		return
	}
	if folders == nil {
		folders = []models.GalleryFolder{}
	}

	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

// ListFolderImages returns the images inside one folder
func (h *GalleryHandler) ListFolderImages(c *gin.Context) {
	userID := c.GetString("user_id")
	images, err := h.galleryService.ImagesForFolder(c.Request.Context(), userID, c.Param("folderId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load folder"})
		return
	}
	if images == nil {
		images = []models.GalleryImage{}
	}

	c.JSON(http.StatusOK, gin.H{"images": images})
}

// UploadImage stores an uploaded image into the gallery
func (h *GalleryHandler) UploadImage(c *gin.Context) {
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

	meta := models.GalleryMetadata{
		CarMake:   validation.SanitizeString(c.PostForm("car_make")),
		CarModel:  validation.SanitizeString(c.PostForm("car_model")),
		AngleID:   c.PostForm("angle_id"),
		SessionID: c.PostForm("session_id"),
	}
	category := validation.SanitizeString(c.PostForm("category"))

	image, err := h.galleryService.AddImageData(c.Request.Context(), userID, file.Filename, src, meta, category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save image"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image": image})
}

// DeleteImage removes an image from the gallery
func (h *GalleryHandler) DeleteImage(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.galleryService.DeleteImage(c.Request.Context(), userID, c.Param("imageId")); err != nil {
		if errors.Is(err, services.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Image deleted"})
}

// DownloadImage streams an image back to the client. S3-backed objects
// redirect to a short-lived presigned URL; local files are served with
// range support.
func (h *GalleryHandler) DownloadImage(c *gin.Context) {
	userID := c.GetString("user_id")

	loc, signed, err := h.galleryService.DownloadURL(c.Request.Context(), userID, c.Param("imageId"), 15*time.Minute)
	if err != nil {
		if errors.Is(err, services.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve image"})
		return
	}

	if signed {
		c.Redirect(http.StatusTemporaryRedirect, loc)
		return
	}
	if err := h.storageService.ServeFileWithRange(c.Writer, c.Request, loc, filepath.Base(loc)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to serve image"})
	}
}

// RefreshGallery reconciles the cached index with storage
func (h *GalleryHandler) RefreshGallery(c *gin.Context) {
	userID := c.GetString("user_id")
	images, err := h.galleryService.RefreshGallery(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh gallery"})
		return
	}
	if images == nil {
		images = []models.GalleryImage{}
	}

	c.JSON(http.StatusOK, gin.H{"images": images})
}
