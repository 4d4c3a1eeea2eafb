package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/carshot/backend/internal/config"
	"github.com/carshot/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultCategory groups images saved without an explicit category.
const DefaultCategory = "Uncategorized"

var ErrImageNotFound = errors.New("gallery image not found")

func galleryKey(ownerID string) string { return "gallery_images:" + ownerID }

// GalleryService maintains each user's saved image index. Records live
// in Postgres when a database is attached; the full list is always
// cached as a JSON blob in the key-value store so reads stay fast and
// the service also works in local-only mode (nil db, nil s3).
type GalleryService struct {
	db      *gorm.DB
	kv      KVStore
	s3      *S3Service
	storage *StorageService
	cfg     *config.Config
}

func NewGalleryService(db *gorm.DB, kv KVStore, s3 *S3Service, storage *StorageService, cfg *config.Config) *GalleryService {
	return &GalleryService{db: db, kv: kv, s3: s3, storage: storage, cfg: cfg}
}

// Images returns the user's gallery, newest first.
func (s *GalleryService) Images(ctx context.Context, ownerID string) ([]models.GalleryImage, error) {
	images, err := s.readCache(ctx, ownerID)
	if err == nil {
		return images, nil
	}
	if !errors.Is(err, ErrKVNotFound) {
		log.Printf("WARN: Gallery cache read failed for user %s: %v", ownerID, err)
	}

	images, err = s.readDB(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, ownerID, images)
	return images, nil
}

// AddImage copies the source file into managed storage and indexes it.
// The category is trimmed and defaulted; metadata is stored as given.
func (s *GalleryService) AddImage(ctx context.Context, ownerID, sourceURI string, meta models.GalleryMetadata, category string) (*models.GalleryImage, error) {
	f, err := os.Open(sourceURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open source image: %w", err)
	}
	defer f.Close()

	return s.addFromReader(ctx, ownerID, filepath.Base(sourceURI), f, meta, category)
}

// AddImageData indexes an uploaded image stream.
func (s *GalleryService) AddImageData(ctx context.Context, ownerID, filename string, r io.Reader, meta models.GalleryMetadata, category string) (*models.GalleryImage, error) {
	return s.addFromReader(ctx, ownerID, filename, r, meta, category)
}

func (s *GalleryService) addFromReader(ctx context.Context, ownerID, filename string, r io.Reader, meta models.GalleryMetadata, category string) (*models.GalleryImage, error) {
	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("gallery/%s/%s%s", ownerID, id, ext)

	uri, storagePath, err := s.store(ctx, key, ext, r)
	if err != nil {
		return nil, err
	}

	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCategory
	}

	image := models.GalleryImage{
		ID:          id,
		OwnerID:     ownerID,
		URI:         uri,
		StoragePath: storagePath,
		Category:    category,
		Metadata:    meta,
		CreatedAt:   time.Now().UnixMilli(),
	}

	if s.db != nil {
		if err := s.db.WithContext(ctx).Create(&image).Error; err != nil {
			s.discardStored(ctx, key)
			return nil, fmt.Errorf("failed to index image: %w", err)
		}
	}

	images, _ := s.readCache(ctx, ownerID)
	images = append([]models.GalleryImage{image}, images...)
	s.writeCache(ctx, ownerID, images)

	return &image, nil
}

// store writes the image either to the gallery bucket (when object
// storage is configured) or the local assets directory.
func (s *GalleryService) store(ctx context.Context, key, ext string, r io.Reader) (uri, storagePath string, err error) {
	if s.s3 != nil {
		ctype := mime.TypeByExtension(ext)
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		if err := s.s3.Upload(ctx, key, r, ctype); err != nil {
			return "", "", fmt.Errorf("failed to upload image: %w", err)
		}
		return s.s3.ObjectURL(key), key, nil
	}

	absPath, _, _, err := s.storage.SaveStream(ctx, key, r)
	if err != nil {
		return "", "", fmt.Errorf("failed to store image: %w", err)
	}
	return absPath, key, nil
}

// discardStored best-effort removes an object whose index entry never
// materialized, so a failed insert does not leak the upload.
func (s *GalleryService) discardStored(ctx context.Context, key string) {
	if s.s3 != nil {
		if err := s.s3.Delete(ctx, key); err != nil {
			log.Printf("WARN: Could not discard orphaned object %s: %v", key, err)
		}
		return
	}
	if err := s.storage.Remove(key); err != nil {
		log.Printf("WARN: Could not discard orphaned file %s: %v", key, err)
	}
}

// DeleteImage removes the index entry and best-effort deletes the stored
// object. A missing object never blocks the index removal.
func (s *GalleryService) DeleteImage(ctx context.Context, ownerID, id string) error {
	images, err := s.Images(ctx, ownerID)
	if err != nil {
		return err
	}

	idx := -1
	for i := range images {
		if images[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrImageNotFound
	}

	if path := images[idx].StoragePath; path != "" {
		if s.s3 != nil {
			if err := s.s3.Delete(ctx, path); err != nil {
				log.Printf("WARN: Could not delete gallery object %s: %v", path, err)
			}
		} else if err := s.storage.Remove(path); err != nil {
			log.Printf("WARN: Could not delete gallery file %s: %v", path, err)
		}
	}

	if s.db != nil {
		if err := s.db.WithContext(ctx).Delete(&models.GalleryImage{}, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
			return fmt.Errorf("failed to delete image record: %w", err)
		}
	}

	images = append(images[:idx], images[idx+1:]...)
	s.writeCache(ctx, ownerID, images)
	return nil
}

// Image returns a single gallery entry.
func (s *GalleryService) Image(ctx context.Context, ownerID, id string) (*models.GalleryImage, error) {
	images, err := s.Images(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range images {
		if images[i].ID == id {
			return &images[i], nil
		}
	}
	return nil, ErrImageNotFound
}

// DownloadURL resolves where an image can be fetched from. S3-backed
// objects get a presigned link; for local files the absolute path is
// returned with signed=false so the caller streams the file itself.
func (s *GalleryService) DownloadURL(ctx context.Context, ownerID, id string, ttl time.Duration) (loc string, signed bool, err error) {
	img, err := s.Image(ctx, ownerID, id)
	if err != nil {
		return "", false, err
	}
	if s.s3 != nil && img.StoragePath != "" {
		u, err := s.s3.PresignGet(ctx, img.StoragePath, ttl)
		if err != nil {
			return "", false, fmt.Errorf("failed to presign image: %w", err)
		}
		return u, true, nil
	}
	return s.storage.AbsPath(img.StoragePath), false, nil
}

// RefreshGallery reconciles the cache with the database and storage:
// entries whose backing file or object disappeared are dropped,
// remote-only records are merged back in.
func (s *GalleryService) RefreshGallery(ctx context.Context, ownerID string) ([]models.GalleryImage, error) {
	cached, err := s.readCache(ctx, ownerID)
	if err != nil && !errors.Is(err, ErrKVNotFound) {
		log.Printf("WARN: Gallery cache read failed for user %s: %v", ownerID, err)
	}

	var remoteKeys map[string]bool
	if s.s3 != nil {
		keys, err := s.s3.ListKeys(ctx, fmt.Sprintf("gallery/%s/", ownerID), 1000)
		if err != nil {
			log.Printf("WARN: Could not list gallery objects for user %s: %v", ownerID, err)
		} else {
			remoteKeys = make(map[string]bool, len(keys))
			for _, k := range keys {
				remoteKeys[k] = true
			}
		}
	}

	seen := make(map[string]bool, len(cached))
	var images []models.GalleryImage
	for _, img := range cached {
		if img.StoragePath != "" {
			if s.s3 == nil && !s.storage.Exists(img.StoragePath) {
				continue
			}
			if remoteKeys != nil && !remoteKeys[img.StoragePath] {
				continue
			}
		}
		images = append(images, img)
		seen[img.ID] = true
	}

	if s.db != nil {
		remote, err := s.readDB(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		for _, img := range remote {
			if !seen[img.ID] {
				images = append(images, img)
			}
		}
	}

	sort.SliceStable(images, func(i, j int) bool { return images[i].CreatedAt > images[j].CreatedAt })
	s.writeCache(ctx, ownerID, images)
	return images, nil
}

// Folders derives the category folder view from the current gallery.
func (s *GalleryService) Folders(ctx context.Context, ownerID string) ([]models.GalleryFolder, error) {
	images, err := s.Images(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return GenerateFolders(images), nil
}

// ImagesForFolder returns the images belonging to a derived folder.
func (s *GalleryService) ImagesForFolder(ctx context.Context, ownerID, folderID string) ([]models.GalleryImage, error) {
	images, err := s.Images(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var out []models.GalleryImage
	for _, img := range images {
		if FolderID(normalizeCategory(img.Category)) == folderID {
			out = append(out, img)
		}
	}
	return out, nil
}

// ImagesByCategory filters by exact (trimmed) category name.
func (s *GalleryService) ImagesByCategory(ctx context.Context, ownerID, category string) ([]models.GalleryImage, error) {
	images, err := s.Images(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	category = normalizeCategory(category)
	var out []models.GalleryImage
	for _, img := range images {
		if normalizeCategory(img.Category) == category {
			out = append(out, img)
		}
	}
	return out, nil
}

// ImagesBySession returns the images saved from one photo session.
func (s *GalleryService) ImagesBySession(ctx context.Context, ownerID, sessionID string) ([]models.GalleryImage, error) {
	images, err := s.Images(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var out []models.GalleryImage
	for _, img := range images {
		if img.Metadata.SessionID == sessionID {
			out = append(out, img)
		}
	}
	return out, nil
}

// ImagesByCarModel filters by make and model, case-insensitive.
func (s *GalleryService) ImagesByCarModel(ctx context.Context, ownerID, carMake, carModel string) ([]models.GalleryImage, error) {
	images, err := s.Images(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var out []models.GalleryImage
	for _, img := range images {
		if strings.EqualFold(img.Metadata.CarMake, carMake) && strings.EqualFold(img.Metadata.CarModel, carModel) {
			out = append(out, img)
		}
	}
	return out, nil
}

// GenerateFolders groups images by category into the derived folder
// view: cover is the newest image, timestamps span the members, and
// folders are ordered by most recent activity.
func GenerateFolders(images []models.GalleryImage) []models.GalleryFolder {
	byName := make(map[string]*models.GalleryFolder)
	var order []string

	for _, img := range images {
		name := normalizeCategory(img.Category)
		f, ok := byName[name]
		if !ok {
			f = &models.GalleryFolder{
				ID:        FolderID(name),
				Name:      name,
				CreatedAt: img.CreatedAt,
				UpdatedAt: img.CreatedAt,
			}
			byName[name] = f
			order = append(order, name)
		}
		f.ImageCount++
		if img.CreatedAt >= f.UpdatedAt {
			f.UpdatedAt = img.CreatedAt
			f.CoverImage = img.URI
		}
		if img.CreatedAt < f.CreatedAt {
			f.CreatedAt = img.CreatedAt
		}
	}

	folders := make([]models.GalleryFolder, 0, len(order))
	for _, name := range order {
		folders = append(folders, *byName[name])
	}
	sort.SliceStable(folders, func(i, j int) bool { return folders[i].UpdatedAt > folders[j].UpdatedAt })
	return folders
}

// FolderID derives the stable folder identifier from a category name.
func FolderID(name string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(name)), "_")
	return "folder_" + slug
}

func normalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return DefaultCategory
	}
	return category
}

func (s *GalleryService) readCache(ctx context.Context, ownerID string) ([]models.GalleryImage, error) {
	raw, err := s.kv.Get(ctx, galleryKey(ownerID))
	if err != nil {
		return nil, err
	}
	var images []models.GalleryImage
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, fmt.Errorf("corrupt gallery cache: %w", err)
	}
	return images, nil
}

func (s *GalleryService) writeCache(ctx context.Context, ownerID string, images []models.GalleryImage) {
	raw, err := json.Marshal(images)
	if err != nil {
		log.Printf("WARN: Could not encode gallery cache for user %s: %v", ownerID, err)
		return
	}
	if err := s.kv.Set(ctx, galleryKey(ownerID), raw); err != nil {
		log.Printf("WARN: Could not write gallery cache for user %s: %v", ownerID, err)
	}
}

func (s *GalleryService) readDB(ctx context.Context, ownerID string) ([]models.GalleryImage, error) {
	if s.db == nil {
		return nil, nil
	}
	var images []models.GalleryImage
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to load gallery: %w", err)
	}
	return images, nil
}
