package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/carshot/backend/internal/config"
	"github.com/carshot/backend/internal/models"
	"github.com/google/uuid"
)

var ErrBackgroundNotFound = errors.New("background not found")

func customBackgroundsKey(userID string) string { return "custom_backgrounds:" + userID }
func selectedBackgroundKey(userID string) string {
	return "selected_background:" + userID
}

// BackgroundService serves the backdrop catalog: a built-in set plus
// per-user customs whose assets go through the gallery storage path.
type BackgroundService struct {
	kv       KVStore
	s3       *S3Service
	storage  *StorageService
	cfg      *config.Config
	defaults []models.Background
}

func NewBackgroundService(kv KVStore, s3 *S3Service, storage *StorageService, cfg *config.Config) *BackgroundService {
	defaults := []models.Background{
		{ID: "studio-white", Name: "Studio White", URI: "/assets/backgrounds/studio_white.jpg"},
		{ID: "studio-dark", Name: "Studio Dark", URI: "/assets/backgrounds/studio_dark.jpg"},
		{ID: "showroom", Name: "Showroom", URI: "/assets/backgrounds/showroom.jpg"},
		{ID: "city-street", Name: "City Street", URI: "/assets/backgrounds/city_street.jpg"},
		{ID: "coastal-road", Name: "Coastal Road", URI: "/assets/backgrounds/coastal_road.jpg"},
	}
	return &BackgroundService{kv: kv, s3: s3, storage: storage, cfg: cfg, defaults: defaults}
}

// Backgrounds returns the built-ins followed by the user's customs.
func (s *BackgroundService) Backgrounds(ctx context.Context, userID string) ([]models.Background, error) {
	customs, err := s.customs(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Background, 0, len(s.defaults)+len(customs))
	out = append(out, s.defaults...)
	out = append(out, customs...)
	return out, nil
}

// AddCustomBackground stores an uploaded backdrop and registers it for
// the user.
func (s *BackgroundService) AddCustomBackground(ctx context.Context, userID, name, filename string, r io.Reader) (*models.Background, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("background name is required")
	}

	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("backgrounds/%s/%s%s", userID, id, ext)

	var uri, storagePath string
	if s.s3 != nil {
		ctype := mime.TypeByExtension(ext)
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		if err := s.s3.Upload(ctx, key, r, ctype); err != nil {
			return nil, fmt.Errorf("failed to upload background: %w", err)
		}
		uri, storagePath = s.s3.ObjectURL(key), key
	} else {
		absPath, _, _, err := s.storage.SaveStream(ctx, key, r)
		if err != nil {
			return nil, fmt.Errorf("failed to store background: %w", err)
		}
		uri = absPath
	}

	bg := models.Background{ID: id, Name: name, URI: uri, Custom: true, StoragePath: storagePath}

	customs, err := s.customs(ctx, userID)
	if err != nil {
		return nil, err
	}
	customs = append(customs, bg)
	raw, err := json.Marshal(customs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backgrounds: %w", err)
	}
	if err := s.kv.Set(ctx, customBackgroundsKey(userID), raw); err != nil {
		return nil, err
	}
	return &bg, nil
}

// SelectBackground remembers the user's chosen backdrop.
func (s *BackgroundService) SelectBackground(ctx context.Context, userID, backgroundID string) error {
	if _, err := s.Get(ctx, userID, backgroundID); err != nil {
		return err
	}
	return s.kv.Set(ctx, selectedBackgroundKey(userID), []byte(backgroundID))
}

// SelectedBackground returns the current choice, defaulting to the first
// built-in.
func (s *BackgroundService) SelectedBackground(ctx context.Context, userID string) (models.Background, error) {
	raw, err := s.kv.Get(ctx, selectedBackgroundKey(userID))
	if errors.Is(err, ErrKVNotFound) {
		return s.defaults[0], nil
	}
	if err != nil {
		return models.Background{}, err
	}
	bg, err := s.Get(ctx, userID, string(raw))
	if err != nil {
		log.Printf("WARN: Selected background %s no longer exists for user %s", raw, userID)
		return s.defaults[0], nil
	}
	return bg, nil
}

// Open returns the backdrop's image bytes wherever they live:
// S3-backed customs come out of the bucket, everything else off disk.
func (s *BackgroundService) Open(ctx context.Context, bg models.Background) (io.ReadCloser, error) {
	if s.s3 != nil && bg.StoragePath != "" {
		buf, err := s.s3.Download(ctx, bg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch background: %w", err)
		}
		return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
	}
	return os.Open(bg.URI)
}

// Get looks up one background by ID across built-ins and customs.
func (s *BackgroundService) Get(ctx context.Context, userID, backgroundID string) (models.Background, error) {
	for _, bg := range s.defaults {
		if bg.ID == backgroundID {
			return bg, nil
		}
	}
	customs, err := s.customs(ctx, userID)
	if err != nil {
		return models.Background{}, err
	}
	for _, bg := range customs {
		if bg.ID == backgroundID {
			return bg, nil
		}
	}
	return models.Background{}, ErrBackgroundNotFound
}

func (s *BackgroundService) customs(ctx context.Context, userID string) ([]models.Background, error) {
	raw, err := s.kv.Get(ctx, customBackgroundsKey(userID))
	if errors.Is(err, ErrKVNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var customs []models.Background
	if err := json.Unmarshal(raw, &customs); err != nil {
		return nil, fmt.Errorf("corrupt background list: %w", err)
	}
	return customs, nil
}
