package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/carshot/backend/internal/config"
	"github.com/google/uuid"
)

// BackgroundRemover produces a background-free copy of a captured photo
// and returns the path of the new file. The source file is never touched.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, srcPath string) (string, error)
}

// NewBackgroundRemover selects a provider from config. Anything other
// than "removebg" gets the simulated provider, so development never
// needs an API key.
func NewBackgroundRemover(cfg *config.Config, storage *StorageService) BackgroundRemover {
	if cfg.RemoveBgProvider == "removebg" && cfg.RemoveBgAPIKey != "" {
		return &RemoveBgClient{
			apiURL:  cfg.RemoveBgAPIURL,
			apiKey:  cfg.RemoveBgAPIKey,
			storage: storage,
			httpClient: &http.Client{
				Timeout: 60 * time.Second,
			},
		}
	}
	return &DummyRemover{delay: cfg.RemoveBgSimulatedDelay}
}

// DummyRemover simulates background removal: it waits a fixed delay and
// then copies the source file next to itself. Output contents are
// byte-identical to the input.
type DummyRemover struct {
	delay time.Duration
}

func NewDummyRemover(delay time.Duration) *DummyRemover {
	return &DummyRemover{delay: delay}
}

func (d *DummyRemover) RemoveBackground(ctx context.Context, srcPath string) (string, error) {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source image: %w", err)
	}
	defer src.Close()

	dstPath := filepath.Join(filepath.Dir(srcPath), fmt.Sprintf("dummy_processed_%d.jpg", time.Now().UnixMilli()))
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output image: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("failed to copy image: %w", err)
	}
	return dstPath, nil
}

// RemoveBgClient calls the remove.bg HTTP API: base64 JSON upload,
// binary PNG response.
type RemoveBgClient struct {
	apiURL     string
	apiKey     string
	storage    *StorageService
	httpClient *http.Client
}

type removeBgRequest struct {
	ImageFileB64 string `json:"image_file_b64"`
	Size         string `json:"size"`
	Format       string `json:"format"`
	ShadowType   string `json:"shadow_type"`
	Type         string `json:"type"`
}

func (c *RemoveBgClient) RemoveBackground(ctx context.Context, srcPath string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to read source image: %w", err)
	}

	body, err := json.Marshal(removeBgRequest{
		ImageFileB64: base64.StdEncoding.EncodeToString(data),
		Size:         "auto",
		Format:       "png",
		ShadowType:   "auto",
		Type:         "auto",
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("remove.bg request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("remove.bg returned %d: %s", resp.StatusCode, string(msg))
	}

	key := fmt.Sprintf("processed/%s.png", uuid.New().String())
	absPath, _, _, err := c.storage.SaveStream(ctx, key, resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to store processed image: %w", err)
	}
	return absPath, nil
}
