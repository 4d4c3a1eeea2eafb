package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/carshot/backend/internal/config"
	"github.com/google/uuid"
)

// StorageService stores assets on the local filesystem under the
// configured assets root. It backs the gallery and backgrounds when no
// object storage is configured, and always holds raw captures and
// processed intermediates.
type StorageService struct {
	cfg *config.Config
}

func NewStorageService(cfg *config.Config) *StorageService {
	// ensure local path exists
	_ = os.MkdirAll(cfg.LocalAssetsPath, 0o755)
	return &StorageService{cfg: cfg}
}

// BuildObjectKey creates a namespaced storage key
func (s *StorageService) BuildObjectKey(kind string, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%s/%s%s", kind, uuid.New().String(), ext)
}

// AbsPath resolves a storage key to its location on disk.
func (s *StorageService) AbsPath(key string) string {
	return filepath.Join(s.cfg.LocalAssetsPath, filepath.FromSlash(key))
}

// Exists reports whether the key has a stored file.
func (s *StorageService) Exists(key string) bool {
	_, err := os.Stat(s.AbsPath(key))
	return err == nil
}

// Remove deletes a stored file; missing files are not an error.
func (s *StorageService) Remove(key string) error {
	err := os.Remove(s.AbsPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SaveStream saves an incoming stream to local storage and returns absolute path, size and checksum
func (s *StorageService) SaveStream(ctx context.Context, key string, r io.Reader) (string, int64, string, error) {
	absPath := s.AbsPath(key)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", 0, "", err
	}

	tmp := absPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", 0, "", err
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, hasher), r)
	if err != nil {
		_ = os.Remove(tmp)
		return "", 0, "", err
	}

	if err := f.Sync(); err != nil {
		_ = os.Remove(tmp)
		return "", 0, "", err
	}

	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return "", 0, "", err
	}

	checksum := hex.EncodeToString(hasher.Sum(nil))
	return absPath, n, checksum, nil
}

// ServeFileWithRange serves a local file with HTTP range support
func (s *StorageService) ServeFileWithRange(w http.ResponseWriter, req *http.Request, absPath, downloadName string) error {
	if downloadName != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", downloadName))
	}
	http.ServeFile(w, req, absPath)
	return nil
}
