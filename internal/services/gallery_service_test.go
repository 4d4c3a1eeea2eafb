package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/carshot/backend/internal/config"
	"github.com/carshot/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGalleryFixture(t *testing.T) (*GalleryService, *memKV) {
	t.Helper()
	cfg := &config.Config{LocalAssetsPath: t.TempDir()}
	kv := newMemKV()
	svc := NewGalleryService(nil, kv, nil, NewStorageService(cfg), cfg)
	return svc, kv
}

func writeTempImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("image-bytes-"+name), 0o644))
	return path
}

func TestAddImageLocalMode(t *testing.T) {
	svc, _ := newGalleryFixture(t)
	ctx := context.Background()
	src := writeTempImage(t, "front.jpg")

	meta := models.GalleryMetadata{CarMake: "Volvo", CarModel: "XC60", AngleID: "front", SessionID: "s1"}
	img, err := svc.AddImage(ctx, "u1", src, meta, "  Volvo XC60  ")
	require.NoError(t, err)
	require.NotNil(t, img)

	assert.Equal(t, "Volvo XC60", img.Category)
	assert.Equal(t, meta, img.Metadata)
	assert.NotEqual(t, src, img.URI)
	assert.True(t, strings.HasPrefix(img.StoragePath, "gallery/u1/"))

	// The stored copy has the source's contents.
	data, err := os.ReadFile(img.URI)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes-front.jpg", string(data))

	images, err := svc.Images(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, img.ID, images[0].ID)
}

func TestAddImageDefaultsCategory(t *testing.T) {
	svc, _ := newGalleryFixture(t)
	src := writeTempImage(t, "x.jpg")

	img, err := svc.AddImage(context.Background(), "u1", src, models.GalleryMetadata{}, "   ")
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, img.Category)
}

func TestAddImageMissingSource(t *testing.T) {
	svc, _ := newGalleryFixture(t)

	img, err := svc.AddImage(context.Background(), "u1", "/nonexistent/path.jpg", models.GalleryMetadata{}, "")
	assert.Error(t, err)
	assert.Nil(t, img)
}

func TestDeleteImage(t *testing.T) {
	svc, _ := newGalleryFixture(t)
	ctx := context.Background()
	src := writeTempImage(t, "a.jpg")

	img, err := svc.AddImage(ctx, "u1", src, models.GalleryMetadata{}, "Cars")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteImage(ctx, "u1", img.ID))

	_, statErr := os.Stat(img.URI)
	assert.True(t, os.IsNotExist(statErr))

	images, err := svc.Images(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, images)

	assert.ErrorIs(t, svc.DeleteImage(ctx, "u1", "missing"), ErrImageNotFound)
}

func TestRefreshGalleryDropsMissingFiles(t *testing.T) {
	svc, _ := newGalleryFixture(t)
	ctx := context.Background()

	keep, err := svc.AddImage(ctx, "u1", writeTempImage(t, "keep.jpg"), models.GalleryMetadata{}, "Cars")
	require.NoError(t, err)
	gone, err := svc.AddImage(ctx, "u1", writeTempImage(t, "gone.jpg"), models.GalleryMetadata{}, "Cars")
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone.URI))

	images, err := svc.RefreshGallery(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, keep.ID, images[0].ID)
}

func TestDownloadURLLocalMode(t *testing.T) {
	svc, _ := newGalleryFixture(t)
	ctx := context.Background()

	img, err := svc.AddImage(ctx, "u1", writeTempImage(t, "dl.jpg"), models.GalleryMetadata{}, "Cars")
	require.NoError(t, err)

	loc, signed, err := svc.DownloadURL(ctx, "u1", img.ID, time.Minute)
	require.NoError(t, err)
	assert.False(t, signed)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes-dl.jpg", string(data))

	_, _, err = svc.DownloadURL(ctx, "u1", "missing", time.Minute)
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestDiscardStoredRemovesLocalFile(t *testing.T) {
	svc, _ := newGalleryFixture(t)
	ctx := context.Background()

	_, key, err := svc.store(ctx, "gallery/u1/orphan.jpg", ".jpg", strings.NewReader("data"))
	require.NoError(t, err)
	require.True(t, svc.storage.Exists(key))

	svc.discardStored(ctx, key)
	assert.False(t, svc.storage.Exists(key))
}

func TestGalleryFilters(t *testing.T) {
	svc, _ := newGalleryFixture(t)
	ctx := context.Background()

	_, err := svc.AddImage(ctx, "u1", writeTempImage(t, "a.jpg"),
		models.GalleryMetadata{CarMake: "Volvo", CarModel: "XC60", SessionID: "s1"}, "Volvo XC60")
	require.NoError(t, err)
	_, err = svc.AddImage(ctx, "u1", writeTempImage(t, "b.jpg"),
		models.GalleryMetadata{CarMake: "Saab", CarModel: "900", SessionID: "s2"}, "Saab 900")
	require.NoError(t, err)

	bySession, err := svc.ImagesBySession(ctx, "u1", "s2")
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, "Saab", bySession[0].Metadata.CarMake)

	byModel, err := svc.ImagesByCarModel(ctx, "u1", "volvo", "xc60")
	require.NoError(t, err)
	assert.Len(t, byModel, 1)

	byCategory, err := svc.ImagesByCategory(ctx, "u1", " Saab 900 ")
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	forFolder, err := svc.ImagesForFolder(ctx, "u1", "folder_volvo_xc60")
	require.NoError(t, err)
	assert.Len(t, forFolder, 1)
}

func TestGenerateFolders(t *testing.T) {
	images := []models.GalleryImage{
		{ID: "1", URI: "one.jpg", Category: "Volvo XC60", CreatedAt: 100},
		{ID: "2", URI: "two.jpg", Category: "Volvo XC60", CreatedAt: 300},
		{ID: "3", URI: "three.jpg", Category: "", CreatedAt: 200},
	}

	folders := GenerateFolders(images)
	require.Len(t, folders, 2)

	// Sorted by most recent activity.
	assert.Equal(t, "folder_volvo_xc60", folders[0].ID)
	assert.Equal(t, "Volvo XC60", folders[0].Name)
	assert.Equal(t, 2, folders[0].ImageCount)
	assert.Equal(t, "two.jpg", folders[0].CoverImage)
	assert.Equal(t, int64(100), folders[0].CreatedAt)
	assert.Equal(t, int64(300), folders[0].UpdatedAt)

	assert.Equal(t, "folder_uncategorized", folders[1].ID)
	assert.Equal(t, DefaultCategory, folders[1].Name)
	assert.Equal(t, 1, folders[1].ImageCount)
}

func TestGenerateFoldersDeterministic(t *testing.T) {
	images := []models.GalleryImage{
		{ID: "1", Category: "A", CreatedAt: 1},
		{ID: "2", Category: "B", CreatedAt: 1},
		{ID: "3", Category: "C", CreatedAt: 1},
	}
	first := GenerateFolders(images)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, GenerateFolders(images))
	}
}

func TestFolderID(t *testing.T) {
	assert.Equal(t, "folder_volvo_xc60", FolderID("Volvo XC60"))
	assert.Equal(t, "folder_one_two_three", FolderID("  One   Two\tThree "))
	assert.False(t, strings.ContainsAny(FolderID("Some Name"), " \t"))
}
