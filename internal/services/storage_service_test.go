package services

import (
	"context"
	"strings"
	"testing"

	"github.com/carshot/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildObjectKey(t *testing.T) {
	svc := NewStorageService(&config.Config{LocalAssetsPath: t.TempDir()})

	key := svc.BuildObjectKey("captures/u1", "Photo.JPG")
	assert.True(t, strings.HasPrefix(key, "captures/u1/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
}

func TestSaveStreamExistsRemove(t *testing.T) {
	svc := NewStorageService(&config.Config{LocalAssetsPath: t.TempDir()})
	key := "captures/u1/a.jpg"

	absPath, size, checksum, err := svc.SaveStream(context.Background(), key, strings.NewReader("capture-bytes"))
	require.NoError(t, err)
	assert.Equal(t, svc.AbsPath(key), absPath)
	assert.Equal(t, int64(len("capture-bytes")), size)
	assert.NotEmpty(t, checksum)
	assert.True(t, svc.Exists(key))

	require.NoError(t, svc.Remove(key))
	assert.False(t, svc.Exists(key))
	// Removing a missing key is not an error.
	require.NoError(t, svc.Remove(key))
}
