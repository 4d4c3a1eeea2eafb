package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/carshot/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackgroundFixture(t *testing.T) *BackgroundService {
	t.Helper()
	cfg := &config.Config{LocalAssetsPath: t.TempDir()}
	return NewBackgroundService(newMemKV(), nil, NewStorageService(cfg), cfg)
}

func TestBackgroundsDefaults(t *testing.T) {
	svc := newBackgroundFixture(t)
	ctx := context.Background()

	backgrounds, err := svc.Backgrounds(ctx, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, backgrounds)
	for _, bg := range backgrounds {
		assert.False(t, bg.Custom)
	}

	selected, err := svc.SelectedBackground(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, backgrounds[0].ID, selected.ID)
}

func TestAddCustomBackground(t *testing.T) {
	svc := newBackgroundFixture(t)
	ctx := context.Background()

	bg, err := svc.AddCustomBackground(ctx, "u1", "My Lot", "lot.jpg", bytes.NewReader([]byte("img")))
	require.NoError(t, err)
	assert.True(t, bg.Custom)
	assert.Equal(t, "My Lot", bg.Name)

	_, err = svc.AddCustomBackground(ctx, "u1", "   ", "x.jpg", bytes.NewReader(nil))
	assert.Error(t, err)

	backgrounds, err := svc.Backgrounds(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, bg.ID, backgrounds[len(backgrounds)-1].ID)

	// Customs are per user.
	others, err := svc.Backgrounds(ctx, "u2")
	require.NoError(t, err)
	for _, other := range others {
		assert.NotEqual(t, bg.ID, other.ID)
	}
}

func TestSelectBackground(t *testing.T) {
	svc := newBackgroundFixture(t)
	ctx := context.Background()

	bg, err := svc.AddCustomBackground(ctx, "u1", "My Lot", "lot.jpg", bytes.NewReader([]byte("img")))
	require.NoError(t, err)

	require.NoError(t, svc.SelectBackground(ctx, "u1", bg.ID))
	selected, err := svc.SelectedBackground(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, bg.ID, selected.ID)

	assert.ErrorIs(t, svc.SelectBackground(ctx, "u1", "nope"), ErrBackgroundNotFound)
}
