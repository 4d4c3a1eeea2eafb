package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/carshot/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDebiter struct {
	used   int
	deny   bool
	failed bool
}

func (f *fakeDebiter) UseCredit(ctx context.Context, userID string) (bool, SyncState, error) {
	if f.failed {
		return false, SyncLocalOnly, errors.New("credit store down")
	}
	if f.deny {
		return false, SyncSynced, nil
	}
	f.used++
	return true, SyncSynced, nil
}

type fakeGallery struct {
	saved []models.GalleryImage
	fail  bool
}

func (f *fakeGallery) AddImage(ctx context.Context, ownerID, sourceURI string, meta models.GalleryMetadata, category string) (*models.GalleryImage, error) {
	if f.fail {
		return nil, errors.New("gallery unavailable")
	}
	img := models.GalleryImage{
		ID:       sourceURI,
		OwnerID:  ownerID,
		URI:      sourceURI,
		Category: category,
		Metadata: meta,
	}
	f.saved = append(f.saved, img)
	return &img, nil
}

type fakeRemover struct {
	calls int
}

func (f *fakeRemover) RemoveBackground(ctx context.Context, srcPath string) (string, error) {
	f.calls++
	return srcPath + ".processed", nil
}

func newSessionFixture() (*SessionService, *memKV, *fakeDebiter, *fakeGallery) {
	kv := newMemKV()
	credits := &fakeDebiter{}
	gallery := &fakeGallery{}
	svc := NewSessionService(kv, NewAngleService(), credits, gallery, &fakeRemover{})
	return svc, kv, credits, gallery
}

func TestCreateSessionReplacesActive(t *testing.T) {
	svc, _, _, _ := newSessionFixture()
	ctx := context.Background()

	first, err := svc.CreateSession(ctx, "u1", "d1", "Volvo", "XC60", 2022)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := svc.CreateSession(ctx, "u1", "d1", "Saab", "900", 1994)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := svc.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "Saab", active.CarMake)
	assert.Empty(t, active.Photos)
}

func TestActiveSessionIsPerUser(t *testing.T) {
	svc, _, _, _ := newSessionFixture()
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)

	other, err := svc.ActiveSession(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestAddPhoto(t *testing.T) {
	svc, _, _, _ := newSessionFixture()
	ctx := context.Background()

	_, err := svc.AddPhoto(ctx, "u1", "/tmp/a.jpg", "front")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)

	_, err = svc.AddPhoto(ctx, "u1", "/tmp/a.jpg", "underbody")
	assert.Error(t, err)

	photo, err := svc.AddPhoto(ctx, "u1", "/tmp/a.jpg", "front")
	require.NoError(t, err)
	assert.Equal(t, "front", photo.AngleID)
	assert.False(t, photo.Processed)

	active, err := svc.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active.Photos, 1)
	assert.Equal(t, photo.ID, active.Photos[0].ID)
}

func TestUpdatePhotoPartial(t *testing.T) {
	svc, _, _, _ := newSessionFixture()
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)
	photo, err := svc.AddPhoto(ctx, "u1", "/tmp/a.jpg", "front")
	require.NoError(t, err)

	removed := true
	final := "/tmp/a_final.png"
	ok, err := svc.UpdatePhoto(ctx, "u1", photo.ID, PhotoUpdate{
		BackgroundRemoved: &removed,
		FinalImageURI:     &final,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	active, err := svc.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	got := active.Photos[0]
	assert.True(t, got.BackgroundRemoved)
	assert.Equal(t, final, got.FinalImageURI)
	// Untouched fields keep their values.
	assert.Equal(t, "/tmp/a.jpg", got.URI)
	assert.False(t, got.BackgroundAdded)

	ok, err = svc.UpdatePhoto(ctx, "u1", "missing", PhotoUpdate{BackgroundRemoved: &removed})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateAllBackgroundsSkipsUnknown(t *testing.T) {
	svc, _, _, _ := newSessionFixture()
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)
	p1, err := svc.AddPhoto(ctx, "u1", "/tmp/a.jpg", "front")
	require.NoError(t, err)
	p2, err := svc.AddPhoto(ctx, "u1", "/tmp/b.jpg", "rear")
	require.NoError(t, err)

	ok, err := svc.UpdateAllBackgrounds(ctx, "u1", []BackgroundUpdate{
		{ID: p1.ID, FinalImageURI: "/tmp/a_bg.png", BackgroundAdded: true},
		{ID: "missing", FinalImageURI: "/tmp/x.png", BackgroundAdded: true},
		{ID: p2.ID, FinalImageURI: "/tmp/b_bg.png", BackgroundAdded: true},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	active, err := svc.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a_bg.png", active.Photos[0].FinalImageURI)
	assert.True(t, active.Photos[0].BackgroundAdded)
	assert.Equal(t, "/tmp/b_bg.png", active.Photos[1].FinalImageURI)
}

func TestCompleteSession(t *testing.T) {
	svc, _, credits, gallery := newSessionFixture()
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)

	front, err := svc.AddPhoto(ctx, "u1", "/tmp/front.jpg", "front")
	require.NoError(t, err)
	_, err = svc.AddPhoto(ctx, "u1", "/tmp/dash.jpg", "dashboard")
	require.NoError(t, err)

	final := "/tmp/front_final.png"
	added := true
	_, err = svc.UpdatePhoto(ctx, "u1", front.ID, PhotoUpdate{FinalImageURI: &final, BackgroundAdded: &added})
	require.NoError(t, err)

	ok, err := svc.CompleteSession(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Only the exterior photo was debited and saved; the composited
	// image was preferred over the raw capture.
	assert.Equal(t, 1, credits.used)
	require.Len(t, gallery.saved, 1)
	saved := gallery.saved[0]
	assert.Equal(t, final, saved.URI)
	assert.Equal(t, "Volvo XC60", saved.Category)
	assert.Equal(t, "Volvo", saved.Metadata.CarMake)
	assert.Equal(t, "Front", saved.Metadata.AngleName)

	// Active slot cleared, session archived with all photos processed.
	active, err := svc.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, active)

	archived, err := svc.CompletedSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.True(t, archived[0].Completed)
	for _, p := range archived[0].Photos {
		assert.True(t, p.Processed)
	}
	assert.Equal(t, saved.Metadata.SessionID, archived[0].ID)
}

func TestCompleteSessionSavesDespiteCreditFailure(t *testing.T) {
	svc, _, credits, gallery := newSessionFixture()
	ctx := context.Background()
	credits.deny = true

	_, err := svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)
	_, err = svc.AddPhoto(ctx, "u1", "/tmp/front.jpg", "front")
	require.NoError(t, err)

	ok, err := svc.CompleteSession(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, gallery.saved, 1)
}

func TestCompleteSessionToleratesGalleryFailure(t *testing.T) {
	svc, _, _, gallery := newSessionFixture()
	ctx := context.Background()
	gallery.fail = true

	_, err := svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)
	_, err = svc.AddPhoto(ctx, "u1", "/tmp/front.jpg", "front")
	require.NoError(t, err)

	ok, err := svc.CompleteSession(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	archived, err := svc.CompletedSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestGetPhotosForAngleKeepsOrder(t *testing.T) {
	svc, _, _, _ := newSessionFixture()
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)

	a, err := svc.AddPhoto(ctx, "u1", "/tmp/a.jpg", "front")
	require.NoError(t, err)
	_, err = svc.AddPhoto(ctx, "u1", "/tmp/b.jpg", "rear")
	require.NoError(t, err)
	c, err := svc.AddPhoto(ctx, "u1", "/tmp/c.jpg", "front")
	require.NoError(t, err)

	photos, err := svc.GetPhotosForAngle(ctx, "u1", "front")
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, a.ID, photos[0].ID)
	assert.Equal(t, c.ID, photos[1].ID)
}

func TestGetPhotosForAngleAfterCompletion(t *testing.T) {
	svc, _, _, _ := newSessionFixture()
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)
	_, err = svc.AddPhoto(ctx, "u1", "/tmp/front.jpg", "front")
	require.NoError(t, err)

	photos, err := svc.GetPhotosForAngle(ctx, "u1", "front")
	require.NoError(t, err)
	require.Len(t, photos, 1)

	_, err = svc.CompleteSession(ctx, "u1")
	require.NoError(t, err)

	// Once the session is closed the angle simply has no photos.
	photos, err = svc.GetPhotosForAngle(ctx, "u1", "front")
	require.NoError(t, err)
	assert.NotNil(t, photos)
	assert.Empty(t, photos)
}

func TestHasAllRequiredAngles(t *testing.T) {
	svc, _, _, _ := newSessionFixture()
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)

	for _, angleID := range []string{"front", "front-side-driver", "rear", "side-passenger"} {
		_, err = svc.AddPhoto(ctx, "u1", "/tmp/"+angleID+".jpg", angleID)
		require.NoError(t, err)
	}
	active, err := svc.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, svc.HasAllRequiredAngles(active))

	_, err = svc.AddPhoto(ctx, "u1", "/tmp/dash.jpg", "dashboard")
	require.NoError(t, err)
	active, err = svc.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, svc.HasAllRequiredAngles(active))

	assert.False(t, svc.HasAllRequiredAngles(nil))
}

func TestProcessPendingRemovals(t *testing.T) {
	kv := newMemKV()
	remover := &fakeRemover{}
	svc := NewSessionService(kv, NewAngleService(), &fakeDebiter{}, &fakeGallery{}, remover)
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "u1", "", "Volvo", "XC60", 2022)
	require.NoError(t, err)
	front, err := svc.AddPhoto(ctx, "u1", "/tmp/front.jpg", "front")
	require.NoError(t, err)
	_, err = svc.AddPhoto(ctx, "u1", "/tmp/dash.jpg", "dashboard")
	require.NoError(t, err)

	svc.ProcessPendingRemovals(ctx)

	// Only the exterior photo went through the remover.
	assert.Equal(t, 1, remover.calls)

	active, err := svc.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	for _, p := range active.Photos {
		if p.ID == front.ID {
			assert.True(t, p.BackgroundRemoved)
			assert.Equal(t, "/tmp/front.jpg.processed", p.URI)
		} else {
			assert.False(t, p.BackgroundRemoved)
		}
	}

	// A second sweep is a no-op.
	svc.ProcessPendingRemovals(ctx)
	assert.Equal(t, 1, remover.calls)
}

func TestDummyRemoverCopiesFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "capture.jpg")
	require.NoError(t, os.WriteFile(src, []byte("raw-image-bytes"), 0o644))

	remover := NewDummyRemover(0)
	out, err := remover.RemoveBackground(context.Background(), src)
	require.NoError(t, err)
	assert.NotEqual(t, src, out)
	assert.Contains(t, filepath.Base(out), "dummy_processed_")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw-image-bytes"), data)
}
