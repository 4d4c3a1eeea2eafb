package services

import (
	"testing"

	"github.com/carshot/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newS3Fixture(t *testing.T, endpoint string) *S3Service {
	t.Helper()
	client, err := buildClient(endpoint, "eu-central-1", "test-key", "test-secret", true)
	require.NoError(t, err)
	cfg := &config.Config{GalleryBucket: "carshot-gallery", GalleryS3Region: "eu-central-1"}
	return &S3Service{client: client, cfg: cfg}
}

func TestObjectURLKeepsKeySegments(t *testing.T) {
	svc := newS3Fixture(t, "http://localhost:9000")
	assert.Equal(t,
		"http://localhost:9000/carshot-gallery/gallery/u1/abc.jpg",
		svc.ObjectURL("gallery/u1/abc.jpg"))
}

func TestObjectURLEscapesWithinSegments(t *testing.T) {
	svc := newS3Fixture(t, "http://localhost:9000/")
	assert.Equal(t,
		"http://localhost:9000/carshot-gallery/gallery/u1/my%20car.jpg",
		svc.ObjectURL("gallery/u1/my car.jpg"))
}

func TestObjectURLVirtualHostedWithoutEndpoint(t *testing.T) {
	svc := newS3Fixture(t, "")
	assert.Equal(t,
		"https://carshot-gallery.s3.eu-central-1.amazonaws.com/gallery/u1/abc.jpg",
		svc.ObjectURL("gallery/u1/abc.jpg"))
}
