package transform

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCompositeOutputDimensions(t *testing.T) {
	bg := solidImage(640, 480, color.RGBA{R: 255, A: 255})
	fg := solidImage(100, 50, color.RGBA{B: 255, A: 255})

	out, err := Composite(bg, fg, Identity(), CaptureOptions{Width: 320, Height: 180})
	require.NoError(t, err)
	assert.Equal(t, 320, out.Bounds().Dx())
	assert.Equal(t, 180, out.Bounds().Dy())
}

func TestCompositeDefaultsTo16By9(t *testing.T) {
	bg := solidImage(64, 64, color.RGBA{R: 255, A: 255})
	fg := solidImage(16, 16, color.RGBA{B: 255, A: 255})

	out, err := Composite(bg, fg, Identity(), CaptureOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1920, out.Bounds().Dx())
	assert.Equal(t, 1080, out.Bounds().Dy())
}

func TestCompositeForegroundCentered(t *testing.T) {
	bg := solidImage(320, 180, color.RGBA{R: 255, A: 255})
	fg := solidImage(100, 100, color.RGBA{B: 255, A: 255})

	out, err := Composite(bg, fg, Identity(), CaptureOptions{Width: 320, Height: 180})
	require.NoError(t, err)

	// Center pixel is foreground, corners stay background.
	_, _, b, _ := out.At(160, 90).RGBA()
	assert.NotZero(t, b)
	r, _, b, _ := out.At(2, 2).RGBA()
	assert.NotZero(t, r)
	assert.Zero(t, b)
}

func TestCompositeOffsetMovesForeground(t *testing.T) {
	bg := solidImage(320, 180, color.RGBA{R: 255, A: 255})
	fg := solidImage(100, 100, color.RGBA{B: 255, A: 255})

	st := Identity()
	st.Position = Point{X: 100, Y: 0}
	out, err := Composite(bg, fg, st, CaptureOptions{Width: 320, Height: 180})
	require.NoError(t, err)

	// The original center is now background, the shifted center is
	// foreground.
	_, _, b, _ := out.At(160, 90).RGBA()
	assert.Zero(t, b)
	_, _, b, _ = out.At(260, 90).RGBA()
	assert.NotZero(t, b)
}

func TestCompositeMissingImages(t *testing.T) {
	fg := solidImage(10, 10, color.Black)

	_, err := Composite(nil, fg, Identity(), CaptureOptions{})
	assert.ErrorIs(t, err, ErrMissingImage)

	_, err = Composite(fg, nil, Identity(), CaptureOptions{})
	assert.ErrorIs(t, err, ErrMissingImage)
}

func TestCapturePNGEncodes(t *testing.T) {
	bg := solidImage(32, 18, color.RGBA{R: 255, A: 255})
	fg := solidImage(8, 8, color.RGBA{B: 255, A: 255})

	var buf bytes.Buffer
	err := CapturePNG(&buf, bg, fg, Identity(), CaptureOptions{Width: 32, Height: 18})
	require.NoError(t, err)

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 32, decoded.Bounds().Dx())
	assert.Equal(t, 18, decoded.Bounds().Dy())
}
