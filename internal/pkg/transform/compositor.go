package transform

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/disintegration/gift"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ErrMissingImage is returned when the compositor is asked to render
// without a background or foreground; the caller is expected to surface
// this as a retryable capture failure.
var ErrMissingImage = errors.New("compositor: missing image")

// CaptureOptions sets the flattened output resolution. Zero values fall
// back to the 16:9 default.
type CaptureOptions struct {
	Width  int
	Height int
}

const (
	defaultCaptureWidth  = 1920
	defaultCaptureHeight = 1080

	// The foreground initially occupies the centered half of the canvas,
	// matching the mobile compositor's layout, before the editor
	// transform is applied.
	foregroundFraction = 0.5
)

// Composite flattens background and foreground into a single image. The
// background is cover-scaled to fill the canvas; the foreground is
// contain-fitted into the centered half of the canvas and then
// transformed by the editor state (translate, uniform scale, rotate
// about its center).
func Composite(background, foreground image.Image, st State, opts CaptureOptions) (*image.RGBA, error) {
	if background == nil || foreground == nil {
		return nil, ErrMissingImage
	}

	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		w, h = defaultCaptureWidth, defaultCaptureHeight
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	// Background: cover-fill the canvas.
	g := gift.New(gift.ResizeToFill(w, h, gift.LanczosResampling, gift.CenterAnchor))
	bgBounds := g.Bounds(background.Bounds())
	if bgBounds.Dx() != w || bgBounds.Dy() != h {
		return nil, fmt.Errorf("compositor: unexpected background bounds %v", bgBounds)
	}
	g.Draw(dst, background)

	// Foreground: contain-fit into the center region, then apply the
	// editor transform.
	fb := foreground.Bounds()
	fw, fh := float64(fb.Dx()), float64(fb.Dy())
	if fw <= 0 || fh <= 0 {
		return nil, ErrMissingImage
	}

	base := math.Min(foregroundFraction*float64(w)/fw, foregroundFraction*float64(h)/fh)
	scale := base * st.Scale
	if scale <= 0 {
		scale = base
	}

	theta := st.Rotation * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)

	// Rotation * uniform scale.
	a := scale * cos
	b := -scale * sin
	c := scale * sin
	d := scale * cos

	// Map the foreground center onto the canvas center plus the editor's
	// position offset.
	fx := float64(fb.Min.X) + fw/2
	fy := float64(fb.Min.Y) + fh/2
	cx := float64(w)/2 + st.Position.X
	cy := float64(h)/2 + st.Position.Y

	m := f64.Aff3{
		a, b, cx - a*fx - b*fy,
		c, d, cy - c*fx - d*fy,
	}
	xdraw.ApproxBiLinear.Transform(dst, m, foreground, fb, xdraw.Over, nil)

	return dst, nil
}

// CapturePNG renders the composite and writes it as PNG.
func CapturePNG(w io.Writer, background, foreground image.Image, st State, opts CaptureOptions) error {
	img, err := Composite(background, foreground, st, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode capture: %w", err)
	}
	return nil
}
