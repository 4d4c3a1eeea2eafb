package transform

import "math"

// nearZeroDistance guards the pinch ratio against division blow-up when
// two touches report (almost) the same position. Such frames re-baseline
// instead of scaling.
const nearZeroDistance = 0.01

// Point is a 2-D offset in canvas pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Touch is one finger position in canvas coordinates.
type Touch struct {
	X float64
	Y float64
}

// State is the live affine transform of the foreground image: a position
// offset from the canvas center, a uniform scale factor and a rotation in
// degrees. Rotation is unbounded and may exceed 360.
type State struct {
	Position Point   `json:"position"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
}

// Identity returns the default editor state.
func Identity() State {
	return State{Scale: 1}
}

// Config holds the gesture tuning. The damping and smoothing factors are
// hand-tuned values carried over from the mobile app; treat them as
// adjustable, not authoritative.
type Config struct {
	PanDamping     float64 // applied to single-touch deltas
	PinchSmoothing float64 // applied to incremental scale/rotation
	MinScale       float64
	MaxScale       float64
	CanvasWidth    float64
	CanvasHeight   float64
	MarginRatio    float64 // allowed overflow beyond the canvas bounds
}

// DefaultConfig returns the tuning used by the mobile editor on a
// 16:9 canvas.
func DefaultConfig() Config {
	return Config{
		PanDamping:     0.5,
		PinchSmoothing: 0.3,
		MinScale:       0.3,
		MaxScale:       3.0,
		CanvasWidth:    1920,
		CanvasHeight:   1080,
		MarginRatio:    0.5,
	}
}

// Editor converts raw multi-touch frames into a live 2-D transform for
// placing a foreground image over a background. It is not safe for
// concurrent use; gesture tracking is expected to run on a single event
// stream.
type Editor struct {
	cfg   Config
	state State

	tracking bool
	scaling  bool // currently in two-finger mode

	lastTouch    Touch
	lastDistance float64
	lastAngle    float64
}

// NewEditor returns an editor at identity state.
func NewEditor(cfg Config) *Editor {
	if cfg.MinScale <= 0 {
		cfg.MinScale = 0.3
	}
	if cfg.MaxScale <= cfg.MinScale {
		cfg.MaxScale = 3.0
	}
	return &Editor{cfg: cfg, state: Identity()}
}

// State returns the current transform.
func (e *Editor) State() State {
	return e.state
}

// SetState replaces the current transform, clamping scale to the
// configured bounds.
func (e *Editor) SetState(st State) {
	st.Scale = clamp(st.Scale, e.cfg.MinScale, e.cfg.MaxScale)
	e.state = st
}

// Reset restores position (0,0), scale 1 and rotation 0 in one step.
func (e *Editor) Reset() {
	e.state = Identity()
}

// Begin starts a gesture. A two-finger start baselines the pinch so the
// first Move frame already produces a scale/rotation change.
func (e *Editor) Begin(touches []Touch) {
	if len(touches) == 0 {
		return
	}
	e.tracking = true
	if len(touches) >= 2 {
		e.scaling = true
		e.lastDistance = distance(touches[0], touches[1])
		e.lastAngle = angleDeg(touches[0], touches[1])
		return
	}
	e.scaling = false
	e.lastTouch = touches[0]
}

// Move consumes one gesture frame. Deltas are computed against the
// previous frame, not the gesture start, so transitions between one and
// two fingers cannot cause jumps; the first frame after a transition is
// discarded as a new baseline.
func (e *Editor) Move(touches []Touch) {
	if !e.tracking || len(touches) == 0 {
		return
	}
	if len(touches) >= 2 {
		e.moveTwoFinger(touches[0], touches[1])
		return
	}
	e.moveSingleFinger(touches[0])
}

// End finishes the gesture and clears all baselines.
func (e *Editor) End() {
	e.tracking = false
	e.scaling = false
}

func (e *Editor) moveSingleFinger(t Touch) {
	if e.scaling {
		// 2 -> 1 transition: drop this frame, re-baseline the pan.
		e.scaling = false
		e.lastTouch = t
		return
	}

	dx := (t.X - e.lastTouch.X) * e.cfg.PanDamping
	dy := (t.Y - e.lastTouch.Y) * e.cfg.PanDamping
	e.lastTouch = t

	e.state.Position.X = e.clampOffset(e.state.Position.X+dx, e.cfg.CanvasWidth)
	e.state.Position.Y = e.clampOffset(e.state.Position.Y+dy, e.cfg.CanvasHeight)
}

func (e *Editor) moveTwoFinger(a, b Touch) {
	dist := distance(a, b)
	ang := angleDeg(a, b)

	if !e.scaling {
		// 1 -> 2 transition: drop this frame, re-baseline the pinch.
		e.scaling = true
		e.lastDistance = dist
		e.lastAngle = ang
		return
	}

	if e.lastDistance < nearZeroDistance {
		e.lastDistance = dist
		e.lastAngle = ang
		return
	}

	// Incremental ratio against the previous frame, smoothed before it is
	// applied to keep the pinch from jittering.
	ratio := dist / e.lastDistance
	smoothed := 1 + (ratio-1)*e.cfg.PinchSmoothing
	e.state.Scale = clamp(e.state.Scale*smoothed, e.cfg.MinScale, e.cfg.MaxScale)

	delta := normalizeAngle(ang - e.lastAngle)
	e.state.Rotation += delta * e.cfg.PinchSmoothing

	e.lastDistance = dist
	e.lastAngle = ang
}

// clampOffset keeps the scaled image's bounding box overlapping an
// oversized canvas: partial overflow is allowed up to MarginRatio of the
// canvas extent on each side.
func (e *Editor) clampOffset(v, extent float64) float64 {
	if extent <= 0 {
		return v
	}
	allowed := extent * (1 + e.cfg.MarginRatio)
	limit := math.Abs(allowed-extent*e.state.Scale) / 2
	return clamp(v, -limit, limit)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func distance(a, b Touch) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func angleDeg(a, b Touch) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
}

// normalizeAngle maps a frame-to-frame angle delta into (-180, 180] so a
// wrap of atan2 does not read as a full-circle spin.
func normalizeAngle(d float64) float64 {
	for d > 180 {
		d -= 360
	}
	for d <= -180 {
		d += 360
	}
	return d
}
