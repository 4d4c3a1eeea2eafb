package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
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

func TestSingleTouchPanIsDamped(t *testing.T) {
	e := NewEditor(testConfig())

	e.Begin([]Touch{{X: 100, Y: 100}})
	e.Move([]Touch{{X: 140, Y: 120}})
	e.End()

	st := e.State()
	assert.InDelta(t, 20, st.Position.X, 1e-9)
	assert.InDelta(t, 10, st.Position.Y, 1e-9)
	assert.InDelta(t, 1.0, st.Scale, 1e-9)
}

func TestPanAccumulatesAcrossFrames(t *testing.T) {
	e := NewEditor(testConfig())

	e.Begin([]Touch{{X: 0, Y: 0}})
	e.Move([]Touch{{X: 10, Y: 0}})
	e.Move([]Touch{{X: 30, Y: 0}})
	e.End()

	// (10 + 20) * 0.5
	assert.InDelta(t, 15, e.State().Position.X, 1e-9)
}

func TestPanClampedToMargin(t *testing.T) {
	e := NewEditor(testConfig())

	e.Begin([]Touch{{X: 0, Y: 0}})
	e.Move([]Touch{{X: 5000, Y: 4000}})
	e.End()

	// At scale 1 the allowed overflow is (1920*1.5 - 1920)/2 = 480 on X
	// and (1080*1.5 - 1080)/2 = 270 on Y.
	st := e.State()
	assert.InDelta(t, 480, st.Position.X, 1e-9)
	assert.InDelta(t, 270, st.Position.Y, 1e-9)
}

func TestPinchScaleIsSmoothed(t *testing.T) {
	e := NewEditor(testConfig())

	e.Begin([]Touch{{X: 0, Y: 0}, {X: 100, Y: 0}})
	e.Move([]Touch{{X: 0, Y: 0}, {X: 150, Y: 0}})
	e.End()

	// Distance 100 -> 150: smoothed scale = 1 + (1.5 - 1) * 0.3 = 1.15.
	assert.InDelta(t, 1.15, e.State().Scale, 1e-9)
}

func TestPinchScaleClamped(t *testing.T) {
	e := NewEditor(testConfig())

	// Repeated spread gestures: each one multiplies the scale by
	// 1 + (3 - 1) * 0.3 = 1.6 until the upper bound stops it.
	for i := 0; i < 20; i++ {
		e.Begin([]Touch{{X: 0, Y: 0}, {X: 100, Y: 0}})
		e.Move([]Touch{{X: 0, Y: 0}, {X: 300, Y: 0}})
		e.End()
	}
	assert.InDelta(t, 3.0, e.State().Scale, 1e-9)

	// Repeated squeeze gestures drive it down to the lower bound.
	e2 := NewEditor(testConfig())
	for i := 0; i < 20; i++ {
		e2.Begin([]Touch{{X: 0, Y: 0}, {X: 100, Y: 0}})
		e2.Move([]Touch{{X: 0, Y: 0}, {X: 30, Y: 0}})
		e2.End()
	}
	assert.InDelta(t, 0.3, e2.State().Scale, 1e-9)
}

func TestRotationIsSmoothedAndUnbounded(t *testing.T) {
	e := NewEditor(testConfig())

	e.Begin([]Touch{{X: 0, Y: 0}, {X: 100, Y: 0}})
	e.Move([]Touch{{X: 0, Y: 0}, {X: 0, Y: 100}})

	// 90 degree frame delta, smoothed by 0.3.
	assert.InDelta(t, 27, e.State().Rotation, 1e-9)

	// Many full quarter turns accumulate past 360.
	for i := 0; i < 100; i++ {
		e.Move([]Touch{{X: 0, Y: 0}, {X: -100, Y: 0}})
		e.Move([]Touch{{X: 0, Y: 0}, {X: 0, Y: -100}})
		e.Move([]Touch{{X: 0, Y: 0}, {X: 100, Y: 0}})
		e.Move([]Touch{{X: 0, Y: 0}, {X: 0, Y: 100}})
	}
	assert.Greater(t, e.State().Rotation, 360.0)
}

func TestFingerTransitionDiscardsOneFrame(t *testing.T) {
	e := NewEditor(testConfig())

	// Two fingers, then drop to one far away: the transition frame must
	// not pan.
	e.Begin([]Touch{{X: 0, Y: 0}, {X: 100, Y: 0}})
	e.Move([]Touch{{X: 500, Y: 500}})
	assert.InDelta(t, 0, e.State().Position.X, 1e-9)
	assert.InDelta(t, 0, e.State().Position.Y, 1e-9)

	// The next single-touch frame pans from the new baseline.
	e.Move([]Touch{{X: 510, Y: 500}})
	assert.InDelta(t, 5, e.State().Position.X, 1e-9)

	// Back to two fingers: the transition frame must not scale.
	e.Move([]Touch{{X: 0, Y: 0}, {X: 300, Y: 0}})
	assert.InDelta(t, 1.0, e.State().Scale, 1e-9)

	// The following two-finger frame scales from the new baseline.
	e.Move([]Touch{{X: 0, Y: 0}, {X: 450, Y: 0}})
	assert.InDelta(t, 1.15, e.State().Scale, 1e-9)
}

func TestNearZeroPinchRebaselines(t *testing.T) {
	e := NewEditor(testConfig())

	e.Begin([]Touch{{X: 0, Y: 0}, {X: 0.001, Y: 0}})
	// Distance ~0 would explode the ratio; this frame must only
	// re-baseline.
	e.Move([]Touch{{X: 0, Y: 0}, {X: 100, Y: 0}})
	assert.InDelta(t, 1.0, e.State().Scale, 1e-9)

	e.Move([]Touch{{X: 0, Y: 0}, {X: 150, Y: 0}})
	assert.InDelta(t, 1.15, e.State().Scale, 1e-9)
}

func TestResetRestoresIdentity(t *testing.T) {
	e := NewEditor(testConfig())

	e.Begin([]Touch{{X: 0, Y: 0}, {X: 100, Y: 0}})
	e.Move([]Touch{{X: 0, Y: 0}, {X: 150, Y: 50}})
	e.End()
	e.Begin([]Touch{{X: 0, Y: 0}})
	e.Move([]Touch{{X: 40, Y: 40}})
	e.End()
	require.NotEqual(t, Identity(), e.State())

	e.Reset()
	assert.Equal(t, Identity(), e.State())
}

func TestMoveWithoutBeginIsIgnored(t *testing.T) {
	e := NewEditor(testConfig())
	e.Move([]Touch{{X: 100, Y: 100}})
	assert.Equal(t, Identity(), e.State())
}

func TestSetStateClampsScale(t *testing.T) {
	e := NewEditor(testConfig())
	e.SetState(State{Scale: 99})
	assert.InDelta(t, 3.0, e.State().Scale, 1e-9)
	e.SetState(State{Scale: 0.01})
	assert.InDelta(t, 0.3, e.State().Scale, 1e-9)
}
