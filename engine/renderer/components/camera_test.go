package components

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func decodeMat(b []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m
}

func TestPushConstantsLayout(t *testing.T) {
	c := NewCamera(800, 600)
	c.Position = mgl32.Vec3{1, 2, 3}
	c.IsDirty = true

	b := c.PushConstants()
	if len(b) != CameraConstantsSize || CameraConstantsSize != 128 {
		t.Fatalf("len = %d", len(b))
	}

	// the inverse view carries the camera position in its translation column
	viewInv := decodeMat(b[:64])
	if !viewInv.Col(3).Vec3().ApproxEqualThreshold(c.Position, 1e-4) {
		t.Errorf("translation = %v, want %v", viewInv.Col(3), c.Position)
	}

	projInv := decodeMat(b[64:])
	if !projInv.Mul4(c.Projection()).ApproxEqualThreshold(mgl32.Ident4(), 1e-4) {
		t.Error("second matrix is not the inverse projection")
	}
	if c.Projection()[5] >= 0 {
		t.Error("projection is not flipped for Vulkan")
	}
}

func TestRotateClampsPitch(t *testing.T) {
	c := NewCamera(800, 600)
	c.Rotate(0, -1e6, 0.002)
	if c.Pitch != pitchLimit {
		t.Errorf("pitch = %v, want %v", c.Pitch, pitchLimit)
	}
	c.Rotate(0, 1e6, 0.002)
	if c.Pitch != -pitchLimit {
		t.Errorf("pitch = %v, want %v", c.Pitch, -pitchLimit)
	}
}

func TestMove(t *testing.T) {
	c := NewCamera(800, 600)
	start := c.Position

	// looking down +Z at the world
	c.Move(mgl32.Vec3{0, 0, 1}, 10)
	if d := c.Position.Sub(start); !d.ApproxEqualThreshold(mgl32.Vec3{0, 0, 10}, 1e-3) {
		t.Errorf("forward moved by %v", d)
	}

	c.Move(mgl32.Vec3{0, 1, 0}, 5)
	if d := c.Position.Y() - start.Y(); math.Abs(float64(d-5)) > 1e-3 {
		t.Errorf("up moved by %v", d)
	}

	before := c.Position
	c.Move(mgl32.Vec3{}, 100)
	if c.Position != before {
		t.Error("zero direction moved the camera")
	}
}

func TestSetAspect(t *testing.T) {
	c := NewCamera(1600, 800)
	if c.Aspect != 2 {
		t.Errorf("aspect = %v", c.Aspect)
	}
	c.SetAspect(0, 0)
	if c.Aspect != 2 {
		t.Error("minimized window changed the aspect")
	}
}
