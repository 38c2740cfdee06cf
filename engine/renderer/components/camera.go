package components

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	vmath "github.com/spaghettifunk/voxelray/engine/math"
)

// CameraConstantsSize is the push constant block of the render kernel: inverse view
// followed by inverse projection, column major.
const CameraConstantsSize = 2 * 16 * 4

const (
	defaultFOV  float32 = 70.0
	nearPlane   float32 = 0.1
	farPlane    float32 = 4096.0
	pitchLimit  float32 = 1.55334306 // 89 degrees
	worldCenter float32 = 512.0
)

/**
 * A free-fly camera in voxel units. Yaw and pitch are in radians, a yaw of zero
 * looks down +X and a yaw of pi/2 down +Z.
 */
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	Aspect   float32
	FOV      float32

	// Internal flag used to determine when the view matrix needs to be rebuilt.
	IsDirty    bool
	viewMatrix mgl32.Mat4
	forward    mgl32.Vec3
	right      mgl32.Vec3
	up         mgl32.Vec3
}

func NewCamera(width, height uint32) *Camera {
	camera := &Camera{}
	camera.Reset()
	camera.SetAspect(width, height)
	return camera
}

// Reset puts the camera in front of the world looking at its center.
func (c *Camera) Reset() {
	c.Position = mgl32.Vec3{worldCenter, worldCenter, -64}
	c.Yaw = mgl32.DegToRad(90)
	c.Pitch = 0
	c.Aspect = 1
	c.FOV = mgl32.DegToRad(defaultFOV)
	c.IsDirty = true
}

// SetAspect follows the window size. A zero height keeps the previous aspect.
func (c *Camera) SetAspect(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
}

func (c *Camera) GetView() mgl32.Mat4 {
	if c.IsDirty {
		c.updateVectors()
		c.viewMatrix = mgl32.LookAtV(c.Position, c.Position.Add(c.forward), c.up)
		c.IsDirty = false
	}
	return c.viewMatrix
}

func (c *Camera) Forward() mgl32.Vec3 {
	c.GetView()
	return c.forward
}

func (c *Camera) Right() mgl32.Vec3 {
	c.GetView()
	return c.right
}

func (c *Camera) updateVectors() {
	sy, cy := math.Sincos(float64(c.Yaw))
	sp, cp := math.Sincos(float64(c.Pitch))
	c.forward = mgl32.Vec3{float32(cy * cp), float32(sp), float32(sy * cp)}.Normalize()
	c.right = c.forward.Cross(mgl32.Vec3{0, 1, 0}).Normalize()
	c.up = c.right.Cross(c.forward).Normalize()
}

// Rotate applies a mouse motion in pixels.
func (c *Camera) Rotate(dx, dy, sensitivity float32) {
	c.Yaw += dx * sensitivity
	c.Pitch -= dy * sensitivity

	// Clamp to avoid Gimbal lock.
	c.Pitch = vmath.Clamp(c.Pitch, -pitchLimit, pitchLimit)
	c.IsDirty = true
}

// Move translates along forward (direction Z), right (X) and world up (Y).
func (c *Camera) Move(direction mgl32.Vec3, amount float32) {
	if direction.Len() == 0 {
		return
	}
	c.GetView()
	c.Position = c.Position.
		Add(c.forward.Mul(direction.Z() * amount)).
		Add(c.right.Mul(direction.X() * amount)).
		Add(mgl32.Vec3{0, 1, 0}.Mul(direction.Y() * amount))
	c.IsDirty = true
}

func (c *Camera) Projection() mgl32.Mat4 {
	proj := mgl32.Perspective(c.FOV, c.Aspect, nearPlane, farPlane)
	// Vulkan clip space has Y pointing down
	proj[5] *= -1
	return proj
}

// PushConstants packs the inverse view and inverse projection for the render kernel.
func (c *Camera) PushConstants() []byte {
	out := make([]byte, 0, CameraConstantsSize)
	for _, m := range [2]mgl32.Mat4{c.GetView().Inv(), c.Projection().Inv()} {
		for _, v := range m {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out
}
