package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a perspective camera that always looks at Target.
type Camera struct {
	Position    mgl32.Vec3
	Target      mgl32.Vec3
	Up          mgl32.Vec3
	FOV         float32 // vertical, degrees
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32

	// Cached matrices
	viewMatrix       mgl32.Mat4
	projectionMatrix mgl32.Mat4
	dirty            bool
}

func NewCamera(fov, aspectRatio, nearPlane, farPlane float32) *Camera {
	return &Camera{
		Up:          mgl32.Vec3{0, 1, 0},
		Target:      mgl32.Vec3{0, 0, -1},
		FOV:         fov,
		AspectRatio: aspectRatio,
		NearPlane:   nearPlane,
		FarPlane:    farPlane,
		dirty:       true,
	}
}

// UpdateAspectRatio ignores degenerate sizes.
func (c *Camera) UpdateAspectRatio(width, height float32) {
	if width > 0 && height > 0 {
		c.AspectRatio = width / height
		c.dirty = true
	}
}

func (c *Camera) SetPosition(pos mgl32.Vec3) {
	c.Position = pos
	c.dirty = true
}

func (c *Camera) LookAt(target mgl32.Vec3) {
	c.Target = target
	c.dirty = true
}

func (c *Camera) GetViewMatrix() mgl32.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.viewMatrix
}

func (c *Camera) GetProjectionMatrix() mgl32.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.projectionMatrix
}

func (c *Camera) GetViewProjectionMatrix() mgl32.Mat4 {
	return c.GetProjectionMatrix().Mul4(c.GetViewMatrix())
}

func (c *Camera) updateMatrices() {
	c.viewMatrix = mgl32.LookAtV(c.Position, c.Target, c.Up)
	c.projectionMatrix = mgl32.Perspective(mgl32.DegToRad(c.FOV), c.AspectRatio, c.NearPlane, c.FarPlane)
	c.dirty = false
}
