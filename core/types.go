package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite = Color{1, 1, 1, 1}
	ColorBlack = Color{0, 0, 0, 1}
	// ColorDuck is the placeholder yellow (0xffcc00).
	ColorDuck = ColorFromHex(0xffcc00)
)

// ColorFromHex converts a 0xRRGGBB value into an opaque Color.
func ColorFromHex(hex uint32) Color {
	return Color{
		R: float32((hex>>16)&0xff) / 255,
		G: float32((hex>>8)&0xff) / 255,
		B: float32(hex&0xff) / 255,
		A: 1,
	}
}

// Vec3 returns the RGB channels, for shader uniforms.
func (c Color) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{c.R, c.G, c.B}
}

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Color    Color
}

type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// GetMatrix composes T * R * S.
func (t Transform) GetMatrix() mgl32.Mat4 {
	translation := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotation := t.Rotation.Normalize().Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
	return translation.Mul4(rotation).Mul4(scale)
}

// Size is a viewport size in logical pixels.
type Size struct {
	Width, Height int
}

// Valid reports whether both dimensions are measurable.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Aspect returns width/height, or 1 for a degenerate size.
func (s Size) Aspect() float32 {
	if s.Height <= 0 {
		return 1
	}
	return float32(s.Width) / float32(s.Height)
}

// Rect is a canvas bounding rectangle in client coordinates.
type Rect struct {
	X, Y, Width, Height float32
}

func (r Rect) Contains(x, y float32) bool {
	return x >= r.X && y >= r.Y && x <= r.X+r.Width && y <= r.Y+r.Height
}

type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

// PointerEvent is a click in client coordinates.
type PointerEvent struct {
	X, Y   float32
	Button MouseButton
}
