package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"metal-duck/core"
)

type LightType int

const (
	LightTypeAmbient LightType = iota
	LightTypeDirectional
)

// Light represents a light source. Directional lights shine from Position
// towards the origin.
type Light struct {
	Type          LightType
	Position      mgl32.Vec3
	Color         core.Color
	Intensity     float32
	CastShadow    bool
	ShadowMapSize int
}

// Direction is the unit vector the light travels along.
func (l *Light) Direction() mgl32.Vec3 {
	if l.Position.Len() == 0 {
		return mgl32.Vec3{0, -1, 0}
	}
	return l.Position.Mul(-1).Normalize()
}

// Scene owns the camera, the lights, the root node and at most one FocusObject.
type Scene struct {
	Root     *Node
	Camera   *Camera
	Lights   []*Light
	SkyColor core.Color

	focus FocusObject
}

func NewScene(camera *Camera) *Scene {
	return &Scene{
		Root:     NewNode("Root"),
		Camera:   camera,
		SkyColor: core.Color{R: 0, G: 0, B: 0, A: 0},
	}
}

func (s *Scene) AddLight(light *Light) {
	s.Lights = append(s.Lights, light)
}

// Light returns the first light of the given type, or nil.
func (s *Scene) Light(t LightType) *Light {
	for _, l := range s.Lights {
		if l != nil && l.Type == t {
			return l
		}
	}
	return nil
}

// Focus returns the current FocusObject; Kind() is FocusNone while loading.
func (s *Scene) Focus() FocusObject {
	return s.focus
}

// SetFocus attaches f under Root, replacing and returning whatever was attached
// before, and retargets the camera at f. The caller owns the returned object.
func (s *Scene) SetFocus(f FocusObject) FocusObject {
	prev := s.ClearFocus()
	if f.Kind() == FocusNone {
		return prev
	}
	s.Root.AddChild(f.Node())
	s.focus = f
	if s.Camera != nil {
		s.Camera.LookAt(f.Node().WorldPosition())
	}
	return prev
}

// ClearFocus detaches and returns the current FocusObject.
func (s *Scene) ClearFocus() FocusObject {
	prev := s.focus
	if prev.Kind() != FocusNone {
		s.Root.RemoveChild(prev.Node())
	}
	s.focus = FocusObject{}
	return prev
}

// GetVisibleNodes returns all nodes with meshes that are visible
func (s *Scene) GetVisibleNodes() []*Node {
	return s.Root.MeshNodes()
}
