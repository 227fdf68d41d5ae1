package stage

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"

	"metal-duck/config"
	"metal-duck/core"
	"metal-duck/logging"
	"metal-duck/renderer"
	"metal-duck/scene"
)

// Host owns the scene graph, the camera, the two lights and the render engine.
// Before Initialize every method is a no-op.
type Host struct {
	cfg    config.Config
	logger *log.Logger

	scene  *scene.Scene
	engine *renderer.RenderEngine
}

func NewHost(cfg config.Config, logger *log.Logger) *Host {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Host{cfg: cfg, logger: logger}
}

// Initialize builds the scene for a viewport of size and starts the render
// engine on backend. Failure is fatal and leaves the host uninitialized.
func (h *Host) Initialize(size core.Size, pixelRatio float32, backend renderer.Backend) error {
	if h.scene != nil {
		return errors.New("scene already initialized")
	}
	if !size.Valid() {
		return &core.UnsupportedEnvironmentError{Reason: "container has no measurable size"}
	}
	engine, err := renderer.NewRenderEngine(backend, size, pixelRatio, h.logger)
	if err != nil {
		return err
	}

	cc := h.cfg.Camera
	cam := scene.NewCamera(cc.FOV, size.Aspect(), cc.Near, cc.Far)
	cam.SetPosition(mgl32.Vec3(cc.Position))

	s := scene.NewScene(cam)
	lc := h.cfg.Lights
	s.AddLight(&scene.Light{
		Type:      scene.LightTypeAmbient,
		Color:     core.ColorFromHex(lc.AmbientColor),
		Intensity: lc.AmbientIntensity,
	})
	s.AddLight(&scene.Light{
		Type:          scene.LightTypeDirectional,
		Position:      mgl32.Vec3(lc.DirectionalPosition),
		Color:         core.ColorFromHex(lc.DirectionalColor),
		Intensity:     lc.DirectionalIntensity,
		CastShadow:    true,
		ShadowMapSize: lc.ShadowMapSize,
	})

	h.scene, h.engine = s, engine
	h.logger.Debug("scene initialized", "width", size.Width, "height", size.Height)
	return nil
}

func (h *Host) Initialized() bool { return h.scene != nil }

// Scene is nil until Initialize succeeds.
func (h *Host) Scene() *scene.Scene { return h.scene }

func (h *Host) Camera() *scene.Camera {
	if h.scene == nil {
		return nil
	}
	return h.scene.Camera
}

// Resize matches the camera aspect and the output size to size. It is
// idempotent and ignored before Initialize.
func (h *Host) Resize(size core.Size, pixelRatio float32) {
	if h.scene == nil || !size.Valid() {
		return
	}
	h.scene.Camera.UpdateAspectRatio(float32(size.Width), float32(size.Height))
	h.engine.SetSize(size, pixelRatio)
}

// SetFocus swaps the focus object and releases the GPU copy of the previous one.
func (h *Host) SetFocus(f scene.FocusObject) {
	if h.scene == nil {
		return
	}
	prev := h.scene.SetFocus(f)
	if prev.Kind() != scene.FocusNone {
		h.engine.ReleaseTree(prev.Node())
		if prev.Kind() == scene.FocusPlaceholder {
			h.logger.Info("Placeholder cube removed.")
		}
	}
}

// Draw renders one frame. It does nothing before Initialize.
func (h *Host) Draw() error {
	if h.scene == nil {
		return nil
	}
	return h.engine.Render(h.scene)
}

// Teardown detaches the focus object and releases every GPU resource.
func (h *Host) Teardown() error {
	if h.scene == nil {
		return nil
	}
	var err error
	if prev := h.scene.ClearFocus(); prev.Kind() != scene.FocusNone {
		h.engine.ReleaseTree(prev.Node())
	}
	err = multierr.Append(err, h.engine.Destroy())
	h.scene, h.engine = nil, nil
	return err
}

// Resident is the number of meshes the renderer still holds.
func (h *Host) Resident() int {
	if h.engine == nil {
		return 0
	}
	return h.engine.Resident()
}
