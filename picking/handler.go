package picking

import (
	"github.com/charmbracelet/log"

	"metal-duck/core"
	"metal-duck/logging"
	"metal-duck/scene"
)

// Target reports what a pointer may interact with at the moment of the event.
type Target interface {
	// Interactive is false until the model is ready.
	Interactive() bool
	Focus() scene.FocusObject
	Camera() *scene.Camera
}

// Handler validates pointer events and forwards hits to a single interaction
// callback.
type Handler struct {
	target     Target
	onInteract func()
	logger     *log.Logger
	bounds     core.Rect
}

func NewHandler(target Target, onInteract func(), logger *log.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{target: target, onInteract: onInteract, logger: logger}
}

// SetBounds records the canvas rectangle in client coordinates.
func (h *Handler) SetBounds(r core.Rect) {
	h.bounds = r
}

func (h *Handler) Bounds() core.Rect {
	return h.bounds
}

// OnPointerEvent reports whether ev hit the interactive object and, when it
// did, calls onInteract exactly once.
func (h *Handler) OnPointerEvent(ev core.PointerEvent) bool {
	if ev.Button != core.MouseLeft || !h.target.Interactive() {
		return false
	}
	focus := h.target.Focus()
	if focus.Kind() != scene.FocusReal {
		return false
	}
	if h.bounds.Width <= 0 || h.bounds.Height <= 0 || !h.bounds.Contains(ev.X, ev.Y) {
		return false
	}
	cam := h.target.Camera()
	if cam == nil {
		return false
	}

	ray := ScreenToRay(ToNDC(ev.X, ev.Y, h.bounds), cam)
	hit := Raycast(ray, focus.Node())
	if !hit.Hit {
		return false
	}
	h.logger.Debug("object hit", "mesh", hit.Node.Name, "distance", hit.Distance)
	if h.onInteract != nil {
		h.onInteract()
	}
	return true
}
