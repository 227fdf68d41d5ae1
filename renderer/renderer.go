// Package renderer tracks which meshes are resident on the GPU and drives a
// Backend once per frame. It holds no cgo state itself so it can be exercised
// without a graphics context.
package renderer

import (
	"fmt"

	"github.com/charmbracelet/log"

	"metal-duck/core"
	"metal-duck/logging"
	"metal-duck/scene"
)

// Backend is a graphics API implementation. All methods run on the thread
// that owns the graphics context.
type Backend interface {
	Init(width, height int) error
	SetViewport(width, height int)
	Upload(mesh *scene.Mesh) error
	Release(mesh *scene.Mesh)
	// Draw renders every visible, resident mesh of s from s.Camera.
	Draw(s *scene.Scene) error
	Destroy() error
}

// RenderEngine is the high-level renderer that drives a Backend.
type RenderEngine struct {
	backend    Backend
	logger     *log.Logger
	resident   map[*scene.Mesh]struct{}
	rejected   map[*scene.Mesh]struct{} // uploads the backend refused
	size       core.Size
	pixelRatio float32
	destroyed  bool

	// Per-frame stats (populated during Render)
	lastObjects   int
	lastTriangles int
}

// NewRenderEngine initializes backend at size*pixelRatio. A backend that cannot
// start is reported as *core.UnsupportedEnvironmentError.
func NewRenderEngine(backend Backend, size core.Size, pixelRatio float32, logger *log.Logger) (*RenderEngine, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if pixelRatio <= 0 {
		pixelRatio = 1
	}
	re := &RenderEngine{
		backend:    backend,
		logger:     logger,
		resident:   make(map[*scene.Mesh]struct{}),
		rejected:   make(map[*scene.Mesh]struct{}),
		size:       size,
		pixelRatio: pixelRatio,
	}
	w, h := re.outputSize()
	if err := backend.Init(w, h); err != nil {
		return nil, &core.UnsupportedEnvironmentError{Reason: "renderer backend", Err: err}
	}
	backend.SetViewport(w, h)
	logger.Debug("render engine initialized", "width", w, "height", h)
	return re, nil
}

func (re *RenderEngine) outputSize() (int, int) {
	return int(float32(re.size.Width) * re.pixelRatio), int(float32(re.size.Height) * re.pixelRatio)
}

// SetSize matches the output to a new viewport size. Degenerate sizes are ignored.
func (re *RenderEngine) SetSize(size core.Size, pixelRatio float32) {
	if re.destroyed || !size.Valid() {
		return
	}
	re.size = size
	if pixelRatio > 0 {
		re.pixelRatio = pixelRatio
	}
	re.backend.SetViewport(re.outputSize())
}

// Size is the logical viewport size.
func (re *RenderEngine) Size() core.Size {
	return re.size
}

// Render uploads any new meshes reachable from s.Root and issues one draw.
// A mesh the backend refuses is logged once and left out of later frames.
func (re *RenderEngine) Render(s *scene.Scene) error {
	if re.destroyed {
		return nil
	}
	if s == nil || s.Camera == nil {
		return fmt.Errorf("no scene or camera")
	}
	re.lastObjects, re.lastTriangles = 0, 0
	for _, node := range s.GetVisibleNodes() {
		if !re.upload(node.Mesh) {
			continue
		}
		re.lastObjects++
		re.lastTriangles += node.Mesh.TriangleCount()
	}
	return re.backend.Draw(s)
}

func (re *RenderEngine) upload(m *scene.Mesh) bool {
	if _, ok := re.resident[m]; ok {
		return true
	}
	if _, ok := re.rejected[m]; ok {
		return false
	}
	if err := re.backend.Upload(m); err != nil {
		re.logger.Warn("skipping mesh", "mesh", m.Name, "err", err)
		re.rejected[m] = struct{}{}
		return false
	}
	re.resident[m] = struct{}{}
	return true
}

// ReleaseTree frees the GPU copy of every mesh under root.
func (re *RenderEngine) ReleaseTree(root *scene.Node) {
	if root == nil || re.destroyed {
		return
	}
	root.Traverse(func(n *scene.Node) {
		if n.Mesh == nil {
			return
		}
		if _, ok := re.resident[n.Mesh]; ok {
			re.backend.Release(n.Mesh)
			delete(re.resident, n.Mesh)
		}
		delete(re.rejected, n.Mesh)
	})
}

// Resident is the number of meshes currently held by the backend.
func (re *RenderEngine) Resident() int {
	return len(re.resident)
}

// Stats returns object and triangle counts of the last Render.
func (re *RenderEngine) Stats() (objects, triangles int) {
	return re.lastObjects, re.lastTriangles
}

// Destroy releases every resident mesh and the backend. It is idempotent.
func (re *RenderEngine) Destroy() error {
	if re.destroyed {
		return nil
	}
	re.destroyed = true
	for m := range re.resident {
		re.backend.Release(m)
	}
	n := len(re.resident)
	re.resident = map[*scene.Mesh]struct{}{}
	re.rejected = map[*scene.Mesh]struct{}{}
	err := re.backend.Destroy()
	re.logger.Debug("render engine destroyed", "released", n)
	return err
}
