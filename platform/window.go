// Package platform provides the desktop mount point: a GLFW window with an
// OpenGL 4.1 core context that doubles as the frame scheduler.
package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/bep/debounce"
	"github.com/go-gl/glfw/v3.3/glfw"

	"metal-duck/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// ErrClosed is returned by Next once the user closed the window.
var ErrClosed = errors.New("platform: window closed")

type WindowConfig struct {
	Width          int
	Height         int
	Title          string
	VSync          bool
	ResizeDebounce time.Duration
}

// Window implements stage.Container and loop.Scheduler. All methods must be
// called from the main goroutine.
type Window struct {
	Handle *glfw.Window

	resized   chan core.Size
	debounced func(func())

	onResize  func(core.Size)
	onPointer func(core.PointerEvent)
}

func NewWindow(cfg WindowConfig) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, &core.UnsupportedEnvironmentError{Reason: "glfw init", Err: err}
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	handle, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, &core.UnsupportedEnvironmentError{Reason: "create window", Err: err}
	}
	handle.MakeContextCurrent()
	if cfg.VSync {
		glfw.SwapInterval(1)
	}

	w := &Window{
		Handle:    handle,
		resized:   make(chan core.Size, 1),
		debounced: debounce.New(cfg.ResizeDebounce),
	}

	// the debounced func runs on a timer goroutine; hand the size back to
	// the main goroutine through a one-slot channel that keeps the latest
	handle.SetSizeCallback(func(_ *glfw.Window, width, height int) {
		size := core.Size{Width: width, Height: height}
		w.debounced(func() {
			select {
			case <-w.resized:
			default:
			}
			w.resized <- size
		})
	})
	handle.SetMouseButtonCallback(func(win *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press || w.onPointer == nil {
			return
		}
		x, y := win.GetCursorPos()
		w.onPointer(core.PointerEvent{X: float32(x), Y: float32(y), Button: mouseButton(button)})
	})
	handle.SetKeyCallback(func(win *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			win.SetShouldClose(true)
		}
	})
	return w, nil
}

func mouseButton(b glfw.MouseButton) core.MouseButton {
	switch b {
	case glfw.MouseButtonRight:
		return core.MouseRight
	case glfw.MouseButtonMiddle:
		return core.MouseMiddle
	default:
		return core.MouseLeft
	}
}

// Size is the window size in screen coordinates.
func (w *Window) Size() core.Size {
	width, height := w.Handle.GetSize()
	return core.Size{Width: width, Height: height}
}

// Bounds is the canvas rectangle. The canvas fills the client area.
func (w *Window) Bounds() core.Rect {
	s := w.Size()
	return core.Rect{Width: float32(s.Width), Height: float32(s.Height)}
}

func (w *Window) PixelRatio() float32 {
	width, _ := w.Handle.GetSize()
	fbw, _ := w.Handle.GetFramebufferSize()
	if width <= 0 || fbw <= 0 {
		return 1
	}
	return float32(fbw) / float32(width)
}

func (w *Window) OnResize(fn func(core.Size)) func() {
	w.onResize = fn
	return func() { w.onResize = nil }
}

func (w *Window) OnPointer(fn func(core.PointerEvent)) func() {
	w.onPointer = fn
	return func() { w.onPointer = nil }
}

// Release drops every listener. The window stays open until Destroy.
func (w *Window) Release() error {
	w.onResize, w.onPointer = nil, nil
	return nil
}

// Next presents the finished frame, waits for vsync and dispatches input.
func (w *Window) Next(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.Handle.SwapBuffers()
	glfw.PollEvents()

	select {
	case size := <-w.resized:
		if w.onResize != nil && size.Valid() {
			w.onResize(size)
		}
	default:
	}
	if w.Handle.ShouldClose() {
		return ErrClosed
	}
	return ctx.Err()
}

func (w *Window) SetTitle(title string) {
	w.Handle.SetTitle(title)
}

func (w *Window) String() string {
	s := w.Size()
	return fmt.Sprintf("window %dx%d", s.Width, s.Height)
}

// Destroy closes the window and terminates GLFW.
func (w *Window) Destroy() {
	w.Handle.Destroy()
	glfw.Terminate()
}
