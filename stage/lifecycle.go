// Package stage mounts the duck scene into a container and tears it down
// again. It ties the loader, scene host, animation, audio, picking and the
// render loop together.
package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"metal-duck/assets"
	"metal-duck/audio"
	"metal-duck/config"
	"metal-duck/core"
	"metal-duck/logging"
	"metal-duck/loop"
	"metal-duck/renderer"
)

// Container is the mount point: the surface the renderer draws into and the
// source of resize and pointer events.
type Container interface {
	// Bounds is the canvas rectangle in client coordinates.
	Bounds() core.Rect
	// PixelRatio is framebuffer pixels per logical pixel.
	PixelRatio() float32
	OnResize(fn func(core.Size)) (remove func())
	OnPointer(fn func(core.PointerEvent)) (remove func())
	// Release detaches the renderer output from the container.
	Release() error
}

// Deps are the collaborators a mount needs. Backend and Device are required.
type Deps struct {
	Backend  renderer.Backend
	Device   audio.Device
	Loader   *assets.Loader
	Clock    clock.Clock
	Logger   *log.Logger
	Notifier Notifier
}

var ErrAttached = errors.New("stage: already attached")

// Lifecycle owns everything created for one mount. Detach must run on the
// goroutine that drives the render loop, either from a frame or after Run
// returns.
type Lifecycle struct {
	cfg  config.Config
	deps Deps

	logger    *log.Logger
	session   uuid.UUID
	ctx       context.Context
	cancel    context.CancelFunc
	container Container
	removers  []func()

	host    *Host
	ctrl    *Controller
	mounted bool
}

func New(cfg config.Config, deps Deps) *Lifecycle {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Loader == nil {
		deps.Loader = assets.NewLoader(
			assets.WithFetcher(assets.NewFetcher(cfg.Fetch.Timeout.Duration)),
			assets.WithLogger(logging.Named(deps.Logger, "assets")),
		)
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{Logger: deps.Logger}
	}
	return &Lifecycle{cfg: cfg, deps: deps, logger: deps.Logger}
}

// Attach builds the scene inside container and starts loading. Only an
// unusable rendering environment is reported; asset failures degrade the
// scene instead.
func (l *Lifecycle) Attach(ctx context.Context, container Container, size core.Size) error {
	if l.mounted {
		return ErrAttached
	}
	switch {
	case container == nil:
		return &core.UnsupportedEnvironmentError{Reason: "no container"}
	case l.deps.Backend == nil:
		return &core.UnsupportedEnvironmentError{Reason: "no rendering backend"}
	case l.deps.Device == nil:
		return &core.UnsupportedEnvironmentError{Reason: "no audio device"}
	case !size.Valid():
		return &core.UnsupportedEnvironmentError{Reason: fmt.Sprintf("container size %dx%d", size.Width, size.Height)}
	}

	l.session = uuid.New()
	deps := l.deps
	deps.Logger = l.logger.With("session", l.session.String())

	mountCtx, cancel := context.WithCancel(ctx)
	host := NewHost(l.cfg, logging.Named(deps.Logger, "scene"))
	ctrl := newController(mountCtx, l.cfg, deps, host)
	ctrl.pixelRatio = container.PixelRatio()

	if err := host.Initialize(size, ctrl.pixelRatio, deps.Backend); err != nil {
		cancel()
		return multierr.Append(err, ctrl.dispose())
	}

	l.ctx, l.cancel = mountCtx, cancel
	l.container, l.host, l.ctrl = container, host, ctrl

	ctrl.setBounds(container.Bounds())
	ctrl.startLoads()

	l.removers = []func(){
		container.OnResize(func(s core.Size) {
			ctrl.setBounds(container.Bounds())
			ctrl.Resize(s)
		}),
		container.OnPointer(func(ev core.PointerEvent) {
			ctrl.HandlePointer(ev)
		}),
	}
	l.mounted = true
	deps.Logger.Info("scene attached", "width", size.Width, "height", size.Height)
	return nil
}

// Run drives frames until ctx is cancelled or the scene is detached.
func (l *Lifecycle) Run(ctx context.Context, sched loop.Scheduler) error {
	if !l.mounted {
		return errors.New("stage: not attached")
	}
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	unlink := context.AfterFunc(l.ctx, stop)
	defer unlink()

	driver := loop.NewDriver(l.deps.Clock, sched, l.ctrl, logging.Named(l.logger, "loop"))
	return driver.Run(runCtx)
}

// Detach removes the listeners, stops the loop and loads, and releases every
// GPU and audio resource. It is idempotent.
func (l *Lifecycle) Detach() error {
	if !l.mounted {
		return nil
	}
	l.mounted = false

	for _, remove := range l.removers {
		remove()
	}
	l.removers = nil
	l.cancel()

	var err error
	err = multierr.Append(err, l.ctrl.dispose())
	err = multierr.Append(err, l.host.Teardown())
	err = multierr.Append(err, l.container.Release())
	l.logger.Info("scene cleaned up", "session", l.session.String())
	return err
}

// Controller is nil before the first Attach. It stays readable after Detach.
func (l *Lifecycle) Controller() *Controller { return l.ctrl }

func (l *Lifecycle) Host() *Host { return l.host }

func (l *Lifecycle) Mounted() bool { return l.mounted }

// Session identifies the current or last mount.
func (l *Lifecycle) Session() uuid.UUID { return l.session }
