package stage

import (
	"context"
	"fmt"
	"math"
	"path"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"

	"metal-duck/anim"
	"metal-duck/assets"
	"metal-duck/audio"
	"metal-duck/config"
	"metal-duck/core"
	"metal-duck/logging"
	"metal-duck/picking"
	"metal-duck/scene"
)

const (
	msgInitializing = "Initializing 3D scene..."
	msgSounds       = "Loading sounds..."
	msgProcessing   = "Processing 3D model..."
	msgModelFailed  = "Error loading model. Showing placeholder."
	msgAudioMuted   = "Audio is unavailable. Continuing without sound."
	msgSoundsFailed = "Some sounds failed to load."
)

// inboxSize bounds queued loader events; progress updates beyond it are dropped.
const inboxSize = 64

// Controller is the per-mount state of the scene: it routes pointer events,
// owns the click count and applies load completions. Apart from ClickCount,
// IsLoading, LoadingMessage and LoadState, its methods must be called from
// the render loop goroutine.
type Controller struct {
	cfg      config.Config
	logger   *log.Logger
	notifier Notifier

	host    *Host
	arbiter *anim.Arbiter
	trigger *audio.Trigger
	plan    audio.Plan
	picker  *picking.Handler
	loader  *assets.Loader

	ctx        context.Context
	inbox      chan func()
	model      <-chan assets.Result[*scene.Model]
	pixelRatio float32
	disposed   bool

	mu         sync.Mutex
	state      assets.StateTracker
	message    string
	clickCount uint64

	audioWG     sync.WaitGroup
	audioMuted  bool
	soundsReady bool
}

func newController(ctx context.Context, cfg config.Config, d Deps, host *Host) *Controller {
	c := &Controller{
		cfg:      cfg,
		logger:   d.Logger,
		notifier: d.Notifier,
		host:     host,
		loader:   d.Loader,
		plan:     audio.PlanFromConfig(cfg.Audio),
		ctx:      ctx,
		inbox:    make(chan func(), inboxSize),
		message:  msgInitializing,
	}
	c.arbiter = anim.New(d.Clock, anim.Fallback{
		Duration:  cfg.Fallback.Duration.Duration,
		Frequency: cfg.Fallback.Frequency,
		Amplitude: cfg.Fallback.Amplitude,
	}, logging.Named(d.Logger, "anim"))

	sources := make([]audio.Source, 0, len(cfg.Audio.Cues))
	for _, cue := range cfg.Audio.Cues {
		sources = append(sources, audio.Source{Name: cue.Name, URL: cue.URL})
	}
	c.trigger = audio.NewTrigger(d.Device, d.Clock, logging.Named(d.Logger, "audio"), sources...)
	c.picker = picking.NewHandler(c, c.onInteract, logging.Named(d.Logger, "picking"))
	return c
}

// startLoads kicks off sound and model loading concurrently.
func (c *Controller) startLoads() {
	c.setMessage(msgSounds)

	go func() {
		err := c.trigger.Load(c.ctx, c.loader)
		c.post(func() { c.soundsLoaded(err) }, false)
	}()

	c.model = c.loader.LoadModelAsync(c.ctx, c.cfg.Model.URL, assets.ModelObserver{
		OnProgress: func(p assets.Progress) {
			c.post(func() { c.modelProgress(p) }, false)
		},
		OnProcessing: func() {
			c.post(func() { c.modelProgress(assets.Progress{Loaded: 1, Total: 1}) }, false)
		},
	})
}

// post queues fn for the loop goroutine. Lossy posts are dropped when the
// inbox is full; others wait until the mount is cancelled.
func (c *Controller) post(fn func(), lossy bool) {
	if lossy {
		select {
		case c.inbox <- fn:
		default:
		}
		return
	}
	select {
	case c.inbox <- fn:
	case <-c.ctx.Done():
	}
}

func (c *Controller) soundsLoaded(err error) {
	c.soundsReady = true
	if err != nil {
		c.logger.Warn("sound loading incomplete", "err", err, "pending", c.trigger.Pending())
		c.notifier.Notify(msgSoundsFailed)
	} else {
		c.logger.Info("sounds loaded")
	}
	if st := c.LoadState(); st.Phase == assets.PhaseInitializing {
		c.setMessage(c.modelMessage())
	}
}

func (c *Controller) modelMessage() string {
	return fmt.Sprintf("Loading 3D model (%s)...", path.Base(c.cfg.Model.URL))
}

func (c *Controller) modelProgress(p assets.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.State().Terminal() {
		return
	}
	_ = c.state.Loading(p)
	st := c.state.State()
	switch {
	case !st.PercentKnown:
		c.message = c.modelMessage()
	case st.Percent < 100:
		c.message = fmt.Sprintf("Loading 3D model: %d%%", int(math.Round(st.Percent)))
	default:
		c.message = msgProcessing
	}
}

func (c *Controller) applyModel(res assets.Result[*scene.Model]) {
	if c.disposed {
		return
	}
	if res.Err != nil {
		c.mu.Lock()
		_ = c.state.Failed()
		c.message = msgModelFailed
		c.mu.Unlock()

		c.logger.Error("model load failed", "err", res.Err)
		pc := c.cfg.Model.Placeholder
		cube := assets.NewPlaceholder(assets.PlaceholderSpec{
			Size:     pc.Size,
			Color:    core.ColorFromHex(pc.Color),
			Position: mgl32.Vec3(pc.Position),
		})
		c.arbiter.Unbind()
		c.host.SetFocus(scene.PlaceholderFocus(cube))
		c.notifier.Notify(msgModelFailed)
		return
	}

	model := res.Value
	anims := scene.NewAnimationSet(model.Clips, c.cfg.Model.ClipPriority)
	focus := scene.RealFocus(model.Root, anims)
	c.host.SetFocus(focus)
	c.arbiter.Bind(focus)

	c.mu.Lock()
	_ = c.state.Ready()
	c.message = ""
	c.mu.Unlock()
	c.logger.Info("model ready", "clips", len(model.Clips))
}

// pump applies every queued loader event, then the model result if it has
// arrived.
func (c *Controller) pump() {
	for drained := false; !drained; {
		select {
		case fn := <-c.inbox:
			fn()
		default:
			drained = true
		}
	}
	if c.model == nil {
		return
	}
	select {
	case res := <-c.model:
		c.model = nil
		c.applyModel(res)
	default:
	}
}

// Frame advances animation by dt and draws. It tolerates an uninitialized host.
func (c *Controller) Frame(dt time.Duration) error {
	if c.disposed {
		return nil
	}
	c.pump()
	c.arbiter.Tick(dt)
	return c.host.Draw()
}

// HandlePointer reports whether ev hit the loaded model.
func (c *Controller) HandlePointer(ev core.PointerEvent) bool {
	if c.disposed {
		return false
	}
	return c.picker.OnPointerEvent(ev)
}

// Resize is safe before the scene exists.
func (c *Controller) Resize(size core.Size) {
	if c.disposed {
		return
	}
	c.host.Resize(size, c.pixelRatio)
}

func (c *Controller) setBounds(r core.Rect) {
	c.picker.SetBounds(r)
}

// onInteract is the single entry point for a validated hit.
func (c *Controller) onInteract() {
	c.mu.Lock()
	c.clickCount++
	n := c.clickCount
	c.mu.Unlock()
	c.logger.Info("duck clicked", "count", n)

	c.arbiter.Trigger()
	c.playCues(c.plan.ForInteraction(n))
}

// playCues primes the audio context off the loop goroutine and then fires seq.
func (c *Controller) playCues(seq audio.Sequence) {
	if len(seq) == 0 {
		return
	}
	c.audioWG.Add(1)
	go func() {
		defer c.audioWG.Done()
		if err := c.trigger.PrimeContext(c.ctx); err != nil {
			if c.ctx.Err() == nil {
				c.post(c.muteAudio(err), true)
			}
			return
		}
		c.trigger.PlaySequence(seq)
	}()
}

func (c *Controller) muteAudio(err error) func() {
	return func() {
		if c.audioMuted {
			return
		}
		c.audioMuted = true
		c.logger.Warn("audio context unavailable", "err", err)
		c.notifier.Notify(msgAudioMuted)
	}
}

// Interactive implements picking.Target.
func (c *Controller) Interactive() bool {
	return !c.disposed && c.LoadState().Phase == assets.PhaseReady
}

func (c *Controller) Focus() scene.FocusObject {
	if s := c.host.Scene(); s != nil {
		return s.Focus()
	}
	return scene.FocusObject{}
}

func (c *Controller) Camera() *scene.Camera {
	return c.host.Camera()
}

// Arbiter exposes the animation state, mainly for status displays.
func (c *Controller) Arbiter() *anim.Arbiter {
	return c.arbiter
}

func (c *Controller) ClickCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clickCount
}

// IsLoading is true until the model attempt settles either way.
func (c *Controller) IsLoading() bool {
	return !c.LoadState().Terminal()
}

// LoadingMessage is empty once the model is ready.
func (c *Controller) LoadingMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

func (c *Controller) LoadState() assets.LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.State()
}

func (c *Controller) setMessage(msg string) {
	c.mu.Lock()
	c.message = msg
	c.mu.Unlock()
}

// dispose stops the controller from touching the scene again and releases
// the audio resources.
func (c *Controller) dispose() error {
	c.disposed = true
	c.arbiter.Unbind()
	err := c.trigger.Close()
	c.audioWG.Wait()
	return err
}
