// Package anim decides how the focus object reacts to an interaction: the
// model's own clip when it has one, a short synthetic wiggle otherwise.
package anim

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"

	"metal-duck/logging"
	"metal-duck/scene"
)

type State int

const (
	Idle State = iota
	PlayingEmbedded
	PlayingFallback
)

func (s State) String() string {
	switch s {
	case PlayingEmbedded:
		return "playing-embedded"
	case PlayingFallback:
		return "playing-fallback"
	default:
		return "idle"
	}
}

// Fallback parameterizes the synthetic motion: yaw = sin(t*Frequency)*Amplitude
// for Duration.
type Fallback struct {
	Duration  time.Duration
	Frequency float32
	Amplitude float32
}

// Arbiter is the only writer of animation state. It is not safe for
// concurrent use; the render loop goroutine owns it.
type Arbiter struct {
	clock    clock.Clock
	fallback Fallback
	logger   *log.Logger

	target *scene.Node
	mixer  *scene.Mixer
	action *scene.Action

	embedded      bool
	fallbackStart time.Time
	fallbackOn    bool
	restPending   bool
}

func New(clk clock.Clock, fallback Fallback, logger *log.Logger) *Arbiter {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Arbiter{clock: clk, fallback: fallback, logger: logger}
}

// Bind attaches the arbiter to a real focus object. Placeholders and empty
// focus objects unbind it, since they are never interactive.
func (a *Arbiter) Bind(focus scene.FocusObject) {
	a.Unbind()
	if focus.Kind() != scene.FocusReal {
		return
	}
	a.target = focus.Node()
	anims := focus.Animations()
	if anims.Empty() {
		a.logger.Warn("Model has no animations. Click will use programmatic animation.")
		return
	}
	a.mixer = scene.NewMixer()
	a.action = a.mixer.ClipAction(anims.Primary)
	a.action.Loop = scene.LoopOnce
	a.action.ClampWhenFinished = true
	a.logger.Info("Using animation clip", "name", anims.Primary.Name)
}

// Unbind stops any clip, restores the rest pose and forgets the target.
func (a *Arbiter) Unbind() {
	if a.mixer != nil {
		a.mixer.Stop()
	}
	if a.target != nil && (a.fallbackOn || a.restPending) {
		a.target.SetRotation(mgl32.QuatIdent())
	}
	*a = Arbiter{clock: a.clock, fallback: a.fallback, logger: a.logger}
}

// HasMixer reports whether an embedded clip player is attached.
func (a *Arbiter) HasMixer() bool {
	return a.mixer != nil
}

// Action exposes the embedded clip action, nil without a clip.
func (a *Arbiter) Action() *scene.Action {
	return a.action
}

// Trigger reacts to one interaction and returns the resulting state. A trigger
// during a running fallback restarts its timer.
func (a *Arbiter) Trigger() State {
	if a.target == nil {
		return Idle
	}
	if a.action != nil {
		a.logger.Debug("Playing embedded animation.")
		a.action.Reset().Play()
		a.embedded = true
		return PlayingEmbedded
	}
	a.logger.Debug("Playing fallback programmatic animation.")
	a.fallbackStart = a.clock.Now()
	a.fallbackOn = true
	return PlayingFallback
}

// State resolves an expired fallback to Idle as a side effect.
func (a *Arbiter) State() State {
	if a.fallbackOn {
		if a.clock.Since(a.fallbackStart) < a.fallback.Duration {
			return PlayingFallback
		}
		a.fallbackOn = false
		a.restPending = true
	}
	if a.embedded {
		return PlayingEmbedded
	}
	return Idle
}

// Tick advances the clip player by dt and applies the fallback pose. The mixer
// is advanced whenever present, whatever the state.
func (a *Arbiter) Tick(dt time.Duration) {
	if a.mixer != nil {
		a.mixer.Update(float32(dt.Seconds()))
	}
	if a.target == nil {
		return
	}
	if a.State() == PlayingFallback {
		t := a.clock.Since(a.fallbackStart).Seconds()
		yaw := math.Sin(t*float64(a.fallback.Frequency)) * float64(a.fallback.Amplitude)
		a.target.SetYaw(float32(yaw))
		return
	}
	if a.restPending {
		a.target.SetRotation(mgl32.QuatIdent())
		a.restPending = false
	}
}
