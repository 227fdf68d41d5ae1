package scene

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/samber/lo"
)

type TRSPath int

const (
	PathTranslation TRSPath = iota
	PathRotation
	PathScale
)

type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	InterpolationCubicSpline
)

// Channel animates one TRS property of one node. Values holds one entry per
// keyframe, or three (in-tangent, value, out-tangent) for cubic splines.
// Rotations are stored as x, y, z, w.
type Channel struct {
	Target        *Node
	Path          TRSPath
	Interpolation Interpolation
	Times         []float32
	Values        []mgl32.Vec4
}

func (c *Channel) value(k int) mgl32.Vec4 {
	if c.Interpolation == InterpolationCubicSpline {
		return c.Values[3*k+1]
	}
	return c.Values[k]
}

// Sample returns the channel value at time t, clamped to the keyframe range.
func (c *Channel) Sample(t float32) mgl32.Vec4 {
	n := len(c.Times)
	i := sort.Search(n, func(i int) bool { return c.Times[i] > t })
	switch {
	case i == 0:
		return c.value(0)
	case i == n:
		return c.value(n - 1)
	}
	k := i - 1
	if c.Interpolation == InterpolationStep {
		return c.value(k)
	}
	span := c.Times[i] - c.Times[k]
	alpha := float32(0)
	if span > 0 {
		alpha = (t - c.Times[k]) / span
	}
	a, b := c.value(k), c.value(i)
	if c.Path == PathRotation {
		q := mgl32.QuatSlerp(vecToQuat(a), vecToQuat(b), alpha)
		return mgl32.Vec4{q.V[0], q.V[1], q.V[2], q.W}
	}
	return a.Add(b.Sub(a).Mul(alpha))
}

func (c *Channel) apply(t float32) {
	if c.Target == nil || len(c.Times) == 0 {
		return
	}
	v := c.Sample(t)
	switch c.Path {
	case PathTranslation:
		c.Target.SetPosition(v.Vec3())
	case PathRotation:
		c.Target.SetRotation(vecToQuat(v).Normalize())
	case PathScale:
		c.Target.SetScale(v.Vec3())
	}
}

func vecToQuat(v mgl32.Vec4) mgl32.Quat {
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
}

// Clip is a named, pre-authored animation embedded in a model.
type Clip struct {
	Name     string
	Duration float32 // seconds
	Channels []*Channel
}

// NewClip computes Duration from the last keyframe of every channel.
func NewClip(name string, channels []*Channel) *Clip {
	c := &Clip{Name: name, Channels: channels}
	for _, ch := range channels {
		if n := len(ch.Times); n > 0 {
			c.Duration = max(c.Duration, ch.Times[n-1])
		}
	}
	return c
}

// AnimationSet holds every clip of a model and the one chosen for interaction.
type AnimationSet struct {
	Clips   []*Clip
	Primary *Clip
}

func NewAnimationSet(clips []*Clip, priority []string) *AnimationSet {
	return &AnimationSet{Clips: clips, Primary: SelectClip(clips, priority)}
}

// Empty reports whether there is no primary clip.
func (a *AnimationSet) Empty() bool {
	return a == nil || a.Primary == nil
}

// SelectClip picks the first exact name match in priority order, else the
// first clip in declaration order, else nil.
func SelectClip(clips []*Clip, priority []string) *Clip {
	for _, name := range priority {
		if c, ok := lo.Find(clips, func(c *Clip) bool { return c.Name == name }); ok {
			return c
		}
	}
	if len(clips) == 0 {
		return nil
	}
	return clips[0]
}

type LoopMode int

const (
	LoopOnce LoopMode = iota
	LoopRepeat
)

type restPose struct {
	node *Node
	tr   transformSnapshot
}

type transformSnapshot struct {
	pos, scale mgl32.Vec3
	rot        mgl32.Quat
}

// Action is the playback state of one clip inside a Mixer.
type Action struct {
	clip              *Clip
	Loop              LoopMode
	ClampWhenFinished bool

	time    float32
	running bool
	enabled bool
	rest    []restPose
}

func (a *Action) Clip() *Clip { return a.clip }

// Time is the local playback position in seconds.
func (a *Action) Time() float32 { return a.time }

func (a *Action) IsRunning() bool { return a.running }

// Reset rewinds to the first frame without starting playback.
func (a *Action) Reset() *Action {
	a.time = 0
	a.running = false
	return a
}

func (a *Action) Play() *Action {
	a.enabled = true
	a.running = true
	return a
}

// Stop halts playback and restores the pose captured when the action was created.
func (a *Action) Stop() {
	a.running = false
	a.enabled = false
	a.restore()
}

func (a *Action) restore() {
	for _, r := range a.rest {
		r.node.Transform.Position = r.tr.pos
		r.node.Transform.Rotation = r.tr.rot
		r.node.Transform.Scale = r.tr.scale
		r.node.MarkWorldMatrixDirty()
	}
}

func (a *Action) update(dt float32) {
	if !a.enabled {
		return
	}
	if a.running {
		a.time += dt
		dur := a.clip.Duration
		switch {
		case a.Loop == LoopRepeat && dur > 0:
			a.time = float32(math.Mod(float64(a.time), float64(dur)))
		case a.time >= dur:
			a.time = dur
			a.running = false
			if !a.ClampWhenFinished {
				a.enabled = false
				a.restore()
				return
			}
		}
	}
	for _, ch := range a.clip.Channels {
		ch.apply(a.time)
	}
}

// Mixer advances every action it created.
type Mixer struct {
	actions []*Action
}

func NewMixer() *Mixer {
	return &Mixer{}
}

// ClipAction returns the action for clip, creating it on first use.
func (m *Mixer) ClipAction(clip *Clip) *Action {
	if a, ok := lo.Find(m.actions, func(a *Action) bool { return a.clip == clip }); ok {
		return a
	}
	a := &Action{clip: clip, Loop: LoopRepeat}
	seen := map[*Node]bool{}
	for _, ch := range clip.Channels {
		if ch.Target == nil || seen[ch.Target] {
			continue
		}
		seen[ch.Target] = true
		tr := ch.Target.Transform
		a.rest = append(a.rest, restPose{node: ch.Target, tr: transformSnapshot{pos: tr.Position, rot: tr.Rotation, scale: tr.Scale}})
	}
	m.actions = append(m.actions, a)
	return a
}

// Update advances all actions by dt seconds.
func (m *Mixer) Update(dt float32) {
	for _, a := range m.actions {
		a.update(dt)
	}
}

// Stop halts every action and drops them.
func (m *Mixer) Stop() {
	for _, a := range m.actions {
		a.Stop()
	}
	m.actions = nil
}
