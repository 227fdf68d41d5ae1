package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.viam.com/test"
)

var duckPriority = []string{"guitar_play", "animation_0"}

func clips(names ...string) []*Clip {
	out := make([]*Clip, len(names))
	for i, n := range names {
		out[i] = NewClip(n, nil)
	}
	return out
}

func TestSelectClipPriority(t *testing.T) {
	cs := clips("idle", "guitar_play", "animation_0")
	test.That(t, SelectClip(cs, duckPriority).Name, test.ShouldEqual, "guitar_play")

	cs = clips("idle", "animation_0", "wave")
	test.That(t, SelectClip(cs, duckPriority).Name, test.ShouldEqual, "animation_0")

	cs = clips("idle", "wave")
	test.That(t, SelectClip(cs, duckPriority).Name, test.ShouldEqual, "idle")

	test.That(t, SelectClip(nil, duckPriority), test.ShouldBeNil)
	test.That(t, NewAnimationSet(nil, duckPriority).Empty(), test.ShouldBeTrue)
}

func TestSelectClipExactMatch(t *testing.T) {
	cs := clips("Guitar_Play", "guitar_play_loop")
	test.That(t, SelectClip(cs, duckPriority).Name, test.ShouldEqual, "Guitar_Play")
}

func translationClip(node *Node) *Clip {
	return NewClip("slide", []*Channel{{
		Target: node,
		Path:   PathTranslation,
		Times:  []float32{0, 1},
		Values: []mgl32.Vec4{{0, 0, 0, 0}, {2, 0, 0, 0}},
	}})
}

func TestChannelSample(t *testing.T) {
	ch := translationClip(nil).Channels[0]
	test.That(t, ch.Sample(-1), test.ShouldResemble, mgl32.Vec4{0, 0, 0, 0})
	test.That(t, ch.Sample(0.5).ApproxEqual(mgl32.Vec4{1, 0, 0, 0}), test.ShouldBeTrue)
	test.That(t, ch.Sample(5), test.ShouldResemble, mgl32.Vec4{2, 0, 0, 0})

	ch.Interpolation = InterpolationStep
	test.That(t, ch.Sample(0.9), test.ShouldResemble, mgl32.Vec4{0, 0, 0, 0})
}

func TestChannelSampleRotationSlerp(t *testing.T) {
	q := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	ch := &Channel{
		Path:   PathRotation,
		Times:  []float32{0, 1},
		Values: []mgl32.Vec4{{0, 0, 0, 1}, {q.V[0], q.V[1], q.V[2], q.W}},
	}
	half := vecToQuat(ch.Sample(0.5))
	want := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0})
	test.That(t, half.ApproxEqualThreshold(want, 1e-5), test.ShouldBeTrue)
}

func TestActionLoopOnceClamps(t *testing.T) {
	node := NewNode("body")
	mixer := NewMixer()
	action := mixer.ClipAction(translationClip(node))
	action.Loop = LoopOnce
	action.ClampWhenFinished = true
	test.That(t, mixer.ClipAction(action.Clip()), test.ShouldEqual, action)

	action.Reset().Play()
	mixer.Update(0.25)
	test.That(t, node.Transform.Position.ApproxEqual(mgl32.Vec3{0.5, 0, 0}), test.ShouldBeTrue)
	test.That(t, action.IsRunning(), test.ShouldBeTrue)

	mixer.Update(2)
	test.That(t, action.IsRunning(), test.ShouldBeFalse)
	test.That(t, action.Time(), test.ShouldEqual, float32(1))
	test.That(t, node.Transform.Position, test.ShouldResemble, mgl32.Vec3{2, 0, 0})

	// holds the last pose
	mixer.Update(1)
	test.That(t, node.Transform.Position, test.ShouldResemble, mgl32.Vec3{2, 0, 0})

	// replay from the start
	action.Reset().Play()
	mixer.Update(0)
	test.That(t, node.Transform.Position, test.ShouldResemble, mgl32.Vec3{0, 0, 0})
}

func TestActionWithoutClampRestoresRest(t *testing.T) {
	node := NewNode("body")
	node.SetPosition(mgl32.Vec3{0, 7, 0})
	mixer := NewMixer()
	action := mixer.ClipAction(translationClip(node))
	action.Loop = LoopOnce

	action.Reset().Play()
	mixer.Update(0.5)
	test.That(t, node.Transform.Position.ApproxEqual(mgl32.Vec3{1, 0, 0}), test.ShouldBeTrue)
	mixer.Update(1)
	test.That(t, node.Transform.Position, test.ShouldResemble, mgl32.Vec3{0, 7, 0})
}

func TestActionLoopRepeat(t *testing.T) {
	node := NewNode("body")
	mixer := NewMixer()
	action := mixer.ClipAction(translationClip(node))
	action.Play()
	mixer.Update(1.5)
	test.That(t, action.IsRunning(), test.ShouldBeTrue)
	test.That(t, action.Time(), test.ShouldAlmostEqual, 0.5, 1e-6)
}
