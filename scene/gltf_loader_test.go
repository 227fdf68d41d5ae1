package scene

import (
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.viam.com/test"
)

// triangleDoc builds a one-triangle document with the named rotation clips.
func triangleDoc(clipNames ...string) *gltf.Document {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})

	prim := &gltf.Primitive{Indices: gltf.Index(idx)}
	prim.Attributes = map[string]int{gltf.POSITION: pos}
	doc.Meshes = []*gltf.Mesh{{Name: "duck", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: "body", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = []int{0}

	q := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	for _, name := range clipNames {
		in := modeler.WriteAccessor(doc, gltf.TargetNone, []float32{0, 1})
		out := modeler.WriteAccessor(doc, gltf.TargetNone, [][4]float32{{0, 0, 0, 1}, {q.V[0], q.V[1], q.V[2], q.W}})
		doc.Animations = append(doc.Animations, &gltf.Animation{
			Name:     name,
			Samplers: []*gltf.AnimationSampler{{Input: in, Output: out}},
			Channels: []*gltf.AnimationChannel{{
				Sampler: 0,
				Target:  gltf.AnimationChannelTarget{Node: gltf.Index(0), Path: gltf.TRSRotation},
			}},
		})
	}
	return doc
}

func TestBuildModel(t *testing.T) {
	model, err := BuildModel(triangleDoc(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(model.Meshes), test.ShouldEqual, 1)
	test.That(t, len(model.Clips), test.ShouldEqual, 0)

	body := model.Root.Find("body")
	test.That(t, body, test.ShouldNotBeNil)
	test.That(t, body.Mesh.TriangleCount(), test.ShouldEqual, 1)
	test.That(t, body.Mesh.LocalAABB.Max, test.ShouldResemble, mgl32.Vec3{1, 1, 0})
}

func TestBuildModelClips(t *testing.T) {
	model, err := BuildModel(triangleDoc("idle", "guitar_play", "animation_0"), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(model.Clips), test.ShouldEqual, 3)

	set := NewAnimationSet(model.Clips, duckPriority)
	test.That(t, set.Primary.Name, test.ShouldEqual, "guitar_play")
	test.That(t, set.Primary.Duration, test.ShouldEqual, float32(1))
	test.That(t, set.Primary.Channels[0].Target, test.ShouldEqual, model.Root.Find("body"))

	mixer := NewMixer()
	action := mixer.ClipAction(set.Primary)
	action.Loop = LoopOnce
	action.ClampWhenFinished = true
	action.Reset().Play()
	mixer.Update(10)
	want := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	test.That(t, model.Root.Find("body").Transform.Rotation.ApproxEqualThreshold(want, 1e-5), test.ShouldBeTrue)
}

func TestBuildModelUnnamedClip(t *testing.T) {
	model, err := BuildModel(triangleDoc(""), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Clips[0].Name, test.ShouldEqual, "animation_0")
}

func TestBuildModelEmptyDocument(t *testing.T) {
	_, err := BuildModel(gltf.NewDocument(), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadGLTFMissingFile(t *testing.T) {
	_, err := LoadGLTF(filepath.Join(t.TempDir(), "duck.glb"), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadGLTFRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duck.glb")
	test.That(t, gltf.SaveBinary(triangleDoc("guitar_play"), path), test.ShouldBeNil)

	model, err := LoadGLTF(path, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(model.Meshes), test.ShouldEqual, 1)
	test.That(t, model.Clips[0].Name, test.ShouldEqual, "guitar_play")
}

func TestBuildModelAccessorOutOfRange(t *testing.T) {
	doc := triangleDoc()
	doc.Meshes[0].Primitives[0].Attributes[gltf.POSITION] = 7
	_, err := BuildModel(doc, nil)
	test.That(t, err, test.ShouldNotBeNil)

	doc = triangleDoc()
	doc.Meshes[0].Primitives[0].Indices = gltf.Index(9)
	_, err = BuildModel(doc, nil)
	test.That(t, err, test.ShouldNotBeNil)

	doc = triangleDoc()
	doc.Meshes[0].Primitives[0].Attributes[gltf.NORMAL] = 42
	model, err := BuildModel(doc, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Root.Find("body").Mesh.Vertices[0].Normal, test.ShouldResemble, mgl32.Vec3{0, 1, 0})
}

func TestBuildModelSkipsBadSampler(t *testing.T) {
	doc := triangleDoc("guitar_play", "idle")
	doc.Animations[0].Samplers[0].Input = 9
	doc.Animations[1].Samplers[0].Output = -1
	model, err := BuildModel(doc, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(model.Clips), test.ShouldEqual, 0)
	test.That(t, len(model.Meshes), test.ShouldEqual, 1)
}

func TestBuildModelSkipsEmptyPrimitive(t *testing.T) {
	doc := triangleDoc()
	doc.Accessors = append(doc.Accessors, &gltf.Accessor{
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
	})
	empty := &gltf.Primitive{Attributes: map[string]int{gltf.POSITION: len(doc.Accessors) - 1}}
	doc.Meshes[0].Primitives = append(doc.Meshes[0].Primitives, empty)

	model, err := BuildModel(doc, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(model.Meshes), test.ShouldEqual, 1)
	test.That(t, model.Root.Find("body").Mesh, test.ShouldNotBeNil)
}

func TestBuildModelRejectsNodeCycle(t *testing.T) {
	doc := triangleDoc()
	doc.Nodes = append(doc.Nodes,
		&gltf.Node{Name: "wing", Children: []int{2}},
		&gltf.Node{Name: "tail", Children: []int{1}},
	)
	_, err := BuildModel(doc, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cycle")

	doc = triangleDoc()
	doc.Nodes[0].Children = []int{0}
	_, err = BuildModel(doc, nil)
	test.That(t, err, test.ShouldNotBeNil)
}
