package assets

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.viam.com/test"

	"metal-duck/core"
	"metal-duck/scene"
)

func writeDuck(t *testing.T) string {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{-1, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	prim := &gltf.Primitive{}
	prim.Attributes = map[string]int{gltf.POSITION: pos}
	doc.Meshes = []*gltf.Mesh{{Name: "duck", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{
		{Name: "armature", Children: []int{1}},
		{Name: "body", Mesh: gltf.Index(0)},
	}
	doc.Scenes[0].Nodes = []int{0}

	path := filepath.Join(t.TempDir(), "duck.glb")
	test.That(t, gltf.SaveBinary(doc, path), test.ShouldBeNil)
	return path
}

func TestLoadModelFromDisk(t *testing.T) {
	path := writeDuck(t)
	var (
		mu         sync.Mutex
		progress   []Progress
		processing bool
	)
	obs := ModelObserver{
		OnProgress: func(p Progress) {
			mu.Lock()
			defer mu.Unlock()
			progress = append(progress, p)
		},
		OnProcessing: func() { processing = true },
	}

	model, err := NewLoader().LoadModel(context.Background(), path, obs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, processing, test.ShouldBeTrue)
	test.That(t, len(progress), test.ShouldBeGreaterThan, 0)
	last, _ := progress[len(progress)-1].Percent()
	test.That(t, last, test.ShouldEqual, 100.0)

	body := model.Root.Find("body")
	test.That(t, body.CastShadow, test.ShouldBeTrue)
	test.That(t, body.ReceiveShadow, test.ShouldBeTrue)
	// nodes without geometry are left alone
	test.That(t, model.Root.Find("armature").CastShadow, test.ShouldBeFalse)
	test.That(t, model.Root.Transform.Scale, test.ShouldResemble, mgl32.Vec3{1, 1, 1})
}

func TestLoadModelOverHTTP(t *testing.T) {
	data, err := os.ReadFile(writeDuck(t))
	test.That(t, err, test.ShouldBeNil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	var pcts []float64
	obs := ModelObserver{OnProgress: func(p Progress) {
		pct, _ := p.Percent()
		pcts = append(pcts, pct)
	}}
	model, err := NewLoader(WithFetcher(NewFetcher(0))).LoadModel(context.Background(), srv.URL+"/duck.glb", obs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(model.Meshes), test.ShouldEqual, 1)
	test.That(t, pcts[len(pcts)-1], test.ShouldEqual, 100.0)
}

func TestLoadModelHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewLoader().LoadModel(context.Background(), srv.URL+"/duck.glb", ModelObserver{})
	var ae *core.AssetLoadError
	test.That(t, errors.As(err, &ae), test.ShouldBeTrue)
	test.That(t, ae.Asset, test.ShouldEqual, "model")
	test.That(t, err.Error(), test.ShouldContainSubstring, "HTTP 404")
}

func TestLoadModelMissingFile(t *testing.T) {
	url := filepath.Join(t.TempDir(), "duck.glb")
	res := <-NewLoader().LoadModelAsync(context.Background(), url, ModelObserver{})
	test.That(t, res.Value, test.ShouldBeNil)
	var ae *core.AssetLoadError
	test.That(t, errors.As(res.Err, &ae), test.ShouldBeTrue)
	test.That(t, errors.Is(res.Err, os.ErrNotExist), test.ShouldBeTrue)
}

func TestLoadModelCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duck.glb")
	test.That(t, os.WriteFile(path, []byte("not a model"), 0o644), test.ShouldBeNil)
	_, err := NewLoader().LoadModel(context.Background(), path, ModelObserver{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadModelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader().LoadModel(ctx, writeDuck(t), ModelObserver{})
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

type fakeSound struct{ name string }

func (s *fakeSound) Play() error  { return nil }
func (s *fakeSound) Close() error { return nil }

type fakeDecoder struct{ err error }

func (d fakeDecoder) DecodeSound(name string, data []byte) (SoundHandle, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &fakeSound{name: name}, nil
}

func TestLoadAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cuack.mp3")
	test.That(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644), test.ShouldBeNil)

	h, err := NewLoader().LoadAudio(context.Background(), "primary", path, fakeDecoder{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.(*fakeSound).name, test.ShouldEqual, "primary")

	_, err = NewLoader().LoadAudio(context.Background(), "primary", path, fakeDecoder{err: errors.New("bad frame")})
	var ae *core.AssetLoadError
	test.That(t, errors.As(err, &ae), test.ShouldBeTrue)
	test.That(t, ae.Asset, test.ShouldEqual, "audio")
}

func TestNewPlaceholderDeterministic(t *testing.T) {
	spec := PlaceholderSpec{Size: 1, Color: core.ColorDuck, Position: mgl32.Vec3{0, 0.5, 0}}
	a, b := NewPlaceholder(spec), NewPlaceholder(spec)
	test.That(t, a.Mesh.Vertices, test.ShouldResemble, b.Mesh.Vertices)
	test.That(t, a.Transform.Position, test.ShouldResemble, mgl32.Vec3{0, 0.5, 0})
	test.That(t, a.Mesh.Material.Albedo, test.ShouldResemble, core.ColorDuck)
}

func TestNormalizeShadows(t *testing.T) {
	root := scene.NewNode("root")
	a := scene.NewNode("a")
	a.Mesh = scene.CreateCube(1, core.ColorWhite)
	b := scene.NewNode("b")
	root.AddChild(a)
	a.AddChild(b)
	test.That(t, NormalizeShadows(root), test.ShouldEqual, 1)
	test.That(t, a.CastShadow && a.ReceiveShadow, test.ShouldBeTrue)
	test.That(t, b.CastShadow, test.ShouldBeFalse)
}

func TestLoadModelMalformedDocuments(t *testing.T) {
	docs := map[string]string{
		"bad position accessor": `{"nodes":[{"mesh":0}],"meshes":[{"primitives":[{"attributes":{"POSITION":7}}]}]}`,
		"node cycle":            `{"nodes":[{"children":[1]},{"children":[0]}]}`,
	}
	for name, body := range docs {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "duck.gltf")
			test.That(t, os.WriteFile(path, []byte(body), 0o644), test.ShouldBeNil)

			res := <-NewLoader().LoadModelAsync(context.Background(), path, ModelObserver{})
			test.That(t, res.Value, test.ShouldBeNil)
			var ae *core.AssetLoadError
			test.That(t, errors.As(res.Err, &ae), test.ShouldBeTrue)
		})
	}
}

type panicFetcher struct{}

func (panicFetcher) Open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	panic("corrupt buffer")
}

func TestLoadModelAsyncRecoversPanic(t *testing.T) {
	res := <-NewLoader(WithFetcher(panicFetcher{})).LoadModelAsync(context.Background(), "duck.glb", ModelObserver{})
	test.That(t, res.Value, test.ShouldBeNil)
	var ae *core.AssetLoadError
	test.That(t, errors.As(res.Err, &ae), test.ShouldBeTrue)
	test.That(t, res.Err.Error(), test.ShouldContainSubstring, "corrupt buffer")
}
