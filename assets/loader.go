// Package assets fetches the model and sound files the scene depends on.
// Loads run on their own goroutine and report back over a channel; a failed
// model is replaced by a deterministic placeholder instead of an error.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"metal-duck/core"
	"metal-duck/logging"
	"metal-duck/scene"
)

// SoundHandle is a decoded, playable sound.
type SoundHandle interface {
	// Play restarts the sound from the beginning.
	Play() error
	Close() error
}

// SoundDecoder turns raw file bytes into a SoundHandle.
type SoundDecoder interface {
	DecodeSound(name string, data []byte) (SoundHandle, error)
}

// Result carries the outcome of an asynchronous load.
type Result[T any] struct {
	Value T
	Err   error
}

// ModelObserver receives model load milestones. Callbacks run on the loading
// goroutine; nil callbacks are skipped.
type ModelObserver struct {
	OnProgress   func(Progress)
	OnProcessing func()
}

type Loader struct {
	fetcher Fetcher
	logger  *log.Logger
}

type LoaderOption func(*Loader)

func WithFetcher(f Fetcher) LoaderOption {
	return func(l *Loader) { l.fetcher = f }
}

func WithLogger(logger *log.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.fetcher == nil {
		l.fetcher = &DefaultFetcher{}
	}
	if l.logger == nil {
		l.logger = logging.Discard()
	}
	return l
}

// LoadModel fetches and converts a glTF model. On success every mesh node casts
// and receives shadows and the root sits at the origin with unit scale.
// Failures are returned as *core.AssetLoadError.
func (l *Loader) LoadModel(ctx context.Context, url string, obs ModelObserver) (*scene.Model, error) {
	model, err := l.convertModel(ctx, url, obs)
	if err != nil {
		return nil, &core.AssetLoadError{Asset: "model", URL: url, Err: err}
	}
	n := NormalizeShadows(model.Root)
	model.Root.SetScale(mgl32.Vec3{1, 1, 1})
	model.Root.SetPosition(mgl32.Vec3{})
	l.logger.Debug("model loaded", "url", url, "meshes", n, "clips", len(model.Clips))
	return model, nil
}

// convertModel turns a panic on malformed input into an error so the caller
// can fall back to the placeholder.
func (l *Loader) convertModel(ctx context.Context, url string, obs ModelObserver) (model *scene.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("model conversion panicked", "url", url, "panic", r)
			model, err = nil, fmt.Errorf("model conversion: %v", r)
		}
	}()
	return l.loadModel(ctx, url, obs)
}

func (l *Loader) loadModel(ctx context.Context, url string, obs ModelObserver) (*scene.Model, error) {
	// .gltf files may reference sibling buffers, so let gltf resolve them from disk
	if !isRemote(url) && strings.EqualFold(filepath.Ext(url), ".gltf") {
		if obs.OnProcessing != nil {
			obs.OnProcessing()
		}
		return scene.LoadGLTF(url, l.logger)
	}

	data, err := l.fetch(ctx, url, obs.OnProgress)
	if err != nil {
		return nil, err
	}
	if obs.OnProcessing != nil {
		obs.OnProcessing()
	}
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("gltf decode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scene.BuildModel(doc, l.logger)
}

// LoadModelAsync runs LoadModel on a new goroutine. The channel is buffered so
// the goroutine never blocks on an abandoned receiver.
func (l *Loader) LoadModelAsync(ctx context.Context, url string, obs ModelObserver) <-chan Result[*scene.Model] {
	ch := make(chan Result[*scene.Model], 1)
	go func() {
		m, err := l.LoadModel(ctx, url, obs)
		ch <- Result[*scene.Model]{Value: m, Err: err}
	}()
	return ch
}

// LoadAudio fetches a sound file and hands it to dec.
func (l *Loader) LoadAudio(ctx context.Context, name, url string, dec SoundDecoder) (SoundHandle, error) {
	data, err := l.fetch(ctx, url, nil)
	if err != nil {
		return nil, &core.AssetLoadError{Asset: "audio", URL: url, Err: err}
	}
	h, err := dec.DecodeSound(name, data)
	if err != nil {
		return nil, &core.AssetLoadError{Asset: "audio", URL: url, Err: err}
	}
	return h, nil
}

func (l *Loader) fetch(ctx context.Context, url string, report func(Progress)) ([]byte, error) {
	rc, size, err := l.fetcher.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, newProgressReader(ctx, rc, size, report)); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeShadows marks every mesh node under root as shadow casting and
// receiving, and returns how many it touched.
func NormalizeShadows(root *scene.Node) int {
	n := 0
	root.Traverse(func(node *scene.Node) {
		if node.Mesh == nil {
			return
		}
		node.CastShadow = true
		node.ReceiveShadow = true
		n++
	})
	return n
}

// PlaceholderSpec describes the stand-in shown when the model fails to load.
type PlaceholderSpec struct {
	Size     float32
	Color    core.Color
	Position mgl32.Vec3
}

// NewPlaceholder builds the stand-in cube. The same spec always yields the same geometry.
func NewPlaceholder(spec PlaceholderSpec) *scene.Node {
	node := scene.NewNode("placeholder")
	node.Mesh = scene.CreateCube(spec.Size, spec.Color)
	node.SetPosition(spec.Position)
	return node
}
