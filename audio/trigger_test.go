package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"metal-duck/assets"
	"metal-duck/core"
)

type play struct {
	cue string
	at  time.Time
}

type fakeDevice struct {
	mu        sync.Mutex
	state     ContextState
	resumeErr error
	closed    bool
	clk       *clock.Mock
	latency   time.Duration
	plays     chan play
}

func newFakeDevice(clk *clock.Mock) *fakeDevice {
	return &fakeDevice{clk: clk, plays: make(chan play, 16)}
}

func (d *fakeDevice) DecodeSound(name string, data []byte) (assets.SoundHandle, error) {
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	return &fakeHandle{name: name, dev: d}, nil
}

func (d *fakeDevice) State() ContextState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *fakeDevice) Resume(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.resumeErr != nil {
		return d.resumeErr
	}
	d.state = ContextRunning
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.state = ContextClosed
	return nil
}

type fakeHandle struct {
	name   string
	dev    *fakeDevice
	closed bool
}

func (h *fakeHandle) Play() error {
	h.dev.plays <- play{cue: h.name, at: h.dev.clk.Now()}
	if h.dev.latency > 0 {
		// slow dispatch must not shift later cues
		h.dev.clk.Add(h.dev.latency)
	}
	return nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

func writeCue(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, data, 0o644), test.ShouldBeNil)
	return path
}

func loadedTrigger(t *testing.T) (*Trigger, *fakeDevice, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	dev := newFakeDevice(clk)
	tr := NewTrigger(dev, clk, nil,
		Source{Name: "primary", URL: writeCue(t, "cuack.mp3", []byte{1})},
		Source{Name: "secondary", URL: writeCue(t, "guitar_riff.mp3", []byte{2})},
	)
	test.That(t, tr.Load(context.Background(), assets.NewLoader()), test.ShouldBeNil)
	return tr, dev, clk
}

func nextPlay(t *testing.T, dev *fakeDevice) play {
	t.Helper()
	select {
	case p := <-dev.plays:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a cue")
		return play{}
	}
}

func TestSequenceOffsetsShareOneTimestamp(t *testing.T) {
	tr, dev, clk := loadedTrigger(t)
	dev.latency = 40 * time.Millisecond
	start := clk.Now()

	alt := Sequence{
		{Name: "primary"},
		{Name: "primary", Offset: 250 * time.Millisecond},
		{Name: "secondary", Offset: 500 * time.Millisecond},
	}
	sched := tr.PlaySequence(alt)
	dev.latency = 0
	test.That(t, len(sched), test.ShouldEqual, 3)
	test.That(t, sched[0].At, test.ShouldEqual, start)
	test.That(t, sched[1].At.Sub(sched[0].At), test.ShouldEqual, 250*time.Millisecond)
	test.That(t, sched[2].At.Sub(sched[0].At), test.ShouldEqual, 500*time.Millisecond)

	first := nextPlay(t, dev)
	test.That(t, first.cue, test.ShouldEqual, "primary")
	test.That(t, tr.Pending(), test.ShouldEqual, 2)

	clk.Add(time.Second)
	got := map[string]int{}
	for i := 0; i < 2; i++ {
		got[nextPlay(t, dev).cue]++
	}
	test.That(t, got, test.ShouldResemble, map[string]int{"primary": 1, "secondary": 1})
}

func TestPlayUnloadedCueIsNoop(t *testing.T) {
	clk := clock.NewMock()
	dev := newFakeDevice(clk)
	tr := NewTrigger(dev, clk, nil,
		Source{Name: "primary", URL: writeCue(t, "cuack.mp3", nil)},
		Source{Name: "secondary", URL: filepath.Join(t.TempDir(), "missing.mp3")},
	)
	err := tr.Load(context.Background(), assets.NewLoader())
	test.That(t, err, test.ShouldNotBeNil)
	var ae *core.AssetLoadError
	test.That(t, errors.As(err, &ae), test.ShouldBeTrue)
	test.That(t, tr.Loaded("primary"), test.ShouldBeFalse)
	test.That(t, tr.Loaded("secondary"), test.ShouldBeFalse)

	tr.Play("primary")
	tr.Play("tambourine")
	tr.PlaySequence(Sequence{{Name: "secondary"}})
	test.That(t, len(dev.plays), test.ShouldEqual, 0)
}

func TestPrimeContext(t *testing.T) {
	tr, dev, _ := loadedTrigger(t)
	test.That(t, tr.PrimeContext(context.Background()), test.ShouldBeNil)
	test.That(t, dev.State(), test.ShouldEqual, ContextRunning)
	// already running
	test.That(t, tr.PrimeContext(context.Background()), test.ShouldBeNil)
}

func TestPrimeContextFailure(t *testing.T) {
	tr, dev, _ := loadedTrigger(t)
	dev.resumeErr = errors.New("autoplay blocked")
	err := tr.PrimeContext(context.Background())
	var ce *core.AudioContextError
	test.That(t, errors.As(err, &ce), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "autoplay blocked")
}

func TestCloseCancelsPendingCues(t *testing.T) {
	tr, dev, clk := loadedTrigger(t)
	tr.PlaySequence(Sequence{{Name: "primary", Offset: 100 * time.Millisecond}})
	test.That(t, tr.Pending(), test.ShouldEqual, 1)

	test.That(t, tr.Close(), test.ShouldBeNil)
	test.That(t, dev.closed, test.ShouldBeTrue)
	test.That(t, tr.Loaded("primary"), test.ShouldBeFalse)

	clk.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	test.That(t, len(dev.plays), test.ShouldEqual, 0)

	// idempotent
	test.That(t, tr.Close(), test.ShouldBeNil)
	err := tr.PrimeContext(context.Background())
	test.That(t, errors.Is(err, ErrDisposed), test.ShouldBeTrue)
}

func TestLateLoadAfterCloseIsReleased(t *testing.T) {
	clk := clock.NewMock()
	dev := newFakeDevice(clk)
	tr := NewTrigger(dev, clk, nil, Source{Name: "primary", URL: "unused"})
	test.That(t, tr.Close(), test.ShouldBeNil)

	h := &fakeHandle{name: "primary", dev: dev}
	tr.install("primary", h)
	test.That(t, h.closed, test.ShouldBeTrue)
	test.That(t, tr.Loaded("primary"), test.ShouldBeFalse)
}
