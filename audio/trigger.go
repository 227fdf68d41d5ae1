package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"metal-duck/assets"
	"metal-duck/core"
	"metal-duck/logging"
)

// ErrDisposed is returned by operations on a closed Trigger.
var ErrDisposed = errors.New("audio: trigger disposed")

// Source names a cue file.
type Source struct {
	Name string
	URL  string
}

type slot struct {
	url    string
	handle assets.SoundHandle
	loaded bool
}

// Scheduled is one cue of a fired sequence and the instant it is due.
type Scheduled struct {
	Cue string
	At  time.Time
}

// Trigger owns the cue set. Play is a logged no-op for cues that are not loaded.
type Trigger struct {
	device Device
	clock  clock.Clock
	logger *log.Logger

	mu       sync.Mutex
	cues     map[string]*slot
	timers   map[uint64]*clock.Timer
	nextID   uint64
	disposed bool
}

func NewTrigger(device Device, clk clock.Clock, logger *log.Logger, sources ...Source) *Trigger {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	t := &Trigger{device: device, clock: clk, logger: logger, cues: make(map[string]*slot, len(sources)), timers: map[uint64]*clock.Timer{}}
	for _, s := range sources {
		t.cues[s.Name] = &slot{url: s.URL}
	}
	return t
}

// Load fetches every cue concurrently. A cue that fails stays unloaded; the
// combined failures are returned for reporting only.
func (t *Trigger) Load(ctx context.Context, loader *assets.Loader) error {
	t.mu.Lock()
	pending := make(map[string]string, len(t.cues))
	for name, s := range t.cues {
		pending[name] = s.url
	}
	t.mu.Unlock()

	var (
		g    errgroup.Group
		emu  sync.Mutex
		errs error
	)
	for name, url := range pending {
		g.Go(func() error {
			h, err := loader.LoadAudio(ctx, name, url, t.device)
			if err != nil {
				t.logger.Error("cue failed to load", "cue", name, "url", url, "err", err)
				emu.Lock()
				errs = multierr.Append(errs, err)
				emu.Unlock()
				return nil
			}
			t.install(name, h)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (t *Trigger) install(name string, h assets.SoundHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.cues[name]
	if t.disposed || !ok {
		// late completion after teardown: release immediately
		_ = h.Close()
		return
	}
	if s.handle != nil {
		_ = s.handle.Close()
	}
	s.handle, s.loaded = h, true
	t.logger.Debug("cue loaded", "cue", name, "url", s.url)
}

// Loaded reports whether name can be played.
func (t *Trigger) Loaded(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.cues[name]
	return ok && s.loaded
}

// Pending is the number of delayed cues not yet fired.
func (t *Trigger) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// PrimeContext starts the audio context. Call it only from a user gesture.
// Failure is returned as *core.AudioContextError and is not fatal.
func (t *Trigger) PrimeContext(ctx context.Context) error {
	t.mu.Lock()
	disposed := t.disposed
	t.mu.Unlock()
	if disposed {
		return &core.AudioContextError{Err: ErrDisposed}
	}
	if t.device.State() == ContextRunning {
		return nil
	}
	if err := t.device.Resume(ctx); err != nil {
		return &core.AudioContextError{Err: err}
	}
	t.logger.Debug("audio context started")
	return nil
}

// Play restarts cue name now.
func (t *Trigger) Play(name string) {
	t.mu.Lock()
	s, ok := t.cues[name]
	if t.disposed || !ok || !s.loaded {
		t.mu.Unlock()
		t.logger.Warn("cue not loaded, cannot play", "cue", name)
		return
	}
	h := s.handle
	t.mu.Unlock()
	if err := h.Play(); err != nil {
		t.logger.Warn("cue playback failed", "cue", name, "err", err)
	}
}

// PlaySequence captures one trigger timestamp and schedules every cue at
// trigger+offset. Cues due now play before PlaySequence returns.
func (t *Trigger) PlaySequence(seq Sequence) []Scheduled {
	trigger := t.clock.Now()
	out := make([]Scheduled, 0, len(seq))
	for _, cue := range seq {
		at := trigger.Add(cue.Offset)
		out = append(out, Scheduled{Cue: cue.Name, At: at})

		delay := at.Sub(t.clock.Now())
		if delay <= 0 {
			t.Play(cue.Name)
			continue
		}
		name := cue.Name
		t.mu.Lock()
		if !t.disposed {
			id := t.nextID
			t.nextID++
			t.timers[id] = t.clock.AfterFunc(delay, func() {
				t.mu.Lock()
				delete(t.timers, id)
				t.mu.Unlock()
				t.Play(name)
			})
		}
		t.mu.Unlock()
	}
	return out
}

// Close cancels pending cues and releases every sound and the device.
// It is idempotent.
func (t *Trigger) Close() error {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return nil
	}
	t.disposed = true
	timers := t.timers
	t.timers = nil
	var err error
	for name, s := range t.cues {
		if s.handle != nil {
			if cerr := s.handle.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("cue %s: %w", name, cerr))
			}
		}
		s.handle, s.loaded = nil, false
	}
	t.mu.Unlock()

	for _, tm := range timers {
		tm.Stop()
	}
	return multierr.Append(err, t.device.Close())
}
