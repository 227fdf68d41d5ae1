// Package ebitenaudio plays decoded mp3 and wav cues through ebiten's audio
// context.
package ebitenaudio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"go.uber.org/multierr"

	"metal-duck/assets"
	mdaudio "metal-duck/audio"
)

// readyPoll is how often Resume checks the context.
const readyPoll = 10 * time.Millisecond

var errClosed = errors.New("audio device closed")

// Device implements audio.Device. It is safe for concurrent use.
type Device struct {
	ctx *audio.Context

	mu      sync.Mutex
	closed  bool
	players map[*sound]struct{}
}

// New returns a device on the process-wide audio context, creating it at
// sampleRate when none exists yet.
func New(sampleRate int) *Device {
	ctx := audio.CurrentContext()
	if ctx == nil {
		ctx = audio.NewContext(sampleRate)
	}
	return &Device{ctx: ctx, players: map[*sound]struct{}{}}
}

func (d *Device) State() mdaudio.ContextState {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		return mdaudio.ContextClosed
	case d.ctx.IsReady():
		return mdaudio.ContextRunning
	default:
		return mdaudio.ContextSuspended
	}
}

// Resume waits for the platform to start the context.
func (d *Device) Resume(ctx context.Context) error {
	t := time.NewTicker(readyPoll)
	defer t.Stop()
	for {
		switch d.State() {
		case mdaudio.ContextRunning:
			return nil
		case mdaudio.ContextClosed:
			return errClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

type format int

const (
	formatMP3 format = iota
	formatWAV
)

func sniff(data []byte) format {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return formatWAV
	}
	return formatMP3
}

// DecodeSound decodes the whole file to PCM up front so replays never touch
// the decoder again.
func (d *Device) DecodeSound(name string, data []byte) (assets.SoundHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errClosed
	}

	var (
		stream io.Reader
		err    error
	)
	sr := d.ctx.SampleRate()
	switch sniff(data) {
	case formatWAV:
		stream, err = wav.DecodeWithSampleRate(sr, bytes.NewReader(data))
	default:
		stream, err = mp3.DecodeWithSampleRate(sr, bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	s := &sound{dev: d, player: d.ctx.NewPlayerFromBytes(pcm)}
	d.players[s] = struct{}{}
	return s, nil
}

// Close stops and releases every player. The shared context itself lives for
// the rest of the process.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	players := d.players
	d.players = nil
	d.mu.Unlock()

	var err error
	for s := range players {
		err = multierr.Append(err, s.close())
	}
	return err
}

type sound struct {
	dev *Device

	mu     sync.Mutex
	player *audio.Player
}

// Play restarts the sound from the beginning.
func (s *sound) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return errClosed
	}
	s.player.Pause()
	if err := s.player.Rewind(); err != nil {
		return err
	}
	s.player.Play()
	return nil
}

func (s *sound) Close() error {
	s.dev.mu.Lock()
	if s.dev.players != nil {
		delete(s.dev.players, s)
	}
	s.dev.mu.Unlock()
	return s.close()
}

func (s *sound) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	err := s.player.Close()
	s.player = nil
	return err
}

var _ mdaudio.Device = (*Device)(nil)
