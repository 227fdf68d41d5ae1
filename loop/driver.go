// Package loop drives the per-frame callback: one tick per display refresh,
// with elapsed time measured on an injectable clock.
package loop

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"

	"metal-duck/logging"
)

// Scheduler blocks until the next display refresh.
type Scheduler interface {
	Next(ctx context.Context) error
}

// Frame is called once per tick with the time since the previous tick.
type Frame interface {
	Frame(dt time.Duration) error
}

// FrameFunc adapts a function to Frame.
type FrameFunc func(dt time.Duration) error

func (f FrameFunc) Frame(dt time.Duration) error { return f(dt) }

// Driver owns the frame chain. It is not safe for concurrent use; Run and
// Step belong to the goroutine that owns the scene.
type Driver struct {
	clock  clock.Clock
	sched  Scheduler
	frame  Frame
	logger *log.Logger

	last    time.Time
	started bool
	frames  uint64

	// fps bookkeeping, refreshed once a second
	fps       int
	fpsCount  int
	fpsWindow time.Time
}

func NewDriver(clk clock.Clock, sched Scheduler, frame Frame, logger *log.Logger) *Driver {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Driver{clock: clk, sched: sched, frame: frame, logger: logger}
}

// Step runs exactly one frame. The first frame sees dt == 0.
func (d *Driver) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := d.clock.Now()
	var dt time.Duration
	if d.started {
		dt = now.Sub(d.last)
	} else {
		d.started = true
		d.fpsWindow = now
	}
	d.last = now
	d.frames++

	d.fpsCount++
	if now.Sub(d.fpsWindow) >= time.Second {
		d.fps = d.fpsCount
		d.fpsCount = 0
		d.fpsWindow = now
		d.logger.Debug("frame rate", "fps", d.fps, "frames", d.frames)
	}
	return d.frame.Frame(dt)
}

// Run steps and reschedules until ctx is cancelled or a frame fails.
// Cancellation is a clean stop and returns nil.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if err := d.Step(ctx); err != nil {
			return ignoreCancel(err)
		}
		if err := d.sched.Next(ctx); err != nil {
			return ignoreCancel(err)
		}
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Frames is the number of frames stepped so far.
func (d *Driver) Frames() uint64 { return d.frames }

// FPS is the frame count of the last full second.
func (d *Driver) FPS() int { return d.fps }

// TickerScheduler paces frames at a fixed interval on a clock. It stands in
// for vsync when no window is attached.
type TickerScheduler struct {
	ticker *clock.Ticker
}

func NewTickerScheduler(clk clock.Clock, interval time.Duration) *TickerScheduler {
	return &TickerScheduler{ticker: clk.Ticker(interval)}
}

func (s *TickerScheduler) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ticker.C:
		return nil
	}
}

func (s *TickerScheduler) Stop() {
	s.ticker.Stop()
}
