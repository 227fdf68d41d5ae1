package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

// stepScheduler advances a mock clock by a fixed amount per refresh and
// cancels after a number of frames.
type stepScheduler struct {
	clock  *clock.Mock
	step   time.Duration
	limit  int
	calls  int
	cancel context.CancelFunc
}

func (s *stepScheduler) Next(ctx context.Context) error {
	s.calls++
	if s.calls >= s.limit {
		s.cancel()
		return ctx.Err()
	}
	s.clock.Add(s.step)
	return nil
}

func TestStepMeasuresElapsed(t *testing.T) {
	mock := clock.NewMock()
	var got []time.Duration
	d := NewDriver(mock, nil, FrameFunc(func(dt time.Duration) error {
		got = append(got, dt)
		return nil
	}), nil)

	ctx := context.Background()
	test.That(t, d.Step(ctx), test.ShouldBeNil)
	mock.Add(16 * time.Millisecond)
	test.That(t, d.Step(ctx), test.ShouldBeNil)
	mock.Add(33 * time.Millisecond)
	test.That(t, d.Step(ctx), test.ShouldBeNil)

	test.That(t, got, test.ShouldResemble, []time.Duration{0, 16 * time.Millisecond, 33 * time.Millisecond})
	test.That(t, d.Frames(), test.ShouldEqual, 3)
}

func TestRunStopsOnCancel(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	sched := &stepScheduler{clock: mock, step: 250 * time.Millisecond, limit: 6, cancel: cancel}

	var total time.Duration
	d := NewDriver(mock, sched, FrameFunc(func(dt time.Duration) error {
		total += dt
		return nil
	}), nil)

	test.That(t, d.Run(ctx), test.ShouldBeNil)
	test.That(t, d.Frames(), test.ShouldEqual, 6)
	test.That(t, total, test.ShouldEqual, 1250*time.Millisecond)
	test.That(t, d.FPS(), test.ShouldEqual, 5)
}

func TestRunReturnsFrameError(t *testing.T) {
	mock := clock.NewMock()
	boom := errors.New("draw failed")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched := &stepScheduler{clock: mock, step: time.Millisecond, limit: 100, cancel: cancel}

	n := 0
	d := NewDriver(mock, sched, FrameFunc(func(time.Duration) error {
		n++
		if n == 3 {
			return boom
		}
		return nil
	}), nil)
	test.That(t, d.Run(ctx), test.ShouldEqual, boom)
}

func TestStepAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	d := NewDriver(clock.NewMock(), nil, FrameFunc(func(time.Duration) error {
		called = true
		return nil
	}), nil)
	test.That(t, d.Step(ctx), test.ShouldEqual, context.Canceled)
	test.That(t, called, test.ShouldBeFalse)
}

func TestTickerSchedulerCancel(t *testing.T) {
	s := NewTickerScheduler(clock.NewMock(), 16*time.Millisecond)
	defer s.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, s.Next(ctx), test.ShouldEqual, context.Canceled)
}
