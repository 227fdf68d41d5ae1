package assets

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestStateTrackerHappyPath(t *testing.T) {
	var tr StateTracker
	test.That(t, tr.State().Phase, test.ShouldEqual, PhaseInitializing)

	test.That(t, tr.Loading(Progress{Loaded: -1, Total: -1}), test.ShouldBeNil)
	test.That(t, tr.State().PercentKnown, test.ShouldBeFalse)

	test.That(t, tr.Loading(Progress{Loaded: 50, Total: 200}), test.ShouldBeNil)
	test.That(t, tr.State().Percent, test.ShouldEqual, 25.0)

	// progress never moves backwards
	test.That(t, tr.Loading(Progress{Loaded: 10, Total: 200}), test.ShouldBeNil)
	test.That(t, tr.State().Percent, test.ShouldEqual, 25.0)

	test.That(t, tr.Ready(), test.ShouldBeNil)
	test.That(t, tr.State().Phase, test.ShouldEqual, PhaseReady)
	test.That(t, tr.State().Terminal(), test.ShouldBeTrue)
}

func TestStateTrackerTerminal(t *testing.T) {
	var tr StateTracker
	test.That(t, tr.Failed(), test.ShouldBeNil)

	err := tr.Loading(Progress{Loaded: 1, Total: 2})
	test.That(t, errors.Is(err, ErrBadTransition), test.ShouldBeTrue)
	test.That(t, errors.Is(tr.Ready(), ErrBadTransition), test.ShouldBeTrue)
	test.That(t, tr.State().Phase, test.ShouldEqual, PhaseFailed)
}

func TestProgressPercent(t *testing.T) {
	_, known := Progress{Loaded: 10, Total: -1}.Percent()
	test.That(t, known, test.ShouldBeFalse)
	pct, known := Progress{Loaded: 300, Total: 200}.Percent()
	test.That(t, known, test.ShouldBeTrue)
	test.That(t, pct, test.ShouldEqual, 100.0)
	test.That(t, PhaseLoading.String(), test.ShouldEqual, "loading")
}
