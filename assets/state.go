package assets

import (
	"errors"
	"fmt"
)

type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// LoadState is the progress of one load attempt. Percent is meaningful only
// when PercentKnown.
type LoadState struct {
	Phase        Phase
	Percent      float64
	PercentKnown bool
}

func (s LoadState) Terminal() bool {
	return s.Phase == PhaseReady || s.Phase == PhaseFailed
}

var ErrBadTransition = errors.New("invalid load state transition")

// StateTracker enforces Initializing -> Loading(pct)* -> Ready | Failed.
// Ready and Failed are terminal for the attempt.
type StateTracker struct {
	state LoadState
}

func (t *StateTracker) State() LoadState {
	return t.state
}

// Loading records progress; percentages never move backwards.
func (t *StateTracker) Loading(p Progress) error {
	if t.state.Terminal() {
		return fmt.Errorf("%w: %s -> loading", ErrBadTransition, t.state.Phase)
	}
	next := LoadState{Phase: PhaseLoading, Percent: t.state.Percent, PercentKnown: t.state.PercentKnown}
	if pct, ok := p.Percent(); ok && pct >= next.Percent {
		next.Percent = pct
		next.PercentKnown = true
	}
	t.state = next
	return nil
}

func (t *StateTracker) Ready() error {
	return t.finish(PhaseReady)
}

func (t *StateTracker) Failed() error {
	return t.finish(PhaseFailed)
}

func (t *StateTracker) finish(p Phase) error {
	if t.state.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, t.state.Phase, p)
	}
	t.state = LoadState{Phase: p, Percent: t.state.Percent, PercentKnown: t.state.PercentKnown}
	return nil
}
