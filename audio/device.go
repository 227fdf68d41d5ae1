package audio

import (
	"context"

	"metal-duck/assets"
)

// ContextState mirrors the platform audio context lifecycle.
type ContextState int

const (
	ContextSuspended ContextState = iota
	ContextRunning
	ContextClosed
)

func (s ContextState) String() string {
	switch s {
	case ContextRunning:
		return "running"
	case ContextClosed:
		return "closed"
	default:
		return "suspended"
	}
}

// Device is the platform audio output. Implementations must be safe for
// concurrent use: delayed cues fire from timer goroutines.
type Device interface {
	assets.SoundDecoder
	State() ContextState
	// Resume blocks until the context runs or ctx is done.
	Resume(ctx context.Context) error
	Close() error
}
