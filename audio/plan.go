// Package audio owns the scene's sounds: it loads the cues, primes the output
// context from a user gesture and fires cue sequences against one shared
// trigger timestamp.
package audio

import (
	"time"

	"metal-duck/config"
)

// Cue is one sound fired at Offset after the interaction's trigger time.
type Cue struct {
	Name   string
	Offset time.Duration
}

type Sequence []Cue

// Plan maps an interaction number to the sequence it plays.
type Plan struct {
	Regular        Sequence
	Alternate      Sequence
	AlternateEvery int // every Nth interaction plays Alternate; 0 disables
}

// PlanFromConfig converts the configured sequences.
func PlanFromConfig(cfg config.Audio) Plan {
	conv := func(steps []config.Step) Sequence {
		seq := make(Sequence, len(steps))
		for i, s := range steps {
			seq[i] = Cue{Name: s.Cue, Offset: s.Offset.Duration}
		}
		return seq
	}
	return Plan{
		Regular:        conv(cfg.Sequence),
		Alternate:      conv(cfg.Alternate),
		AlternateEvery: cfg.AlternateEvery,
	}
}

// ForInteraction returns the sequence for the n-th interaction (1-based).
// It is a pure function of n.
func (p Plan) ForInteraction(n uint64) Sequence {
	if p.AlternateEvery > 0 && len(p.Alternate) > 0 && n > 0 && n%uint64(p.AlternateEvery) == 0 {
		return p.Alternate
	}
	return p.Regular
}
