package tts

import "context"

// PauseMarker is the in-band token narration uses to request a pause.
const PauseMarker = "[PAUSE]"

// Engine is the contract for a speech engine that renders text to an audio
// file on disk.
type Engine interface {
	Save(ctx context.Context, text, outputPath, voice string) error
}

// Loader constructs an Engine. It is invoked at most once per Speech.
type Loader func(ctx context.Context) (Engine, error)

// State is the lifecycle of the shared engine handle.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "uninitialized"
	}
}

// Outcome reports what a Synthesize call did when it did not fail.
type Outcome int

const (
	OutcomeSynthesized Outcome = iota
	OutcomeSkipped
	OutcomeUnavailable
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSynthesized:
		return "synthesized"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unavailable"
	}
}

// SynthesisError is returned when the engine was called and failed.
type SynthesisError struct {
	Detail string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return "synthesis failed: " + e.Detail + ": " + e.Err.Error()
	}
	return "synthesis failed: " + e.Detail
}

func (e *SynthesisError) Unwrap() error { return e.Err }
