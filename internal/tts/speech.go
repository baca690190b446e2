package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Speech holds the process-wide speech engine. The engine is loaded lazily on
// first use; a failed load leaves the holder Unavailable for good.
type Speech struct {
	load    Loader
	once    sync.Once
	engine  Engine
	loadErr error
	state   atomic.Int32
	slot    *semaphore.Weighted
	logger  *slog.Logger
}

// NewSpeech wraps load. A nil load yields a permanently unavailable holder.
func NewSpeech(load Loader, logger *slog.Logger) *Speech {
	return &Speech{
		load:   load,
		slot:   semaphore.NewWeighted(1),
		logger: logger.With(slog.String("component", "speech")),
	}
}

// State reports the current lifecycle state without triggering a load.
func (s *Speech) State() State {
	return State(s.state.Load())
}

// Ready loads the engine if needed and reports whether it is usable.
func (s *Speech) Ready(ctx context.Context) bool {
	_, ok := s.ensure(ctx)
	return ok
}

// LoadError returns the initialization error once the holder is Unavailable.
func (s *Speech) LoadError() error {
	if s.State() != StateUnavailable {
		return nil
	}
	return s.loadErr
}

func (s *Speech) ensure(ctx context.Context) (Engine, bool) {
	s.once.Do(func() {
		engine, err := s.safeLoad(context.WithoutCancel(ctx))
		if err != nil {
			s.loadErr = err
			s.state.Store(int32(StateUnavailable))
			s.logger.Warn("speech synthesis unavailable", slogError(err))
			return
		}
		s.engine = engine
		s.state.Store(int32(StateReady))
		s.logger.Info("speech engine initialized")
	})
	return s.engine, s.State() == StateReady
}

func (s *Speech) safeLoad(ctx context.Context) (engine Engine, err error) {
	if s.load == nil {
		return nil, errors.New("speech synthesis disabled")
	}
	defer func() {
		if r := recover(); r != nil {
			engine, err = nil, fmt.Errorf("speech engine panicked during load: %v", r)
		}
	}()
	engine, err = s.load(ctx)
	if err == nil && engine == nil {
		err = errors.New("speech loader returned no engine")
	}
	return engine, err
}

// PrepareText converts narration into engine input, replacing pause markers
// with an ellipsis.
func PrepareText(narration string) string {
	return strings.ReplaceAll(narration, PauseMarker, "...")
}

// Synthesize renders narration to outputPath. Blank narration is skipped
// without touching the engine, and an unavailable engine is reported as
// OutcomeUnavailable rather than an error. Only a failed engine call returns
// a *SynthesisError.
func (s *Speech) Synthesize(ctx context.Context, narration, voice, outputPath string) (Outcome, error) {
	text := PrepareText(narration)
	if strings.TrimSpace(text) == "" {
		return OutcomeSkipped, nil
	}
	engine, ok := s.ensure(ctx)
	if !ok {
		return OutcomeUnavailable, nil
	}

	if err := s.slot.Acquire(ctx, 1); err != nil {
		return OutcomeFailed, &SynthesisError{Detail: "wait for engine", Err: err}
	}
	defer s.slot.Release(1)

	if err := engine.Save(ctx, text, outputPath, voice); err != nil {
		_ = os.Remove(outputPath)
		return OutcomeFailed, &SynthesisError{Detail: "engine save", Err: err}
	}
	return OutcomeSynthesized, nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
