package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/loqalabs/aetherlearn/internal/config"
)

// ErrDisabled is the load error reported when synthesis is switched off.
var ErrDisabled = errors.New("speech synthesis disabled by configuration")

// NewLoader returns the Loader selected by cfg. Construction is deferred to
// the first synthesis request.
func NewLoader(cfg config.TTSConfig) Loader {
	return func(ctx context.Context) (Engine, error) {
		if !cfg.Enabled {
			return nil, ErrDisabled
		}
		switch cfg.Mode {
		case "mock":
			return NewMockEngine(cfg.SampleRate, cfg.Channels), nil
		case "exec":
			return NewExecEngine(ExecConfig{
				Command:    cfg.Command,
				ModelDir:   cfg.ModelDir,
				SampleRate: cfg.SampleRate,
				Channels:   cfg.Channels,
			})
		default:
			return nil, fmt.Errorf("unknown tts mode %q", cfg.Mode)
		}
	}
}
