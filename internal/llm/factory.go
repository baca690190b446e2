package llm

import (
	"context"
	"fmt"

	"github.com/loqalabs/aetherlearn/internal/config"
)

// New builds the generator selected by cfg.Mode. The returned close function is
// never nil. A missing Gemini key yields ErrMissingCredential so callers can
// keep running and report the configuration problem per request.
func New(ctx context.Context, cfg config.LLMConfig) (Generator, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Mode {
	case "mock":
		return NewMockGenerator(), noop, nil
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.Model), noop, nil
	case "exec":
		gen, err := NewExecGenerator(cfg.Command)
		if err != nil {
			return nil, noop, err
		}
		return gen, noop, nil
	case "gemini":
		gen, err := NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, noop, err
		}
		return gen, gen.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown llm mode %q", cfg.Mode)
	}
}
