package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loqalabs/aetherlearn/internal/config"
	"github.com/loqalabs/aetherlearn/internal/journal"
	"github.com/loqalabs/aetherlearn/internal/lecture"
	"github.com/loqalabs/aetherlearn/internal/llm"
	"github.com/loqalabs/aetherlearn/internal/store"
	"github.com/loqalabs/aetherlearn/internal/tts"
)

// Stack is the assembled lecture pipeline and the resources behind it.
// The daemon and the CLI both build one.
type Stack struct {
	Content  *lecture.ContentGenerator
	Speech   *tts.Speech
	Store    *store.Store
	Journal  *journal.Store
	Pipeline *lecture.Pipeline

	closeLLM func() error
}

// NewStack wires the pipeline from cfg. A missing Gemini key is not fatal here:
// generation requests report it as a configuration error instead.
func NewStack(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Stack, error) {
	gen, closeLLM, err := llm.New(ctx, cfg.LLM)
	var cause error
	if err != nil {
		if !errors.Is(err, llm.ErrMissingCredential) {
			return nil, fmt.Errorf("init llm: %w", err)
		}
		logger.Warn("text generation disabled until GEMINI_API_KEY is set")
		gen, cause = nil, err
	}

	js, err := journal.Open(ctx, cfg.Journal, logger.With(slog.String("component", "journal")))
	if err != nil {
		_ = closeLLM()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	s := &Stack{
		Content: lecture.NewContentGenerator(gen, cause, lecture.GeneratorOptions{
			MaxTokens:         cfg.LLM.MaxTokens,
			Temperature:       cfg.LLM.Temperature,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		}, logger),
		Speech:   tts.NewSpeech(tts.NewLoader(cfg.TTS), logger),
		Store:    store.New(cfg.Output),
		Journal:  js,
		closeLLM: closeLLM,
	}
	s.Pipeline = lecture.NewPipeline(s.Content, s.Speech, s.Store, s.Journal, lecture.PipelineConfig{
		DefaultVoice: cfg.Lecture.DefaultVoice,
		DefaultStyle: cfg.Lecture.DefaultStyle,
		Cover:        cfg.Output.Cover,
	}, logger)
	return s, nil
}

// Close releases the text backend and the journal.
func (s *Stack) Close() error {
	var errs []error
	if s.closeLLM != nil {
		if err := s.closeLLM(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Journal.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
