package tts

import (
	"context"
	"strings"
)

type mockEngine struct {
	sampleRate int
	channels   int
}

// NewMockEngine returns an engine that writes silence, 100ms per word.
func NewMockEngine(sampleRate, channels int) Engine {
	return &mockEngine{sampleRate: sampleRate, channels: channels}
}

func (m *mockEngine) Save(ctx context.Context, text, outputPath, voice string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	samples := m.sampleRate / 10 * words * m.channels
	return writeWAV(outputPath, make([]byte, samples*2), m.sampleRate, m.channels)
}
