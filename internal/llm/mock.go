package llm

import (
	"context"
	"time"
)

// mockLecture is a canned, well-formed lecture wrapped in prose the way hosted
// models tend to answer.
const mockLecture = `Here is your lecture:
{
  "title": "A Short Mock Lecture",
  "slides": [
    {
      "title": "Introduction",
      "bullets": ["What we will cover", "Why it matters", "How to follow along"],
      "script": "Welcome to this short lecture. [PAUSE] Let's see what we will cover today.",
      "image_prompt": "A friendly classroom with a chalkboard"
    },
    {
      "title": "Core Ideas",
      "bullets": ["First principle", "Second principle", "A worked example"],
      "script": "There are two principles to keep in mind. [PAUSE] Let's walk through an example.",
      "image_prompt": "Two puzzle pieces fitting together"
    },
    {
      "title": "Summary",
      "bullets": ["Recap", "Next steps"],
      "script": "To recap, we covered the core ideas. [PAUSE] Thanks for listening!",
      "image_prompt": "A checklist with every item ticked"
    }
  ]
}
Let me know if you need anything else.`

type mockGenerator struct {
	response string
}

// NewMockGenerator returns a generator that always answers with a fixed
// three-slide lecture.
func NewMockGenerator() Generator { return &mockGenerator{response: mockLecture} }

// NewStaticGenerator returns a generator that always answers with response.
func NewStaticGenerator(response string) Generator { return &mockGenerator{response: response} }

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	return consumer(Chunk{
		RequestID: req.RequestID,
		Content:   m.response,
		Partial:   false,
		Latency:   20 * time.Millisecond,
		TraceID:   req.TraceID,
	})
}
