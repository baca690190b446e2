package llm

import (
	"context"
	"time"
)

// Request describes a language model prompt.
type Request struct {
	RequestID   string
	Prompt      string
	MaxTokens   int
	Temperature float64
	TraceID     string
	// JSON asks backends that support it to constrain output to a JSON document.
	JSON bool
}

// Chunk represents streamed model output.
type Chunk struct {
	RequestID        string
	Content          string
	Partial          bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
	TraceID          string
}

// Generator defines a pluggable LLM backend.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

type correlationKey struct{}

type correlation struct {
	requestID string
	traceID   string
}

// WithCorrelation attaches the ids that generators stamp onto their requests and chunks.
func WithCorrelation(ctx context.Context, requestID, traceID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlation{requestID: requestID, traceID: traceID})
}

// Correlate fills req.RequestID and req.TraceID from ctx where they are unset.
func Correlate(ctx context.Context, req Request) Request {
	c, _ := ctx.Value(correlationKey{}).(correlation)
	if req.RequestID == "" {
		req.RequestID = c.requestID
	}
	if req.TraceID == "" {
		req.TraceID = c.traceID
	}
	return req
}

// Collect runs the generator and concatenates every streamed chunk into the
// full response text.
func Collect(ctx context.Context, gen Generator, req Request) (string, error) {
	var out []byte
	err := gen.Generate(ctx, req, func(chunk Chunk) error {
		out = append(out, chunk.Content...)
		return nil
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
