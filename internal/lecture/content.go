package lecture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/aetherlearn/internal/llm"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const promptTemplate = `You are an expert educational content creator. Generate a lecture script and slide content for the topic: "%s"

Requirements:
- Style: %s
- Duration: %s (%d slides)
- Each slide should have a clear title and 3-4 bullet points
- The script should be natural, engaging speech (what the lecturer says)
- Include [PAUSE] markers for natural pauses

Return ONLY valid JSON in this exact format, with no text before or after it:
{
    "title": "Main Lecture Title",
    "slides": [
        {
            "title": "Slide 1 Title",
            "bullets": ["Point 1", "Point 2", "Point 3"],
            "script": "The full lecture script for this slide. What the instructor says while showing this slide. Include natural pauses like [PAUSE] where appropriate.",
            "image_prompt": "A simple description for an image that could illustrate this concept"
        }
    ]
}

Make the content educational but engaging. The lecturer should explain concepts clearly with examples.`

// BuildPrompt renders the instruction sent to the text service.
func BuildPrompt(topic, style, duration string, count int) string {
	return fmt.Sprintf(promptTemplate, topic, style, duration, count)
}

// GeneratorOptions tunes requests made by a ContentGenerator.
type GeneratorOptions struct {
	MaxTokens         int
	Temperature       float64
	RequestsPerMinute int
}

// ContentGenerator asks the text service for a lecture and parses the answer.
type ContentGenerator struct {
	gen       llm.Generator
	configErr error
	opts      GeneratorOptions
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewContentGenerator wraps gen. A nil gen makes every call fail with a ConfigurationError
// carrying cause, which callers use for a missing credential.
func NewContentGenerator(gen llm.Generator, cause error, opts GeneratorOptions, logger *slog.Logger) *ContentGenerator {
	if gen == nil && cause == nil {
		cause = llm.ErrMissingCredential
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
		burst = opts.RequestsPerMinute
	}
	return &ContentGenerator{
		gen:       gen,
		configErr: cause,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger.With(slog.String("component", "content-generator")),
	}
}

// Check returns the ConfigurationError Generate would fail with, or nil.
func (c *ContentGenerator) Check() error {
	if c.gen != nil {
		return nil
	}
	detail := "text generation backend unavailable"
	if errors.Is(c.configErr, llm.ErrMissingCredential) {
		detail = "GEMINI_API_KEY not set"
	}
	return &ConfigurationError{Detail: detail, Err: c.configErr}
}

// Generate requests content for topic and parses it. The returned segment count is whatever
// the service produced; the duration only shapes the instruction.
func (c *ContentGenerator) Generate(ctx context.Context, topic, style, duration string) (Content, error) {
	if err := c.Check(); err != nil {
		return Content{}, err
	}
	count := SegmentTarget(duration)

	if err := c.limiter.Wait(ctx); err != nil {
		return Content{}, &GenerationError{Kind: KindUpstream, Detail: err.Error(), Err: err}
	}

	req := llm.Correlate(ctx, llm.Request{
		Prompt:      BuildPrompt(topic, style, duration, count),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		JSON:        true,
	})
	start := time.Now()
	raw, err := llm.Collect(ctx, c.gen, req)
	if err != nil {
		genErr := ClassifyUpstream(err)
		c.logger.Warn("text generation failed",
			slog.String("topic", topic),
			slog.String("kind", genErr.Kind.String()),
			slogError(err),
		)
		return Content{}, genErr
	}
	c.logger.Debug("text generation finished",
		slog.String("topic", topic),
		slog.Int("bytes", len(raw)),
		slog.Duration("latency", time.Since(start)),
	)

	content, err := ParseContent(raw)
	if err != nil {
		c.logger.Warn("unparsable lecture content", slog.String("topic", topic), slogError(err))
		return Content{}, err
	}
	return content, nil
}

// ExtractPayload returns the text from the first '{' to the last '}' of response.
// ok is false when no such region exists.
func ExtractPayload(response string) (payload string, ok bool) {
	start := strings.IndexByte(response, '{')
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(response, '}')
	if end < start {
		return "", false
	}
	return response[start : end+1], true
}

type rawLecture struct {
	Title  flexString `json:"title"`
	Slides []rawSlide `json:"slides"`
}

type rawSlide struct {
	Title       flexString  `json:"title"`
	Bullets     flexStrings `json:"bullets"`
	Script      flexString  `json:"script"`
	ImagePrompt flexString  `json:"image_prompt"`
}

// ParseContent extracts and decodes a lecture from free text. Missing fields become empty
// values; only a missing or undecodable payload is an error.
func ParseContent(response string) (Content, error) {
	payload, ok := ExtractPayload(response)
	if !ok {
		return Content{}, &GenerationError{Kind: KindInvalidResponse, Detail: "no JSON object in response"}
	}
	var raw rawLecture
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Content{}, &GenerationError{Kind: KindInvalidResponse, Detail: "decode lecture JSON", Err: err}
	}

	content := Content{
		Title:    string(raw.Title),
		Segments: make([]SegmentContent, 0, len(raw.Slides)),
	}
	for _, s := range raw.Slides {
		bullets := []string(s.Bullets)
		if bullets == nil {
			bullets = []string{}
		}
		content.Segments = append(content.Segments, SegmentContent{
			Title:        string(s.Title),
			Bullets:      bullets,
			Narration:    string(s.Script),
			VisualPrompt: string(s.ImagePrompt),
		})
	}
	return content, nil
}

// flexString accepts a JSON string, number, bool or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexString(scalarText(v))
	return nil
}

// flexStrings accepts an array of scalars, a single string or null.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, scalarText(item))
		}
		*f = out
	default:
		if s := scalarText(t); s != "" {
			*f = []string{s}
		}
	}
	return nil
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// ClassifyUpstream maps a text service error onto the generation taxonomy.
func ClassifyUpstream(err error) *GenerationError {
	if isRateLimited(err) {
		return &GenerationError{Kind: KindRateLimited, Detail: RateLimitGuidance, Err: err}
	}
	return &GenerationError{Kind: KindUpstream, Detail: err.Error(), Err: err}
}

func isRateLimited(err error) bool {
	var coded interface{ HTTPStatusCode() int }
	if errors.As(err, &coded) && coded.HTTPStatusCode() == 429 {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
