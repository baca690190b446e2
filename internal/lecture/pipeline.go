package lecture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/aetherlearn/internal/journal"
	"github.com/loqalabs/aetherlearn/internal/llm"
	"github.com/loqalabs/aetherlearn/internal/slide"
	"github.com/loqalabs/aetherlearn/internal/store"
	"github.com/loqalabs/aetherlearn/internal/tts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loqalabs/aetherlearn/lecture"

// ContentSource produces lecture content for a topic.
type ContentSource interface {
	Generate(ctx context.Context, topic, style, duration string) (Content, error)
}

// Synthesizer narrates one segment into outputPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, narration, voice, outputPath string) (tts.Outcome, error)
}

// RunStore allocates run directories and addresses their artifacts.
type RunStore interface {
	NewRun() (store.Allocation, error)
	SlideURI(id string, n int) string
	AudioURI(id string, n int) string
}

// Recorder receives the pipeline timeline. *journal.Store satisfies it.
type Recorder interface {
	BeginRequest(ctx context.Context, requestID, topic string) error
	AppendEvent(ctx context.Context, evt journal.Event) error
	FinishRequest(ctx context.Context, requestID, lectureID, status string) error
}

// PipelineConfig carries request defaults and optional outputs.
type PipelineConfig struct {
	DefaultVoice string
	DefaultStyle string
	Cover        bool
}

// Pipeline drives content generation, rendering and synthesis for one request at a time per call.
type Pipeline struct {
	content  ContentSource
	speech   Synthesizer
	store    RunStore
	recorder Recorder
	cfg      PipelineConfig
	logger   *slog.Logger

	tracer   trace.Tracer
	runs     metric.Int64Counter
	segments metric.Int64Counter
	audio    metric.Int64Counter
	latency  metric.Float64Histogram

	mu        sync.RWMutex
	listeners []func(context.Context, *Run)
}

// NewPipeline wires the collaborators. recorder may be nil.
func NewPipeline(content ContentSource, speech Synthesizer, runs RunStore, recorder Recorder, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	p := &Pipeline{
		content:  content,
		speech:   speech,
		store:    runs,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "lecture-pipeline")),
		tracer:   otel.Tracer(instrumentationName),
	}
	if err := p.initMetrics(); err != nil {
		p.logger.Warn("failed to initialize metrics", slogError(err))
	}
	return p
}

func (p *Pipeline) initMetrics() error {
	meter := otel.Meter(instrumentationName)
	var err error
	if p.runs, err = meter.Int64Counter("aether.lecture.runs",
		metric.WithDescription("Lecture runs by outcome")); err != nil {
		return err
	}
	if p.segments, err = meter.Int64Counter("aether.lecture.segments",
		metric.WithDescription("Rendered lecture segments")); err != nil {
		return err
	}
	if p.audio, err = meter.Int64Counter("aether.lecture.audio",
		metric.WithDescription("Segment synthesis outcomes")); err != nil {
		return err
	}
	p.latency, err = meter.Float64Histogram("aether.lecture.duration",
		metric.WithDescription("Lecture run duration"), metric.WithUnit("s"))
	return err
}

// OnCompleted registers fn to be called after every successful run.
func (p *Pipeline) OnCompleted(fn func(context.Context, *Run)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Run generates one lecture. Content failures abort the run before any directory is created.
// Once directories exist, a failed slide write or synthesis only drops that artifact's reference.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Run, error) {
	req, err := req.Normalize(p.cfg.DefaultVoice, p.cfg.DefaultStyle)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "lecture.run", trace.WithAttributes(
		attribute.String("lecture.request_id", requestID),
		attribute.String("lecture.duration", req.Duration),
		attribute.String("lecture.style", req.Style),
	))
	defer span.End()
	traceID := span.SpanContext().TraceID().String()

	log := p.logger.With(slog.String("request_id", requestID))
	p.begin(ctx, requestID, req.Topic)
	p.record(ctx, journal.Event{RequestID: requestID, TraceID: traceID, Type: journal.EventGenerationStarted})

	content, err := p.content.Generate(llm.WithCorrelation(ctx, requestID, traceID), req.Topic, req.Style, req.Duration)
	if err != nil {
		p.fail(ctx, span, requestID, traceID, "", err)
		return nil, err
	}

	alloc, err := p.store.NewRun()
	if err != nil {
		storageErr := &StorageError{Op: "allocate run", Err: err}
		p.fail(ctx, span, requestID, traceID, "", storageErr)
		return nil, storageErr
	}
	span.SetAttributes(attribute.String("lecture.id", alloc.ID))
	log = log.With(slog.String("lecture_id", alloc.ID))
	p.record(ctx, journal.Event{RequestID: requestID, LectureID: alloc.ID, TraceID: traceID, Type: journal.EventRunAllocated})

	run := &Run{
		ID:        alloc.ID,
		Request:   req,
		Title:     content.Title,
		Segments:  make([]Segment, 0, len(content.Segments)),
		CreatedAt: alloc.CreatedAt,
	}
	total := len(content.Segments)
	for i, sc := range content.Segments {
		n := i + 1
		seg := p.segment(ctx, log, alloc, req.Voice, sc, n, total)
		if seg.slideErr != nil {
			p.record(ctx, journal.Event{
				RequestID: requestID, LectureID: alloc.ID, TraceID: traceID,
				Type: journal.EventSegmentSlide, Segment: n, Detail: seg.slideErr.Error(),
			})
		}
		p.record(ctx, journal.Event{
			RequestID: requestID, LectureID: alloc.ID, TraceID: traceID,
			Type: journal.EventSegmentAudio, Segment: n, Detail: seg.outcome.String(),
		})
		run.Segments = append(run.Segments, seg.Segment)
	}

	p.record(ctx, journal.Event{
		RequestID: requestID, LectureID: alloc.ID, TraceID: traceID,
		Type: journal.EventRunCompleted, Detail: fmt.Sprintf("%d segments", total),
	})
	p.finish(ctx, requestID, alloc.ID, journal.StatusCompleted)
	p.observe(ctx, "completed", start)
	span.SetAttributes(attribute.Int("lecture.segments", total))
	log.Info("lecture generated", slog.Int("segments", total), slog.Duration("elapsed", time.Since(start)))

	p.mu.RLock()
	listeners := append([]func(context.Context, *Run){}, p.listeners...)
	p.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, run)
	}
	return run, nil
}

type builtSegment struct {
	Segment
	outcome  tts.Outcome
	slideErr error
}

// segment renders and voices one segment. A slide that cannot be written leaves
// VisualRef empty, the same way a failed synthesis leaves AudioRef empty.
func (p *Pipeline) segment(ctx context.Context, log *slog.Logger, alloc store.Allocation, voice string, sc SegmentContent, n, total int) builtSegment {
	out := builtSegment{Segment: Segment{
		Index:        n,
		Title:        sc.Title,
		Bullets:      sc.Bullets,
		VisualPrompt: sc.VisualPrompt,
		Narration:    sc.Narration,
	}}

	title := sc.Title
	if title == "" {
		title = fmt.Sprintf("Slide %d", n)
	}
	doc := slide.Build(title, sc.Bullets, n, total)
	if err := os.WriteFile(filepath.Join(alloc.VisualsDir, store.SlideName(n)), doc.Bytes(), 0o644); err != nil {
		out.slideErr = &StorageError{Op: fmt.Sprintf("write slide %d", n), Err: err}
		log.Warn("slide write failed", slog.Int("segment", n), slogError(out.slideErr))
	} else {
		out.VisualRef = p.store.SlideURI(alloc.ID, n)
		if p.segments != nil {
			p.segments.Add(ctx, 1)
		}
		if p.cfg.Cover && n == 1 {
			if err := slide.RenderCover(doc, filepath.Join(alloc.VisualsDir, slide.CoverFile)); err != nil {
				log.Warn("cover render failed", slogError(err))
			}
		}
	}

	outcome, err := p.speech.Synthesize(ctx, sc.Narration, voice, filepath.Join(alloc.AudioDir, store.AudioName(n)))
	out.outcome = outcome
	if err != nil {
		log.Warn("segment synthesis failed", slog.Int("segment", n), slogError(err))
	}
	if outcome == tts.OutcomeSynthesized {
		out.AudioRef = p.store.AudioURI(alloc.ID, n)
	}
	if p.audio != nil {
		p.audio.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
	}
	return out
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, requestID, traceID, lectureID string, err error) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	p.record(ctx, journal.Event{
		RequestID: requestID, LectureID: lectureID, TraceID: traceID,
		Type: journal.EventGenerationFailed, Detail: err.Error(),
	})
	p.finish(ctx, requestID, lectureID, journal.StatusFailed)
	p.observe(ctx, ErrorKind(err), time.Time{})
}

func (p *Pipeline) observe(ctx context.Context, outcome string, start time.Time) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if p.runs != nil {
		p.runs.Add(ctx, 1, attrs)
	}
	if p.latency != nil && !start.IsZero() {
		p.latency.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func (p *Pipeline) begin(ctx context.Context, requestID, topic string) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.BeginRequest(ctx, requestID, topic); err != nil {
		p.logger.Warn("journal begin failed", slogError(err))
	}
}

func (p *Pipeline) record(ctx context.Context, evt journal.Event) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.AppendEvent(ctx, evt); err != nil {
		p.logger.Warn("journal append failed", slog.String("event", evt.Type), slogError(err))
	}
}

func (p *Pipeline) finish(ctx context.Context, requestID, lectureID, status string) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.FinishRequest(ctx, requestID, lectureID, status); err != nil {
		p.logger.Warn("journal finish failed", slogError(err))
	}
}
