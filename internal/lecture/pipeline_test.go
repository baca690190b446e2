package lecture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/loqalabs/aetherlearn/internal/config"
	"github.com/loqalabs/aetherlearn/internal/journal"
	"github.com/loqalabs/aetherlearn/internal/llm"
	"github.com/loqalabs/aetherlearn/internal/slide"
	"github.com/loqalabs/aetherlearn/internal/store"
	"github.com/loqalabs/aetherlearn/internal/tts"
)

type fileEngine struct {
	mu    sync.Mutex
	texts []string
}

func (f *fileEngine) Save(ctx context.Context, text, outputPath, voice string) error {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if strings.Contains(text, "explode") {
		return errors.New("engine exploded")
	}
	return os.WriteFile(outputPath, []byte("RIFF"), 0o644)
}

type eventLog struct {
	mu       sync.Mutex
	types    []string
	statuses []string
}

func (e *eventLog) BeginRequest(ctx context.Context, requestID, topic string) error { return nil }

func (e *eventLog) AppendEvent(ctx context.Context, evt journal.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, evt.Type)
	return nil
}

func (e *eventLog) FinishRequest(ctx context.Context, requestID, lectureID, status string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses = append(e.statuses, status)
	return nil
}

type harness struct {
	pipeline *Pipeline
	store    *store.Store
	root     string
	engine   *fileEngine
	events   *eventLog
}

func newHarness(t *testing.T, gen llm.Generator, loader tts.Loader, cover bool) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		store:  store.New(config.OutputConfig{Root: root, URLPrefix: "/generated"}),
		root:   root,
		engine: &fileEngine{},
		events: &eventLog{},
	}
	if loader == nil {
		loader = func(context.Context) (tts.Engine, error) { return h.engine, nil }
	}
	content := NewContentGenerator(gen, nil, GeneratorOptions{}, newLogger())
	speech := tts.NewSpeech(loader, newLogger())
	h.pipeline = NewPipeline(content, speech, h.store, h.events, PipelineConfig{DefaultVoice: "af_sky", DefaultStyle: "educational", Cover: cover}, newLogger())
	return h
}

func (h *harness) assertNoRuns(t *testing.T) {
	t.Helper()
	for _, dir := range []string{h.store.VisualsRoot(), h.store.AudioRoot()} {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			t.Fatalf("read %s: %v", dir, err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected no run directories under %s, found %d", dir, len(entries))
		}
	}
}

const twoSlides = `Sure, here is a lecture.
{"title":"Photosynthesis","slides":[
 {"title":"Light","bullets":["Sun","Chlorophyll"],"script":"Light comes in. [PAUSE] Then sugar.","image_prompt":"sun"},
 {"title":"Sugar","bullets":["Glucose"],"script":"Plants make sugar.","image_prompt":"sugar"}
]}`

func TestRunCountFollowsGeneratedContent(t *testing.T) {
	h := newHarness(t, llm.NewStaticGenerator(twoSlides), nil, false)
	run, err := h.pipeline.Run(context.Background(), Request{Topic: "Photosynthesis", Duration: "short"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(run.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(run.Segments))
	}
	if run.Title != "Photosynthesis" || run.Request.Voice != "af_sky" || run.Request.Style != "educational" {
		t.Fatalf("unexpected run header %+v", run)
	}
	for i, seg := range run.Segments {
		n := i + 1
		if seg.Index != n {
			t.Fatalf("segment %d has index %d", i, seg.Index)
		}
		if seg.VisualRef != h.store.SlideURI(run.ID, n) || seg.AudioRef != h.store.AudioURI(run.ID, n) {
			t.Fatalf("unexpected refs %+v", seg)
		}
		if _, err := os.Stat(filepath.Join(h.store.VisualsRoot(), run.ID, store.SlideName(n))); err != nil {
			t.Fatalf("slide %d missing: %v", n, err)
		}
		if _, err := os.Stat(filepath.Join(h.store.AudioRoot(), run.ID, store.AudioName(n))); err != nil {
			t.Fatalf("audio %d missing: %v", n, err)
		}
	}
	if run.Segments[0].Title != "Light" || run.Segments[1].Title != "Sugar" {
		t.Fatalf("segment order changed")
	}
	if h.engine.texts[0] != "Light comes in. ... Then sugar." {
		t.Fatalf("pause marker not replaced: %q", h.engine.texts[0])
	}
	svg, err := os.ReadFile(filepath.Join(h.store.VisualsRoot(), run.ID, "slide_2.svg"))
	if err != nil {
		t.Fatalf("read slide: %v", err)
	}
	if !strings.Contains(string(svg), "Slide 2/2") {
		t.Fatalf("footer should use the actual segment count")
	}
	want := []string{journal.EventGenerationStarted, journal.EventRunAllocated, journal.EventSegmentAudio, journal.EventSegmentAudio, journal.EventRunCompleted}
	if strings.Join(h.events.types, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected journal events %v", h.events.types)
	}
	if len(h.events.statuses) != 1 || h.events.statuses[0] != journal.StatusCompleted {
		t.Fatalf("unexpected statuses %v", h.events.statuses)
	}
	if got := run.Scripts(); len(got) != 2 || got[0] != "Light comes in. [PAUSE] Then sugar." {
		t.Fatalf("scripts must keep the raw narration: %q", got)
	}
}

func TestRunRateLimitedLeavesNoDirectories(t *testing.T) {
	h := newHarness(t, failingGenerator{err: errors.New("googleapi: Error 429: Resource has been exhausted")}, nil, false)
	_, err := h.pipeline.Run(context.Background(), Request{Topic: "Photosynthesis"})
	if !IsKind(err, KindRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	h.assertNoRuns(t)
	runs, err := h.store.List()
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected empty listing, got %v %v", runs, err)
	}
	if h.events.statuses[0] != journal.StatusFailed {
		t.Fatalf("expected failed journal status")
	}
}

func TestRunWithoutSpeechEngine(t *testing.T) {
	loader := func(context.Context) (tts.Engine, error) { return nil, errors.New("model dir missing") }
	h := newHarness(t, llm.NewStaticGenerator(twoSlides), loader, false)
	run, err := h.pipeline.Run(context.Background(), Request{Topic: "Photosynthesis"})
	if err != nil {
		t.Fatalf("run must succeed without speech: %v", err)
	}
	if len(run.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(run.Segments))
	}
	for _, seg := range run.Segments {
		if seg.VisualRef == "" || seg.AudioRef != "" {
			t.Fatalf("expected visual without audio, got %+v", seg)
		}
	}
	entries, err := os.ReadDir(filepath.Join(h.store.AudioRoot(), run.ID))
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty audio dir, got %v %v", entries, err)
	}
}

func TestRunWithoutJSONFailsBeforeAllocation(t *testing.T) {
	h := newHarness(t, llm.NewStaticGenerator("I'm sorry, I can't produce that lecture."), nil, false)
	_, err := h.pipeline.Run(context.Background(), Request{Topic: "Photosynthesis"})
	if !IsKind(err, KindInvalidResponse) {
		t.Fatalf("expected invalid response, got %v", err)
	}
	h.assertNoRuns(t)
}

func TestRunMissingCredential(t *testing.T) {
	root := t.TempDir()
	runs := store.New(config.OutputConfig{Root: root, URLPrefix: "/generated"})
	content := NewContentGenerator(nil, llm.ErrMissingCredential, GeneratorOptions{}, newLogger())
	p := NewPipeline(content, tts.NewSpeech(nil, newLogger()), runs, nil, PipelineConfig{}, newLogger())

	_, err := p.Run(context.Background(), Request{Topic: "x"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if _, statErr := os.Stat(runs.VisualsRoot()); !os.IsNotExist(statErr) {
		t.Fatalf("no directories may exist after a configuration error")
	}
}

func TestRunRejectsBlankTopic(t *testing.T) {
	h := newHarness(t, llm.NewStaticGenerator(twoSlides), nil, false)
	if _, err := h.pipeline.Run(context.Background(), Request{Topic: "   "}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	h.assertNoRuns(t)
}

func TestRunBlankNarrationSkipsSynthesis(t *testing.T) {
	gen := llm.NewStaticGenerator(`{"slides":[{"title":"Quiet","script":" \t\n "},{"title":"Empty"},{"title":"Loud","script":"Hello"}]}`)
	h := newHarness(t, gen, nil, false)
	run, err := h.pipeline.Run(context.Background(), Request{Topic: "x"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Segments[0].AudioRef != "" || run.Segments[1].AudioRef != "" || run.Segments[2].AudioRef == "" {
		t.Fatalf("unexpected audio refs %+v", run.Segments)
	}
	if run.Segments[0].VisualRef == "" || run.Segments[1].VisualRef == "" {
		t.Fatalf("skipped segments keep their slides: %+v", run.Segments)
	}
	if len(h.engine.texts) != 1 || h.engine.texts[0] != "Hello" {
		t.Fatalf("engine must only see the non-blank narration, got %q", h.engine.texts)
	}
}

func TestRunPauseOnlyNarrationIsSynthesized(t *testing.T) {
	gen := llm.NewStaticGenerator(`{"slides":[{"title":"Beat","script":"[PAUSE]"}]}`)
	h := newHarness(t, gen, nil, false)
	run, err := h.pipeline.Run(context.Background(), Request{Topic: "x"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Segments[0].AudioRef == "" {
		t.Fatalf("expected audio for a pause-only narration")
	}
	if len(h.engine.texts) != 1 || h.engine.texts[0] != "..." {
		t.Fatalf("expected the engine to receive an ellipsis, got %q", h.engine.texts)
	}
}

// missingVisuals hands out a visuals directory that was never created.
type missingVisuals struct {
	*store.Store
	root string
}

func (m missingVisuals) NewRun() (store.Allocation, error) {
	alloc := store.Allocation{
		ID:         "lecture_20250101_000000_abcdef",
		VisualsDir: filepath.Join(m.root, "missing", "lecture_20250101_000000_abcdef"),
		AudioDir:   filepath.Join(m.root, "audio", "lecture_20250101_000000_abcdef"),
	}
	return alloc, os.MkdirAll(alloc.AudioDir, 0o755)
}

func TestRunSlideWriteFailureDegrades(t *testing.T) {
	root := t.TempDir()
	runs := missingVisuals{Store: store.New(config.OutputConfig{Root: root, URLPrefix: "/generated"}), root: root}
	engine := &fileEngine{}
	events := &eventLog{}
	content := NewContentGenerator(llm.NewStaticGenerator(twoSlides), nil, GeneratorOptions{}, newLogger())
	speech := tts.NewSpeech(func(context.Context) (tts.Engine, error) { return engine, nil }, newLogger())
	p := NewPipeline(content, speech, runs, events, PipelineConfig{Cover: true}, newLogger())

	run, err := p.Run(context.Background(), Request{Topic: "Photosynthesis"})
	if err != nil {
		t.Fatalf("slide write failures must not abort the run: %v", err)
	}
	if len(run.Segments) != 2 {
		t.Fatalf("expected both segments, got %d", len(run.Segments))
	}
	for _, seg := range run.Segments {
		if seg.VisualRef != "" {
			t.Fatalf("unwritten slide must have no visual ref: %+v", seg)
		}
		if seg.AudioRef == "" || seg.Title == "" {
			t.Fatalf("segment must keep audio and content: %+v", seg)
		}
	}
	var slideEvents int
	for _, typ := range events.types {
		if typ == journal.EventSegmentSlide {
			slideEvents++
		}
	}
	if slideEvents != 2 || events.statuses[0] != journal.StatusCompleted {
		t.Fatalf("unexpected journal %v %v", events.types, events.statuses)
	}
}

func TestRunSynthesisFailureIsPerSegment(t *testing.T) {
	gen := llm.NewStaticGenerator(`{"slides":[{"script":"one"},{"script":"explode"},{"script":"three"}]}`)
	h := newHarness(t, gen, nil, false)
	run, err := h.pipeline.Run(context.Background(), Request{Topic: "x"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Segments[0].AudioRef == "" || run.Segments[1].AudioRef != "" || run.Segments[2].AudioRef == "" {
		t.Fatalf("unexpected audio refs %+v", run.Segments)
	}
	if _, err := os.Stat(filepath.Join(h.store.AudioRoot(), run.ID, "audio_2.wav")); !os.IsNotExist(err) {
		t.Fatalf("failed segment must leave no audio file")
	}
}

func TestRunZeroSegments(t *testing.T) {
	h := newHarness(t, llm.NewStaticGenerator(`{"title":"Empty"}`), nil, false)
	run, err := h.pipeline.Run(context.Background(), Request{Topic: "x", Duration: "long"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(run.Segments) != 0 {
		t.Fatalf("expected no segments")
	}
	runs, err := h.store.List()
	if err != nil || len(runs) != 1 || runs[0].ID != run.ID || runs[0].SegmentCount != 0 {
		t.Fatalf("expected one empty run in listing, got %+v %v", runs, err)
	}
}

func TestRunUntitledSegmentRendersFallback(t *testing.T) {
	h := newHarness(t, llm.NewStaticGenerator(`{"slides":[{"bullets":["a"]}]}`), nil, false)
	run, err := h.pipeline.Run(context.Background(), Request{Topic: "x"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Segments[0].Title != "" {
		t.Fatalf("segment title must stay empty")
	}
	svg, err := os.ReadFile(filepath.Join(h.store.VisualsRoot(), run.ID, "slide_1.svg"))
	if err != nil {
		t.Fatalf("read slide: %v", err)
	}
	if !strings.Contains(string(svg), ">Slide 1</text>") {
		t.Fatalf("expected fallback title in slide")
	}
}

func TestRunCoverDoesNotChangeListing(t *testing.T) {
	h := newHarness(t, llm.NewStaticGenerator(twoSlides), nil, true)
	run, err := h.pipeline.Run(context.Background(), Request{Topic: "x"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.store.VisualsRoot(), run.ID, slide.CoverFile)); err != nil {
		t.Fatalf("expected cover: %v", err)
	}
	runs, err := h.store.List()
	if err != nil || runs[0].SegmentCount != 2 {
		t.Fatalf("cover must not be counted, got %+v %v", runs, err)
	}
}

func TestRunNotifiesListeners(t *testing.T) {
	h := newHarness(t, llm.NewStaticGenerator(twoSlides), nil, false)
	var got []string
	h.pipeline.OnCompleted(func(ctx context.Context, run *Run) { got = append(got, run.ID) })

	run, err := h.pipeline.Run(context.Background(), Request{Topic: "x"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := h.pipeline.Run(context.Background(), Request{Topic: ""}); err == nil {
		t.Fatal("expected error for blank topic")
	}
	if len(got) != 1 || got[0] != run.ID {
		t.Fatalf("unexpected notifications %v", got)
	}
}

func TestRunPassesRequestIDToBackend(t *testing.T) {
	rec := &promptRecorder{response: twoSlides}
	h := newHarness(t, rec, nil, false)
	if _, err := h.pipeline.Run(context.Background(), Request{Topic: "x"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.requests) != 1 {
		t.Fatalf("expected one backend call, got %d", len(rec.requests))
	}
	req := rec.requests[0]
	if req.RequestID == "" || req.TraceID == "" || !req.JSON {
		t.Fatalf("backend request missing correlation or json mode: %+v", req)
	}
}
