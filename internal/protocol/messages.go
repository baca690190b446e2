package protocol

import (
	"time"

	"github.com/loqalabs/aetherlearn/internal/lecture"
)

const (
	SubjectLectureGenerate  = "lecture.generate"
	SubjectLectureCompleted = "lecture.run.completed"

	// StreamLectureRuns retains completion events when JetStream is available.
	StreamLectureRuns = "LECTURE_RUNS"
)

// GenerateRequest asks for a new lecture over HTTP or the bus.
type GenerateRequest struct {
	Topic    string `json:"topic"`
	Duration string `json:"duration,omitempty"`
	Voice    string `json:"voice,omitempty"`
	Style    string `json:"style,omitempty"`
}

// Lecture converts the request into the pipeline's request type.
func (r GenerateRequest) Lecture() lecture.Request {
	return lecture.Request{Topic: r.Topic, Duration: r.Duration, Voice: r.Voice, Style: r.Style}
}

// Slide is one rendered segment. AudioURL is null when no audio exists; SVGURL is
// empty when the slide could not be written.
type Slide struct {
	SlideNum    int      `json:"slide_num"`
	Title       string   `json:"title"`
	Bullets     []string `json:"bullets"`
	ImagePrompt string   `json:"image_prompt"`
	SVGURL      string   `json:"svg_url"`
	AudioURL    *string  `json:"audio_url"`
}

// Lecture is the response body for a generated lecture.
type Lecture struct {
	LectureID string    `json:"lecture_id"`
	Topic     string    `json:"topic"`
	Title     string    `json:"title"`
	Slides    []Slide   `json:"slides"`
	Script    []string  `json:"script"`
	CreatedAt time.Time `json:"created_at"`
}

// FromRun builds the wire form of a completed run.
func FromRun(run *lecture.Run) Lecture {
	out := Lecture{
		LectureID: run.ID,
		Topic:     run.Request.Topic,
		Title:     run.Title,
		Slides:    make([]Slide, 0, len(run.Segments)),
		Script:    run.Scripts(),
		CreatedAt: run.CreatedAt,
	}
	for _, seg := range run.Segments {
		s := Slide{
			SlideNum:    seg.Index,
			Title:       seg.Title,
			Bullets:     seg.Bullets,
			ImagePrompt: seg.VisualPrompt,
			SVGURL:      seg.VisualRef,
		}
		if s.Bullets == nil {
			s.Bullets = []string{}
		}
		if seg.AudioRef != "" {
			ref := seg.AudioRef
			s.AudioURL = &ref
		}
		out.Slides = append(out.Slides, s)
	}
	return out
}

// GenerateReply answers a bus generate request.
type GenerateReply struct {
	Lecture   *Lecture `json:"lecture,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
}

// RunCompleted is published after every successful run.
type RunCompleted struct {
	LectureID  string    `json:"lecture_id"`
	Topic      string    `json:"topic"`
	SlideCount int       `json:"slide_count"`
	AudioCount int       `json:"audio_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// CompletedFromRun summarizes run for the completion event.
func CompletedFromRun(run *lecture.Run) RunCompleted {
	evt := RunCompleted{
		LectureID:  run.ID,
		Topic:      run.Request.Topic,
		SlideCount: len(run.Segments),
		CreatedAt:  run.CreatedAt,
	}
	for _, seg := range run.Segments {
		if seg.AudioRef != "" {
			evt.AudioCount++
		}
	}
	return evt
}

// LectureSummary is one entry of the lecture listing. Created is Unix seconds.
type LectureSummary struct {
	LectureID  string  `json:"lecture_id"`
	SlideCount int     `json:"slide_count"`
	Created    float64 `json:"created"`
}

// LectureList is the listing response body.
type LectureList struct {
	Lectures []LectureSummary `json:"lectures"`
}

// Health reports liveness and speech availability.
type Health struct {
	Status string `json:"status"`
	TTS    bool   `json:"tts"`
}

// ErrorBody is the HTTP error envelope.
type ErrorBody struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
}
