// Package lecture turns a topic into a rendered, narrated lecture run.
package lecture

import (
	"strings"
	"time"
)

const (
	DurationShort  = "short"
	DurationMedium = "medium"
	DurationLong   = "long"

	StyleEducational    = "educational"
	StyleConversational = "conversational"
	StyleFormal         = "formal"
)

var segmentTargets = map[string]int{
	DurationShort:  3,
	DurationMedium: 5,
	DurationLong:   7,
}

// SegmentTarget is the number of segments requested for a duration label.
// Unknown labels fall back to the short count.
func SegmentTarget(duration string) int {
	if n, ok := segmentTargets[duration]; ok {
		return n
	}
	return segmentTargets[DurationShort]
}

// Request is one lecture request.
type Request struct {
	Topic    string `json:"topic"`
	Duration string `json:"duration,omitempty"`
	Voice    string `json:"voice,omitempty"`
	Style    string `json:"style,omitempty"`
}

// Normalize trims the request and fills defaults. A blank topic is ErrInvalidRequest.
// Unknown duration and style labels pass through unchanged.
func (r Request) Normalize(defaultVoice, defaultStyle string) (Request, error) {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		return r, ErrInvalidRequest
	}
	r.Duration = strings.TrimSpace(r.Duration)
	if r.Duration == "" {
		r.Duration = DurationShort
	}
	r.Voice = strings.TrimSpace(r.Voice)
	if r.Voice == "" {
		r.Voice = defaultVoice
	}
	r.Style = strings.TrimSpace(r.Style)
	if r.Style == "" {
		r.Style = defaultStyle
	}
	if r.Style == "" {
		r.Style = StyleEducational
	}
	return r, nil
}

// Content is the parsed output of the text service.
type Content struct {
	Title    string
	Segments []SegmentContent
}

// SegmentContent is one generated slide.
type SegmentContent struct {
	Title        string
	Bullets      []string
	Narration    string
	VisualPrompt string
}

// Segment is one assembled slide of a run. AudioRef is empty when no audio was produced.
type Segment struct {
	Index        int
	Title        string
	Bullets      []string
	VisualPrompt string
	VisualRef    string
	AudioRef     string
	Narration    string
}

// Run is a completed lecture.
type Run struct {
	ID        string
	Request   Request
	Title     string
	Segments  []Segment
	CreatedAt time.Time
}

// Scripts returns each segment's narration in order.
func (r *Run) Scripts() []string {
	out := make([]string, len(r.Segments))
	for i, seg := range r.Segments {
		out[i] = seg.Narration
	}
	return out
}
