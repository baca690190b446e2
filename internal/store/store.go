// Package store lays out lecture runs on disk and enumerates past runs.
package store

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/aetherlearn/internal/config"
)

const (
	// RunPrefix starts every run identifier.
	RunPrefix = "lecture_"

	slidesDir = "slides"
	audioDir  = "audio"
)

// ErrUnknownRun is returned for ids that are malformed or have no visuals directory.
var ErrUnknownRun = errors.New("unknown lecture run")

// Allocation is the id and directory pair assigned to a new run.
type Allocation struct {
	ID         string
	VisualsDir string
	AudioDir   string
	CreatedAt  time.Time
}

// Summary describes a past run as inferred from the visuals tree.
type Summary struct {
	ID           string
	SegmentCount int
	CreatedAt    time.Time
}

// Store owns the output root: {root}/slides/{id} and {root}/audio/{id}.
type Store struct {
	visualsRoot string
	audioRoot   string
	urlPrefix   string
	clock       func() time.Time
	suffix      func() string
}

// New builds a store over cfg.Root. Nothing is created until the first run.
func New(cfg config.OutputConfig) *Store {
	return &Store{
		visualsRoot: filepath.Join(cfg.Root, slidesDir),
		audioRoot:   filepath.Join(cfg.Root, audioDir),
		urlPrefix:   strings.TrimRight(cfg.URLPrefix, "/"),
		clock:       time.Now,
		suffix:      randomSuffix,
	}
}

// VisualsRoot returns the directory holding one subdirectory per run.
func (s *Store) VisualsRoot() string { return s.visualsRoot }

// AudioRoot returns the directory holding per-run audio.
func (s *Store) AudioRoot() string { return s.audioRoot }

// NewRunID formats a run identifier: lecture_YYYYMMDD_HHMMSS_<6 hex>.
func NewRunID(now time.Time, suffix string) string {
	return RunPrefix + now.Format("20060102_150405") + "_" + suffix
}

func randomSuffix() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:6]
}

// NewRun allocates an id and creates its visuals and audio directories.
func (s *Store) NewRun() (Allocation, error) {
	now := s.clock()
	id := NewRunID(now, s.suffix())
	alloc := Allocation{
		ID:         id,
		VisualsDir: filepath.Join(s.visualsRoot, id),
		AudioDir:   filepath.Join(s.audioRoot, id),
		CreatedAt:  now,
	}
	if err := os.MkdirAll(alloc.VisualsDir, 0o755); err != nil {
		return Allocation{}, fmt.Errorf("create visuals dir: %w", err)
	}
	if err := os.MkdirAll(alloc.AudioDir, 0o755); err != nil {
		_ = os.RemoveAll(alloc.VisualsDir)
		return Allocation{}, fmt.Errorf("create audio dir: %w", err)
	}
	return alloc, nil
}

// SlideName is the file name of segment n's visual.
func SlideName(n int) string { return fmt.Sprintf("slide_%d.svg", n) }

// AudioName is the file name of segment n's audio.
func AudioName(n int) string { return fmt.Sprintf("audio_%d.wav", n) }

// SlideURI is the addressable location of segment n's visual.
func (s *Store) SlideURI(id string, n int) string {
	return path.Join(s.urlPrefix, slidesDir, id, SlideName(n))
}

// AudioURI is the addressable location of segment n's audio.
func (s *Store) AudioURI(id string, n int) string {
	return path.Join(s.urlPrefix, audioDir, id, AudioName(n))
}

// List scans the visuals tree for runs, newest first. A missing tree yields no runs.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.visualsRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read visuals root: %w", err)
	}

	var out []Summary
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), RunPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		count, err := countSlides(filepath.Join(s.visualsRoot, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{ID: entry.Name(), SegmentCount: count, CreatedAt: info.ModTime()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func countSlides(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.svg"))
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", dir, err)
	}
	return len(matches), nil
}

// ValidID reports whether id names a run and is safe to join onto a path.
func ValidID(id string) bool {
	if !strings.HasPrefix(id, RunPrefix) || len(id) == len(RunPrefix) {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && id != "." && id != ".." && !strings.Contains(id, "..")
}
