package store

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/loqalabs/aetherlearn/internal/config"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	return New(config.OutputConfig{Root: root, URLPrefix: "/generated"}), root
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestNewRunCleansUpOnFailure(t *testing.T) {
	s, root := newStore(t)
	blocker := filepath.Join(root, "audio")
	writeFile(t, blocker)

	if _, err := s.NewRun(); err == nil {
		t.Fatal("expected allocation to fail when the audio root is a file")
	}
	entries, err := os.ReadDir(s.VisualsRoot())
	if err != nil {
		t.Fatalf("read visuals root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed allocation left %d directories behind", len(entries))
	}
}

func TestNewRunAllocatesDirectories(t *testing.T) {
	s, root := newStore(t)
	s.clock = func() time.Time { return time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC) }
	s.suffix = func() string { return "abc123" }

	alloc, err := s.NewRun()
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	if alloc.ID != "lecture_20250314_150926_abc123" {
		t.Fatalf("unexpected id %q", alloc.ID)
	}
	if alloc.VisualsDir != filepath.Join(root, "slides", alloc.ID) || alloc.AudioDir != filepath.Join(root, "audio", alloc.ID) {
		t.Fatalf("unexpected dirs %+v", alloc)
	}
	for _, dir := range []string{alloc.VisualsDir, alloc.AudioDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", dir)
		}
	}
}

func TestRandomRunIDFormat(t *testing.T) {
	s, _ := newStore(t)
	alloc, err := s.NewRun()
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	if !regexp.MustCompile(`^lecture_\d{8}_\d{6}_[0-9a-f]{6}$`).MatchString(alloc.ID) {
		t.Fatalf("unexpected id format %q", alloc.ID)
	}
}

func TestURIs(t *testing.T) {
	s, _ := newStore(t)
	if got := s.SlideURI("lecture_a", 2); got != "/generated/slides/lecture_a/slide_2.svg" {
		t.Fatalf("unexpected slide uri %q", got)
	}
	if got := s.AudioURI("lecture_a", 3); got != "/generated/audio/lecture_a/audio_3.wav" {
		t.Fatalf("unexpected audio uri %q", got)
	}
	trailing := New(config.OutputConfig{Root: "out", URLPrefix: "/media/"})
	if got := trailing.SlideURI("lecture_a", 1); got != "/media/slides/lecture_a/slide_1.svg" {
		t.Fatalf("unexpected uri with trailing slash prefix %q", got)
	}
}

func TestListMissingRoot(t *testing.T) {
	s, _ := newStore(t)
	runs, err := s.List()
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected empty listing, got %v %v", runs, err)
	}
}

func TestListCountsSlidesNewestFirst(t *testing.T) {
	s, root := newStore(t)
	slides := filepath.Join(root, "slides")

	older := filepath.Join(slides, "lecture_20250101_000000_aaaaaa")
	newer := filepath.Join(slides, "lecture_20250102_000000_bbbbbb")
	writeFile(t, filepath.Join(older, "slide_1.svg"))
	writeFile(t, filepath.Join(older, "slide_2.svg"))
	writeFile(t, filepath.Join(newer, "slide_1.svg"))
	writeFile(t, filepath.Join(newer, "cover.png"))
	writeFile(t, filepath.Join(slides, "scratch", "slide_1.svg"))
	writeFile(t, filepath.Join(slides, "lecture_notadir"))
	if err := os.MkdirAll(filepath.Join(slides, "lecture_empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mustChtimes(t, older, base)
	mustChtimes(t, newer, base.Add(time.Hour))
	mustChtimes(t, filepath.Join(slides, "lecture_empty"), base.Add(-time.Hour))

	runs, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %+v", runs)
	}
	if runs[0].ID != filepath.Base(newer) || runs[0].SegmentCount != 1 {
		t.Fatalf("unexpected first run %+v", runs[0])
	}
	if runs[1].ID != filepath.Base(older) || runs[1].SegmentCount != 2 {
		t.Fatalf("unexpected second run %+v", runs[1])
	}
	if runs[2].ID != "lecture_empty" || runs[2].SegmentCount != 0 {
		t.Fatalf("unexpected third run %+v", runs[2])
	}
	if !sort.SliceIsSorted(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) }) {
		t.Fatalf("expected descending order")
	}
}

func mustChtimes(t *testing.T, path string, ts time.Time) {
	t.Helper()
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestValidID(t *testing.T) {
	tests := map[string]bool{
		"lecture_20250101_000000_abcdef": true,
		"lecture_":                       false,
		"other":                          false,
		"lecture_../etc":                 false,
		`lecture_a\b`:                    false,
	}
	for id, want := range tests {
		if got := ValidID(id); got != want {
			t.Errorf("ValidID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestExportRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	alloc, err := s.NewRun()
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	writeFile(t, filepath.Join(alloc.VisualsDir, "slide_1.svg"))
	writeFile(t, filepath.Join(alloc.AudioDir, "audio_1.wav"))

	var buf bytes.Buffer
	if err := s.Export(context.Background(), alloc.ID, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	dec, err := zstd.NewReader(&buf)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	tr := tar.NewReader(dec)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar next: %v", err)
		}
		names = append(names, hdr.Name)
	}
	want := []string{alloc.ID + "/slides/slide_1.svg", alloc.ID + "/audio/audio_1.wav"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("unexpected entries %v", names)
	}
}

func TestExportUnknownRun(t *testing.T) {
	s, _ := newStore(t)
	for _, id := range []string{"lecture_missing", "../etc"} {
		if err := s.Export(context.Background(), id, io.Discard); !errors.Is(err, ErrUnknownRun) {
			t.Fatalf("expected ErrUnknownRun for %q, got %v", id, err)
		}
	}
}
