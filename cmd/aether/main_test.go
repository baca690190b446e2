package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "aether.yaml")
	data := []byte(`
llm:
  mode: mock
  requests_per_minute: 0
tts:
  mode: mock
  sample_rate: 8000
journal:
  retention_mode: persistent
  path: ` + filepath.Join(dir, "journal.db") + `
output:
  root: ` + filepath.Join(dir, "generated") + `
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestMaskKey(t *testing.T) {
	if got := maskKey("AIzaSyExample1234567890"); got != "AIzaSyExam...7890" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := maskKey("short"); got != "*****" {
		t.Fatalf("unexpected mask %q", got)
	}
}

func TestGenerateListExportHistory(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "generate", "--config", cfgPath, "Plate", "tectonics")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	id := strings.Fields(out)[0]
	if !strings.HasPrefix(id, "lecture_") || !strings.Contains(out, "(3 slides)") {
		t.Fatalf("unexpected generate output:\n%s", out)
	}

	out, err = execute(t, "list", "--config", cfgPath)
	if err != nil || !strings.Contains(out, id) {
		t.Fatalf("list: %v\n%s", err, out)
	}

	archive := filepath.Join(t.TempDir(), "bundle.tar.zst")
	out, err = execute(t, "export", "--config", cfgPath, "-o", archive, id)
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	if info, err := os.Stat(archive); err != nil || info.Size() == 0 {
		t.Fatalf("expected archive, got %v", err)
	}

	out, err = execute(t, "history", "--config", cfgPath)
	if err != nil || !strings.Contains(out, "completed") || !strings.Contains(out, "Plate tectonics") {
		t.Fatalf("history: %v\n%s", err, out)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil || strings.TrimSpace(out) != Version {
		t.Fatalf("unexpected version output %q %v", out, err)
	}
}
