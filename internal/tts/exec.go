package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// ExecConfig configures an engine backed by an external synthesis process.
type ExecConfig struct {
	Command    string
	ModelDir   string
	SampleRate int
	Channels   int
}

type execEngine struct {
	cmd        []string
	modelDir   string
	sampleRate int
	channels   int
}

type execRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	ModelDir   string `json:"model_dir"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
	Error     string `json:"error,omitempty"`
}

// NewExecEngine validates the model directory and the synthesis command. The
// command receives one JSON request on stdin and streams JSON lines carrying
// base64 PCM on stdout.
func NewExecEngine(cfg ExecConfig) (Engine, error) {
	if cfg.ModelDir == "" {
		return nil, fmt.Errorf("tts model directory not configured")
	}
	info, err := os.Stat(cfg.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("tts model directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tts model directory %s is not a directory", cfg.ModelDir)
	}

	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("tts command: %w", err)
	}
	return &execEngine{
		cmd:        args,
		modelDir:   cfg.ModelDir,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}, nil
}

func (e *execEngine) Save(ctx context.Context, text, outputPath, voice string) error {
	data, err := json.Marshal(execRequest{
		Text:       text,
		Voice:      voice,
		ModelDir:   e.modelDir,
		SampleRate: e.sampleRate,
		Channels:   e.channels,
	})
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	// wait drains stdout first so a child that keeps writing cannot block on a full pipe.
	wait := func() error {
		_, _ = io.Copy(io.Discard, stdout)
		return cmd.Wait()
	}

	var pcm []byte
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			_ = wait()
			return fmt.Errorf("decode tts response: %w", err)
		}
		if resp.Error != "" {
			_ = wait()
			return fmt.Errorf("tts engine: %s", resp.Error)
		}
		chunk, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
		if err != nil {
			_ = wait()
			return fmt.Errorf("decode tts pcm: %w", err)
		}
		pcm = append(pcm, chunk...)
		if resp.Final {
			break
		}
	}
	scanErr := scanner.Err()
	if err := wait(); err != nil {
		return fmt.Errorf("tts command failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	if scanErr != nil {
		return scanErr
	}
	if len(pcm) == 0 {
		return fmt.Errorf("tts command produced no audio")
	}
	return writeWAV(outputPath, pcm, e.sampleRate, e.channels)
}
