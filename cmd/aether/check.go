package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loqalabs/aetherlearn/internal/lecture"
	"github.com/loqalabs/aetherlearn/internal/llm"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the text generation credential with a one-line request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		gen, closeGen, err := llm.New(cmd.Context(), cfg.LLM)
		defer closeGen()
		if errors.Is(err, llm.ErrMissingCredential) {
			fmt.Fprintln(out, "no API key found; set GEMINI_API_KEY in the environment or a .env file")
			return err
		}
		if err != nil {
			return err
		}
		if cfg.LLM.Mode == "gemini" {
			fmt.Fprintf(out, "found API key: %s\n", maskKey(cfg.LLM.APIKey))
		}

		fmt.Fprintf(out, "testing %s (%s)...\n", cfg.LLM.Model, cfg.LLM.Mode)
		reply, err := llm.Collect(cmd.Context(), gen, llm.Request{Prompt: "Say 'Hello from Gemini!' in one sentence.", MaxTokens: 64})
		if err != nil {
			genErr := lecture.ClassifyUpstream(err)
			if genErr.Kind == lecture.KindRateLimited {
				fmt.Fprintln(out, "quota error: the key may be invalid or expired, or the free tier is exhausted.")
				fmt.Fprintln(out, "get a new key from https://aistudio.google.com/app/apikey or wait a few minutes.")
			}
			return genErr
		}
		fmt.Fprintf(out, "success: %s\n", truncate(strings.TrimSpace(reply), 50))
		return nil
	},
}

func maskKey(key string) string {
	if len(key) < 14 {
		return strings.Repeat("*", len(key))
	}
	return key[:10] + "..." + key[len(key)-4:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
