package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/loqalabs/aetherlearn/internal/config"
	"github.com/loqalabs/aetherlearn/internal/lecture"
	"github.com/loqalabs/aetherlearn/internal/protocol"
	"github.com/loqalabs/aetherlearn/internal/runtime"
	"github.com/loqalabs/aetherlearn/internal/store"
	"github.com/spf13/cobra"
)

var (
	genDuration string
	genVoice    string
	genStyle    string
	genJSON     bool

	generateCmd = &cobra.Command{
		Use:     "generate TOPIC",
		Short:   "Generate a lecture for TOPIC",
		Example: "aether generate \"Photosynthesis\" --duration medium --style conversational",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runGenerate,
	}
)

func init() {
	generateCmd.Flags().StringVarP(&genDuration, "duration", "d", lecture.DurationShort, "short, medium or long")
	generateCmd.Flags().StringVar(&genVoice, "voice", "", "speech voice (defaults to lecture.default_voice)")
	generateCmd.Flags().StringVarP(&genStyle, "style", "s", "", "educational, conversational or formal")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "print the response body as JSON")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	req := lecture.Request{
		Topic:    strings.Join(args, " "),
		Duration: genDuration,
		Voice:    genVoice,
		Style:    genStyle,
	}
	return withStack(cmd.Context(), func(cfg config.Config, stack *runtime.Stack) error {
		run, err := stack.Pipeline.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if genJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(protocol.FromRun(run))
		}

		fmt.Fprintf(out, "%s  %q (%d slides)\n", run.ID, run.Title, len(run.Segments))
		for _, seg := range run.Segments {
			audio := "no audio"
			if seg.AudioRef != "" {
				audio = filepath.Join(stack.Store.AudioRoot(), run.ID, store.AudioName(seg.Index))
			}
			fmt.Fprintf(out, "  %d. %-40s %s\n", seg.Index, seg.Title, audio)
		}
		fmt.Fprintf(out, "slides: %s\n", filepath.Join(stack.Store.VisualsRoot(), run.ID))
		return nil
	})
}
