// Command aether generates and inspects lectures without running the daemon.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/loqalabs/aetherlearn/internal/config"
	"github.com/loqalabs/aetherlearn/internal/runtime"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0-dev"

	configFile string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:           "aether",
		Short:         "Generate narrated slide lectures from a topic",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")
	rootCmd.AddCommand(versionCmd, generateCmd, listCmd, exportCmd, historyCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func loadConfig() (config.Config, error) {
	return config.Load(configFile)
}

func withStack(ctx context.Context, fn func(cfg config.Config, stack *runtime.Stack) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stack, err := runtime.NewStack(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(cfg, stack)
}
