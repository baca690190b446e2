package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/loqalabs/aetherlearn/internal/store"
	"github.com/spf13/cobra"
)

var (
	exportOutput string

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List generated lectures, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runs, err := store.New(cfg.Output).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no lectures yet")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LECTURE\tSLIDES\tCREATED")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", run.ID, run.SegmentCount, humanize.Time(run.CreatedAt))
			}
			return tw.Flush()
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export LECTURE_ID",
		Short: "Bundle a lecture's slides and audio into a .tar.zst archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			id := args[0]
			dest := exportOutput
			if dest == "" {
				dest = id + ".tar.zst"
			}
			f, err := os.Create(dest)
			if err != nil {
				return err
			}
			if err := store.New(cfg.Output).Export(cmd.Context(), id, f); err != nil {
				f.Close()
				_ = os.Remove(dest)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			info, err := os.Stat(dest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", dest, humanize.Bytes(uint64(info.Size())))
			return nil
		},
	}
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "archive path (default LECTURE_ID.tar.zst)")
}
