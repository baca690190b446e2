package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/loqalabs/aetherlearn/internal/journal"
	"github.com/spf13/cobra"
)

var (
	historyLimit int

	historyCmd = &cobra.Command{
		Use:   "history [REQUEST_ID]",
		Short: "Show recent lecture requests, or the timeline of one request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			js, err := journal.Open(cmd.Context(), cfg.Journal, newLogger())
			if err != nil {
				return err
			}
			defer js.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if len(args) == 1 {
				events, err := js.ListRequestEvents(cmd.Context(), args[0], historyLimit)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "WHEN\tEVENT\tSEGMENT\tDETAIL")
				for _, evt := range events {
					seg := "-"
					if evt.Segment > 0 {
						seg = fmt.Sprint(evt.Segment)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", humanize.Time(evt.CreatedAt), evt.Type, seg, evt.Detail)
				}
				return tw.Flush()
			}

			reqs, err := js.ListRequests(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "REQUEST\tSTATUS\tLECTURE\tTOPIC\tWHEN")
			for _, r := range reqs {
				lectureID := r.LectureID
				if lectureID == "" {
					lectureID = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.RequestID, r.Status, lectureID, r.Topic, humanize.Time(r.CreatedAt))
			}
			return tw.Flush()
		},
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum rows to show")
}
