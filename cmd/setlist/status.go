package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func statusCommand(v *viper.Viper, flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent rebuild reports",
		Args:  cobra.NoArgs,
		RunE: withApp(v, flags, func(_ context.Context, cmd *cobra.Command, a *app, _ []string) error {
			reports, err := a.svc.Reports(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(reports) == 0 {
				fmt.Fprintln(out, "No rebuilds recorded")
				return nil
			}

			for _, r := range reports {
				fmt.Fprintf(out, "%-9s %-14s %3d playlists %8s items  %s  (%s)\n",
					r.State,
					humanize.Time(r.FinishedAt),
					r.Playlists,
					humanize.Comma(int64(r.Items)),
					r.Duration().Round(time.Millisecond),
					r.ID,
				)
				for id, reason := range r.Missing {
					fmt.Fprintf(out, "          missing %s: %s\n", id, reason)
				}
				if r.Error != "" {
					fmt.Fprintf(out, "          error: %s\n", r.Error)
				}
			}
			return nil
		}),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Reports to show")
	return cmd
}
