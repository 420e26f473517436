package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/watch-drift/internal/timesource"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Query the NTP servers and show the local clock's offset",
	Args:  cobra.NoArgs,
	RunE:  runClock,
}

func runClock(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	samples := timesource.Query(cmd.Context(), cfg.NTP.Servers, time.Duration(cfg.NTP.Timeout))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tOFFSET\tRTT\tSTRATUM")
	for _, s := range samples {
		if s.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\t\t\n", s.Server, color.RedString("error: %v", s.Err))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.Server,
			s.Offset.Round(time.Microsecond), s.RTT.Round(time.Microsecond), s.Stratum)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	best, err := timesource.Best(samples)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nUsing %s: local clock is off by %s.\n", best.Server, best.Offset.Round(time.Millisecond))
	return nil
}
