package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/watch-drift/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest rate of every watch",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	now := time.Now()

	svc, store, err := openService()
	if err != nil {
		return err
	}
	defer store.Close()

	watches, err := svc.Status(cmd.Context())
	if err != nil {
		return err
	}
	if len(watches) == 0 {
		fmt.Fprintln(out, "No watches yet. Run 'wdrift sync <watch>' to start.")
		return nil
	}

	faint := color.New(color.Faint)
	for _, st := range watches {
		color.New(color.Bold).Fprintln(out, st.Watch)
		if st.LastSync != nil {
			fmt.Fprintf(out, "  Synced:   %s (%s ago)\n",
				displayTime(st.LastSync.Timestamp).Format(timecalc.TimestampLayout),
				timecalc.FormatDuration(now.Sub(st.LastSync.Timestamp)))
		}
		if st.LastMeasurement == nil {
			fmt.Fprintln(out, "  No measurement yet.")
			continue
		}
		m := st.LastMeasurement
		rate := "-"
		if m.Rate != nil {
			rate = timecalc.FormatRate(*m.Rate) + " (" + timecalc.DescribeRate(*m.Rate) + ")"
		}
		fmt.Fprintf(out, "  Measured: %s\n", displayTime(m.Timestamp).Format(timecalc.TimestampLayout))
		fmt.Fprintf(out, "  Rate:     %s\n", rate)
		if !st.Current() {
			faint.Fprintln(out, "  (measured against an earlier sync; measure again for the current one)")
		}
	}
	return nil
}
