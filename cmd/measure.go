package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/watch-drift/internal/timecalc"
)

var (
	measureAt      time.Time
	measureComment string
)

var measureCmd = &cobra.Command{
	Use:   "measure <watch>",
	Short: "Measure the watch against its last sync",
	Long: `Record a measurement: the instant the watch's seconds hand passes
12 o'clock. The drift since the most recent sync is printed as seconds per
day.`,
	Args: cobra.ExactArgs(1),
	RunE: runMeasure,
}

func init() {
	measureCmd.Flags().Var(timestampValue{&measureAt}, "at", "Use this instant instead of waiting for a click (RFC 3339)")
	measureCmd.Flags().StringVarP(&measureComment, "comment", "c", "", "Free-text note stored with the record")
}

func runMeasure(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	ts, err := acquireInstant(ctx, out, args[0], measureAt)
	if err != nil {
		return err
	}

	svc, store, err := openService()
	if err != nil {
		return err
	}
	defer store.Close()

	m, err := svc.Measure(ctx, args[0], ts, measureComment)
	if err != nil {
		return err
	}

	res := m.Result
	rateColor := color.New(color.FgGreen)
	if res.Slow() {
		rateColor = color.New(color.FgRed)
	}

	fmt.Fprintf(out, "Watch:    %s\n", m.Record.Watch)
	fmt.Fprintf(out, "Synced:   %s\n", displayTime(m.Sync.Timestamp).Format(timecalc.TimestampLayout))
	fmt.Fprintf(out, "Measured: %s\n", displayTime(m.Record.Timestamp).Format(timecalc.TimestampLayout))
	fmt.Fprintf(out, "Elapsed:  %s (%d min)\n", timecalc.FormatDuration(res.Elapsed), res.Minutes)
	fmt.Fprintf(out, "Drift:    %+.3f s\n", -res.DriftSeconds)
	fmt.Fprintf(out, "Rate:     %s (%s)\n",
		rateColor.Sprint(timecalc.FormatRate(res.DailyRate)),
		timecalc.DescribeRate(res.DailyRate))

	warn := color.New(color.FgYellow)
	if res.Elapsed < time.Duration(cfg.MinInterval) {
		warn.Fprintf(out, "Warning: only %s since the sync; wait at least %s for a precise rate.\n",
			timecalc.FormatDuration(res.Elapsed), timecalc.FormatDuration(time.Duration(cfg.MinInterval)))
	}
	if res.NearFold() {
		warn.Fprintln(out, "Warning: drift is close to half a minute; if the watch gained or lost a whole minute the rate is wrong.")
	}
	return nil
}
