package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/watch-drift/internal/timecalc"
)

var (
	syncAt      time.Time
	syncComment string
)

var syncCmd = &cobra.Command{
	Use:   "sync <watch>",
	Short: "Record that the watch was just set to true time",
	Long: `Record a sync: the instant the watch's seconds hand passed 12 o'clock
right after setting it. Later measurements are compared against the most
recent sync.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Var(timestampValue{&syncAt}, "at", "Use this instant instead of waiting for a click (RFC 3339)")
	syncCmd.Flags().StringVarP(&syncComment, "comment", "c", "", "Free-text note stored with the record")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	ts, err := acquireInstant(ctx, out, args[0], syncAt)
	if err != nil {
		return err
	}

	svc, store, err := openService()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := svc.Sync(ctx, args[0], ts, syncComment)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s at %s\n",
		color.GreenString("Synced"),
		rec.Watch,
		displayTime(rec.Timestamp).Format(timecalc.TimestampLayout))
	return nil
}
