package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/watch-drift/internal/model"
	"github.com/Tiliavir/watch-drift/internal/storage"
	"github.com/Tiliavir/watch-drift/internal/timecalc"
)

var (
	listKind  string
	listSince time.Time
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list [watch]",
	Short: "List syncs and measurements, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listKind, "kind", "", "Only show records of this kind: sync or measurement")
	listCmd.Flags().Var(timestampValue{&listSince}, "since", "Only show records at or after this instant")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show at most this many records (0 = all)")
}

// recordFilter builds the storage filter shared by list and export.
func recordFilter(args []string, kind string, since time.Time, limit int) (storage.Filter, error) {
	f := storage.Filter{Kind: model.Kind(kind), Since: since, Limit: limit}
	if len(args) > 0 {
		f.Watch = strings.TrimSpace(args[0])
	}
	if kind != "" && !f.Kind.Valid() {
		return f, &model.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}
	if limit < 0 {
		return f, &model.ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	return f, nil
}

func runList(cmd *cobra.Command, args []string) error {
	f, err := recordFilter(args, listKind, listSince, listLimit)
	if err != nil {
		return err
	}

	svc, store, err := openService()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := svc.History(cmd.Context(), f)
	if err != nil {
		return err
	}

	printList(cmd.OutOrStdout(), records)
	return nil
}

// printList groups records by watch and prints them.
func printList(w io.Writer, records []model.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}

	var order []string
	byWatch := map[string][]model.Record{}
	for _, r := range records {
		if _, ok := byWatch[r.Watch]; !ok {
			order = append(order, r.Watch)
		}
		byWatch[r.Watch] = append(byWatch[r.Watch], r)
	}

	bold := color.New(color.Bold)
	for _, watch := range order {
		bold.Fprintln(w, watch)
		for _, r := range byWatch[watch] {
			line := fmt.Sprintf("  %s  %-11s", displayTime(r.Timestamp).Format(timecalc.TimestampLayout), r.Kind)
			if r.Rate != nil {
				line += "  " + timecalc.FormatRate(*r.Rate)
			}
			if r.Comment != "" {
				line += "  # " + r.Comment
			}
			fmt.Fprintln(w, line)
		}
	}
}
