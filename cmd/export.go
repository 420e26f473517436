package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/watch-drift/internal/model"
	"github.com/Tiliavir/watch-drift/internal/timecalc"
)

var (
	exportFormat string
	exportKind   string
	exportSince  time.Time
)

var exportCmd = &cobra.Command{
	Use:   "export [watch]",
	Short: "Export records to stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, yaml, md")
	exportCmd.Flags().StringVar(&exportKind, "kind", "", "Only export records of this kind: sync or measurement")
	exportCmd.Flags().Var(timestampValue{&exportSince}, "since", "Only export records at or after this instant")
}

func runExport(cmd *cobra.Command, args []string) error {
	f, err := recordFilter(args, exportKind, exportSince, 0)
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
	return writeExport(cmd.OutOrStdout(), exportFormat, records)
}

func writeExport(w io.Writer, format string, records []model.Record) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	case "md":
		printMarkdown(w, records)
	case "csv":
		printCSV(w, records)
	default:
		return &model.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown format %q", format)}
	}
	return nil
}

func printCSV(w io.Writer, records []model.Record) {
	fmt.Fprintln(w, "id,watch,timestamp,kind,rate_seconds_per_day,comment")
	for _, r := range records {
		rate := ""
		if r.Rate != nil {
			rate = strconv.FormatFloat(*r.Rate, 'f', 6, 64)
		}
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s\n",
			csvEscape(r.ID),
			csvEscape(r.Watch),
			r.Timestamp.UTC().Format(timecalc.TimestampLayout),
			r.Kind,
			rate,
			csvEscape(r.Comment),
		)
	}
}

func printMarkdown(w io.Writer, records []model.Record) {
	fmt.Fprintln(w, "| Watch | Timestamp | Kind | Rate | Comment |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, r := range records {
		rate := ""
		if r.Rate != nil {
			rate = timecalc.FormatRate(*r.Rate)
		}
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			mdEscape(r.Watch),
			displayTime(r.Timestamp).Format(timecalc.TimestampLayout),
			r.Kind,
			rate,
			mdEscape(r.Comment),
		)
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
