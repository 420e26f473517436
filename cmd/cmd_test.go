package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Tiliavir/watch-drift/internal/model"
	"github.com/Tiliavir/watch-drift/internal/rate"
	"github.com/Tiliavir/watch-drift/internal/storage"
)

// resetFlags clears flag variables left over from a previous Execute.
func resetFlags() {
	configPath, storeFlag, dataDir, logLevel = "", "", "", "warn"
	noNTP, noColor, useUTC = false, false, false
	syncAt, syncComment = time.Time{}, ""
	measureAt, measureComment = time.Time{}, ""
	listKind, listSince, listLimit = "", time.Time{}, 0
	exportFormat, exportKind, exportSince = "csv", "", time.Time{}
}

// execute runs wdrift with its data and config in dir.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{
		"--config", filepath.Join(dir, "config.json"),
		"--data-dir", dir,
		"--no-ntp",
		"--utc",
		"--no-color",
	}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSyncAndMeasure(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "sync", "seamaster", "--at", "2024-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out, "seamaster at 2024-01-01T00:00:00.000Z") {
		t.Errorf("sync output = %q", out)
	}

	out, err = execute(t, dir, "measure", "seamaster", "--at", "2024-01-02T00:00:05Z", "-c", "dial up")
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	for _, want := range []string{
		"Elapsed:  1d 0h (1440 min)",
		"Drift:    -5.000 s",
		"Rate:     -5.0 s/day (slow by 5.0s/day)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("measure output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Warning") {
		t.Errorf("unexpected warning:\n%s", out)
	}
}

func TestMeasureShortIntervalWarns(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, dir, "sync", "w", "--at", "2024-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, dir, "measure", "w", "--at", "2024-01-01T01:00:02Z")
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if !strings.Contains(out, "Warning: only") {
		t.Errorf("expected a short interval warning:\n%s", out)
	}
}

func TestMeasureWithoutSync(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, dir, "measure", "pocket-watch-2", "--at", "2024-01-02T00:00:00Z")
	if !errors.Is(err, rate.ErrNoSyncRecord) {
		t.Fatalf("err = %v, want ErrNoSyncRecord", err)
	}
	if got := exitCode(err); got != 1 {
		t.Errorf("exitCode = %d, want 1", got)
	}
	if msg := errorMessage(err); !strings.Contains(msg, "wdrift sync") {
		t.Errorf("errorMessage = %q", msg)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"storage", &storage.Error{Op: "writing temp file", Err: errors.New("disk full")}, 2},
		{"validation", &model.ValidationError{Field: "watch", Reason: "must not be empty"}, 1},
		{"interval", rate.ErrInvalidInterval, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestListAndStatus(t *testing.T) {
	dir := t.TempDir()
	steps := [][]string{
		{"sync", "a", "--at", "2024-01-01T00:00:00Z"},
		{"measure", "a", "--at", "2024-01-03T00:00:00Z"},
		{"sync", "b", "--at", "2024-01-01T00:00:00Z", "-c", "after service"},
	}
	for _, args := range steps {
		if _, err := execute(t, dir, args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	out, err := execute(t, dir, "list", "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "after service") {
		t.Errorf("list a shows records of b:\n%s", out)
	}
	if i, j := strings.Index(out, "measurement"), strings.Index(out, "sync"); i < 0 || j < 0 || i > j {
		t.Errorf("list not newest first:\n%s", out)
	}

	out, err = execute(t, dir, "list", " b ")
	if err != nil {
		t.Fatalf("list with padded name: %v", err)
	}
	if !strings.Contains(out, "after service") {
		t.Errorf("list \" b \" should match watch b:\n%s", out)
	}

	out, err = execute(t, dir, "list", "--kind", "sync", "-n", "1")
	if err != nil {
		t.Fatalf("list --kind: %v", err)
	}
	if strings.Count(out, "sync") != 1 || strings.Contains(out, "measurement") {
		t.Errorf("list --kind sync -n 1:\n%s", out)
	}

	if _, err := execute(t, dir, "list", "--kind", "bogus"); !errors.Is(err, model.ErrValidation) {
		t.Errorf("list --kind bogus err = %v, want ErrValidation", err)
	}

	out, err = execute(t, dir, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "on time") {
		t.Errorf("status for a missing rate:\n%s", out)
	}
	if !strings.Contains(out, "No measurement yet.") {
		t.Errorf("status for b:\n%s", out)
	}
}

func TestTimestampValue(t *testing.T) {
	var ts time.Time
	v := timestampValue{&ts}
	if v.String() != "" {
		t.Errorf("String() of unset = %q", v.String())
	}
	if err := v.Set("2024-01-02T00:00:05.250Z"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if want := time.Date(2024, 1, 2, 0, 0, 5, 250e6, time.UTC); !ts.Equal(want) {
		t.Errorf("ts = %v, want %v", ts, want)
	}
	if err := v.Set("yesterday"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}
