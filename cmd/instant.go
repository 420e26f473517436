package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/Tiliavir/watch-drift/internal/capture"
	"github.com/Tiliavir/watch-drift/internal/timecalc"
	"github.com/Tiliavir/watch-drift/internal/timesource"
)

// timestampValue is a pflag.Value for --at.
type timestampValue struct {
	t *time.Time
}

var _ pflag.Value = timestampValue{}

func (v timestampValue) String() string {
	if v.t == nil || v.t.IsZero() {
		return ""
	}
	return v.t.Format(timecalc.TimestampLayout)
}

func (v timestampValue) Set(s string) error {
	t, err := timecalc.ParseTimestamp(s, time.Local)
	if err != nil {
		return err
	}
	*v.t = t
	return nil
}

func (v timestampValue) Type() string { return "timestamp" }

// trueTime returns the configured time source.
func trueTime(ctx context.Context) (timesource.Source, error) {
	if noNTP {
		logger.Debug("using the local clock")
		return timesource.System{}, nil
	}
	src, err := timesource.Calibrate(ctx, cfg.NTP.Servers, time.Duration(cfg.NTP.Timeout))
	if err != nil {
		return nil, fmt.Errorf("%w\nUse --no-ntp to trust the local clock", err)
	}
	logger.Debug("clock calibrated", "server", src.Sample.Server,
		"offset", src.Sample.Offset.String(), "rtt", src.Sample.RTT.String())
	return src, nil
}

// acquireInstant returns at if set, otherwise the instant of a mouse click
// read from the terminal.
func acquireInstant(ctx context.Context, w io.Writer, watch string, at time.Time) (time.Time, error) {
	if !at.IsZero() {
		return at, nil
	}
	src, err := trueTime(ctx)
	if err != nil {
		return time.Time{}, err
	}
	c, err := capture.New(src, watch, time.Duration(cfg.Capture.Timeout))
	if err != nil {
		return time.Time{}, err
	}
	ts, err := c.WaitForClick(ctx)
	if errors.Is(err, capture.ErrTimeout) {
		color.New(color.FgYellow).Fprintln(w, "Still there?")
	}
	return ts, err
}
