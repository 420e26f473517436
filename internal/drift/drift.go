// Package drift infers how far a watch has wandered from true time between
// two clicks at its zero-second mark.
//
// The user only tells us that the seconds hand was at 12 o'clock, not how
// many revolutions it made in between. The number of minutes the watch
// ticked through is therefore taken as the true elapsed time rounded to the
// nearest whole minute. This holds as long as the accumulated drift stays
// within ±30 s over the interval; beyond that the result is off by a
// multiple of 60/days seconds per day and nothing here can tell.
//
// Sign convention: a positive drift means the watch's minute is longer than
// a true minute, i.e. the watch runs slow.
package drift

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	secondsPerMinute = 60
	secondsPerDay    = 86400

	// foldWarning is how close |drift| may come to half a minute before
	// the inferred minute count is considered doubtful.
	foldWarning = 25.0
)

// ErrInvalidInterval is returned when the measurement is not strictly after
// the sync it is compared against.
var ErrInvalidInterval = errors.New("measurement must be strictly after its sync")

// Result holds every intermediate figure of a drift computation.
type Result struct {
	Elapsed      time.Duration
	Minutes      int64
	DriftSeconds float64
	Days         float64
	// DailyRate is the drift normalised to 24 h, positive = slow.
	DailyRate float64
}

// Compute derives the daily rate from a sync instant and a later
// measurement instant, both taken at the watch's zero-second mark.
func Compute(syncAt, measuredAt time.Time) (Result, error) {
	elapsed := measuredAt.Sub(syncAt)
	if elapsed <= 0 {
		return Result{}, fmt.Errorf("%w: sync %s, measurement %s",
			ErrInvalidInterval, syncAt.Format(time.RFC3339Nano), measuredAt.Format(time.RFC3339Nano))
	}

	seconds := elapsed.Seconds()
	minutes := int64(math.Round(seconds / secondsPerMinute))
	driftSeconds := seconds - float64(minutes*secondsPerMinute)
	days := seconds / secondsPerDay

	return Result{
		Elapsed:      elapsed,
		Minutes:      minutes,
		DriftSeconds: driftSeconds,
		Days:         days,
		DailyRate:    driftSeconds / days,
	}, nil
}

// NearFold reports whether the drift is close enough to ±30 s that the
// watch may have gained or lost a full revolution unnoticed.
func (r Result) NearFold() bool {
	return math.Abs(r.DriftSeconds) > foldWarning
}

// Slow reports whether the watch loses time.
func (r Result) Slow() bool {
	return r.DailyRate > 0
}
