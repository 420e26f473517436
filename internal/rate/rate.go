// Package rate records syncs and measurements and turns them into daily
// rates.
package rate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Tiliavir/watch-drift/internal/drift"
	"github.com/Tiliavir/watch-drift/internal/logging"
	"github.com/Tiliavir/watch-drift/internal/model"
	"github.com/Tiliavir/watch-drift/internal/storage"
	"github.com/Tiliavir/watch-drift/internal/timecalc"
)

var (
	// ErrNoSyncRecord is returned when a watch has no sync at or before the
	// measurement instant.
	ErrNoSyncRecord = errors.New("no sync record")
	// ErrInvalidInterval is returned when the measurement is not strictly
	// after the selected sync.
	ErrInvalidInterval = drift.ErrInvalidInterval
	// ErrImplausibleRate is returned when the computed rate exceeds the
	// configured bound.
	ErrImplausibleRate = errors.New("implausible rate")
)

// endOfTime is the latest instant a record can carry.
var endOfTime = model.MaxTimestamp

// Service is the entry point for sync and measure requests.
type Service struct {
	store   storage.Store
	log     *logging.Logger
	maxRate float64
	newID   func(time.Time) string
}

type Option func(*Service)

// WithLogger sets the diagnostic logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMaxDailyRate rejects measurements whose |rate| exceeds max seconds per
// day. Zero disables the check.
func WithMaxDailyRate(max float64) Option {
	return func(s *Service) { s.maxRate = max }
}

// NewService returns a service on top of store.
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   logging.Discard(),
		newID: timecalc.GenerateID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync records a new reference instant. Earlier syncs stay in the log.
func (s *Service) Sync(ctx context.Context, watch string, ts time.Time, comment string) (model.Record, error) {
	rec, err := model.NewRecord(model.KindSync, watch, ts, comment)
	if err != nil {
		return model.Record{}, err
	}
	rec.ID = s.newID(ts)

	if err := s.store.Insert(ctx, rec); err != nil {
		return model.Record{}, err
	}
	s.log.Debug("sync recorded", "watch", rec.Watch, "id", rec.ID, "timestamp", rec.Timestamp.Format(timecalc.TimestampLayout))
	return rec, nil
}

// Measurement is the outcome of a successful Measure.
type Measurement struct {
	Record model.Record
	Sync   model.Record
	Result drift.Result
}

// Measure compares ts against the most recent sync of the watch and stores
// the resulting rate. The sync lookup and the insert happen in one store
// transaction; on error nothing is written.
func (s *Service) Measure(ctx context.Context, watch string, ts time.Time, comment string) (Measurement, error) {
	rec, err := model.NewRecord(model.KindMeasurement, watch, ts, comment)
	if err != nil {
		return Measurement{}, err
	}
	rec.ID = s.newID(ts)

	var m Measurement
	err = s.store.Tx(ctx, func(q storage.Queries) error {
		sync, err := q.LatestSyncBefore(ctx, rec.Watch, ts)
		if err != nil {
			return err
		}
		if sync == nil {
			// A sync exists but only after ts: the measurement precedes
			// its reference.
			next, err := q.LatestSyncBefore(ctx, rec.Watch, endOfTime)
			if err != nil {
				return err
			}
			if next != nil {
				return fmt.Errorf("%w: sync %s, measurement %s", ErrInvalidInterval,
					next.Timestamp.Format(timecalc.TimestampLayout), ts.Format(timecalc.TimestampLayout))
			}
			return fmt.Errorf("%w for watch %q", ErrNoSyncRecord, rec.Watch)
		}
		s.log.Debug("selected sync", "watch", rec.Watch, "sync_id", sync.ID,
			"sync_timestamp", sync.Timestamp.Format(timecalc.TimestampLayout))

		res, err := drift.Compute(sync.Timestamp, ts)
		if err != nil {
			return err
		}
		if s.maxRate > 0 && math.Abs(res.DailyRate) > s.maxRate {
			return fmt.Errorf("%w: %.1f s/day exceeds the limit of %.1f s/day (the watch may have gained or lost a whole minute)",
				ErrImplausibleRate, res.DailyRate, s.maxRate)
		}

		rate := res.DailyRate
		rec.Rate = &rate
		if err := q.Insert(ctx, rec); err != nil {
			return err
		}
		m = Measurement{Record: rec, Sync: *sync, Result: res}
		return nil
	})
	if err != nil {
		s.log.Debug("measurement failed", logging.AttachError(err, "watch", rec.Watch)...)
		return Measurement{}, err
	}

	s.log.Debug("measurement recorded", "watch", rec.Watch, "id", rec.ID,
		"elapsed", m.Result.Elapsed.String(), "minutes", m.Result.Minutes,
		"drift_seconds", m.Result.DriftSeconds, "daily_rate", m.Result.DailyRate)
	return m, nil
}

// WatchStatus summarises one watch.
type WatchStatus struct {
	Watch           string
	LastSync        *model.Record
	LastMeasurement *model.Record
}

// Current reports whether the last measurement was taken against the last
// sync rather than an older one.
func (w WatchStatus) Current() bool {
	return w.LastSync != nil && w.LastMeasurement != nil &&
		!w.LastMeasurement.Timestamp.Before(w.LastSync.Timestamp)
}

// Status returns the latest sync and measurement of every watch.
func (s *Service) Status(ctx context.Context) ([]WatchStatus, error) {
	watches, err := s.store.Watches(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]WatchStatus, 0, len(watches))
	for _, w := range watches {
		st := WatchStatus{Watch: w}
		if st.LastSync, err = s.store.LatestSyncBefore(ctx, w, endOfTime); err != nil {
			return nil, err
		}
		ms, err := s.store.List(ctx, storage.Filter{Watch: w, Kind: model.KindMeasurement, Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(ms) > 0 {
			st.LastMeasurement = &ms[0]
		}
		out = append(out, st)
	}
	return out, nil
}

// History returns the records of a watch (all watches if empty), newest first.
func (s *Service) History(ctx context.Context, f storage.Filter) ([]model.Record, error) {
	return s.store.List(ctx, f)
}
