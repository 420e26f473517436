package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Tiliavir/watch-drift/internal/model"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// ErrStorage is matched by every *Error.
var ErrStorage = errors.New("storage error")

// Error wraps an underlying persistence failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage error %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// Queries is the part of the store the rate computation needs.
type Queries interface {
	// Insert appends a record to the log. The record must carry an ID.
	Insert(ctx context.Context, r model.Record) error
	// LatestSyncBefore returns the most recent sync record of the watch with
	// a timestamp not after ts, or nil when there is none.
	LatestSyncBefore(ctx context.Context, watch string, ts time.Time) (*model.Record, error)
}

// Store is the append-only measurement log.
type Store interface {
	Queries
	// List returns matching records, newest first.
	List(ctx context.Context, f Filter) ([]model.Record, error)
	// Watches returns the distinct watch names, sorted.
	Watches(ctx context.Context) ([]string, error)
	// Tx runs fn with exclusive write access; either everything fn inserted
	// is kept or nothing is.
	Tx(ctx context.Context, fn func(Queries) error) error
	Close() error
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Watch string
	Kind  model.Kind
	Since time.Time
	Limit int
}

func (f Filter) match(r model.Record) bool {
	if f.Watch != "" && r.Watch != f.Watch {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// BaseDir returns the default data directory (~/.wdrift).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".wdrift"), nil
}

// Open returns the store for the named backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewFileStore(dir)
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "wdrift.db"))
	}
	return nil, fmt.Errorf("unknown store backend %q (want %s or %s)", backend, BackendJSON, BackendSQLite)
}

func checkInsert(r model.Record) error {
	if r.ID == "" {
		return &model.ValidationError{Field: "id", Reason: "must be set before insert"}
	}
	return r.Validate()
}

// latestSync picks the newest sync of watch at or before ts by timestamp,
// ignoring the order the records were written in.
func latestSync(records []model.Record, watch string, ts time.Time) *model.Record {
	var best *model.Record
	for i := range records {
		r := records[i]
		if r.Watch != watch || r.Kind != model.KindSync || r.Timestamp.After(ts) {
			continue
		}
		if best == nil || r.Timestamp.After(best.Timestamp) {
			best = &r
		}
	}
	return best
}

// newestFirst sorts records by timestamp descending, ID breaking ties.
func newestFirst(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].ID > records[j].ID
		}
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}
