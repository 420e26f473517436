package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind distinguishes reference syncs from measurements.
type Kind string

const (
	KindSync        Kind = "sync"
	KindMeasurement Kind = "measurement"
)

// Valid reports whether k is one of the known record kinds.
func (k Kind) Valid() bool {
	return k == KindSync || k == KindMeasurement
}

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("invalid record")

// ValidationError describes a malformed record field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Record is a single entry of the append-only measurement log.
// Records are never modified once stored.
type Record struct {
	ID        string    `json:"id" yaml:"id"`
	Watch     string    `json:"watch" yaml:"watch"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Kind      Kind      `json:"kind" yaml:"kind"`
	Comment   string    `json:"comment,omitempty" yaml:"comment,omitempty"`
	// Rate is the computed drift in seconds per day (positive = slow).
	// Only measurement records carry it.
	Rate *float64 `json:"rate,omitempty" yaml:"rate,omitempty"`
}

// NewRecord validates the fields and returns a record without an ID.
// The watch name is trimmed of surrounding whitespace.
func NewRecord(kind Kind, watch string, ts time.Time, comment string) (Record, error) {
	watch = strings.TrimSpace(watch)
	if watch == "" {
		return Record{}, &ValidationError{Field: "watch", Reason: "must not be empty"}
	}
	if ts.IsZero() {
		return Record{}, &ValidationError{Field: "timestamp", Reason: "must be set"}
	}
	if ts.Before(MinTimestamp) || ts.After(MaxTimestamp) {
		return Record{}, &ValidationError{Field: "timestamp", Reason: fmt.Sprintf("must be between %s and %s",
			MinTimestamp.Format(time.RFC3339), MaxTimestamp.Format(time.RFC3339))}
	}
	if !kind.Valid() {
		return Record{}, &ValidationError{Field: "kind", Reason: fmt.Sprintf("%q is not sync or measurement", kind)}
	}
	return Record{
		Watch:     watch,
		Timestamp: ts,
		Kind:      kind,
		Comment:   comment,
	}, nil
}

// Validate checks a record loaded from storage or built by hand.
func (r Record) Validate() error {
	if _, err := NewRecord(r.Kind, r.Watch, r.Timestamp, r.Comment); err != nil {
		return err
	}
	if r.Kind == KindSync && r.Rate != nil {
		return &ValidationError{Field: "rate", Reason: "must be empty on sync records"}
	}
	return nil
}

// Timestamps are stored as Unix nanoseconds, which limits them to this range.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// WatchFile is the top-level structure of a watch's JSON log file.
type WatchFile struct {
	Watch   string   `json:"watch"`
	Records []Record `json:"records"`
}
