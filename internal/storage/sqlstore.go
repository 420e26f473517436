package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Tiliavir/watch-drift/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
    id         TEXT PRIMARY KEY,
    watch      TEXT NOT NULL,
    ts_ns      INTEGER NOT NULL,
    ts         TEXT NOT NULL,
    kind       TEXT NOT NULL CHECK (kind IN ('sync', 'measurement')),
    comment    TEXT NOT NULL DEFAULT '',
    rate       REAL,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_records_watch_kind_ts ON records(watch, kind, ts_ns);
`

const selectColumns = `SELECT id, watch, ts_ns, kind, comment, rate FROM records`

// SQLStore keeps the log in a single SQL table. Writes inside Tx run in a
// database transaction.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dbPath and runs migrations.
func OpenSQLite(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, storageErr("creating directories", err)
	}

	// Immediate transactions take the write lock up front so two processes
	// cannot both read the same latest sync and then race on the insert.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("opening "+dbPath, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, storageErr("enabling WAL", err)
	}

	s, err := NewSQLStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and runs migrations.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, storageErr("running migrations", err)
	}
	return &SQLStore{db: db}, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlQueries struct {
	q querier
}

func (s sqlQueries) Insert(ctx context.Context, r model.Record) error {
	if err := checkInsert(r); err != nil {
		return err
	}
	var rate sql.NullFloat64
	if r.Rate != nil {
		rate = sql.NullFloat64{Float64: *r.Rate, Valid: true}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO records (id, watch, ts_ns, ts, kind, comment, rate)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Watch, r.Timestamp.UnixNano(), r.Timestamp.UTC().Format(time.RFC3339Nano),
		string(r.Kind), r.Comment, rate,
	)
	if err != nil {
		return storageErr("inserting "+r.ID, err)
	}
	return nil
}

func (s sqlQueries) LatestSyncBefore(ctx context.Context, watch string, ts time.Time) (*model.Record, error) {
	row := s.q.QueryRowContext(ctx, selectColumns+`
		WHERE watch = ? AND kind = ? AND ts_ns <= ?
		ORDER BY ts_ns DESC
		LIMIT 1`,
		watch, string(model.KindSync), ts.UnixNano(),
	)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("querying latest sync", err)
	}
	return &r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (model.Record, error) {
	var (
		r    model.Record
		tsNS int64
		kind string
		rate sql.NullFloat64
	)
	if err := sc.Scan(&r.ID, &r.Watch, &tsNS, &kind, &r.Comment, &rate); err != nil {
		return model.Record{}, err
	}
	r.Timestamp = time.Unix(0, tsNS).UTC()
	r.Kind = model.Kind(kind)
	if rate.Valid {
		v := rate.Float64
		r.Rate = &v
	}
	return r, nil
}

func (s *SQLStore) Insert(ctx context.Context, r model.Record) error {
	return sqlQueries{q: s.db}.Insert(ctx, r)
}

func (s *SQLStore) LatestSyncBefore(ctx context.Context, watch string, ts time.Time) (*model.Record, error) {
	return sqlQueries{q: s.db}.LatestSyncBefore(ctx, watch, ts)
}

func (s *SQLStore) Tx(ctx context.Context, fn func(Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	if err := fn(sqlQueries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, f Filter) ([]model.Record, error) {
	query := selectColumns + ` WHERE 1 = 1`
	var args []any
	if f.Watch != "" {
		query += ` AND watch = ?`
		args = append(args, f.Watch)
	}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	if !f.Since.IsZero() {
		query += ` AND ts_ns >= ?`
		args = append(args, f.Since.UnixNano())
	}
	query += ` ORDER BY ts_ns DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("listing records", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, storageErr("scanning row", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing records", err)
	}
	return records, nil
}

func (s *SQLStore) Watches(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT watch FROM records`)
	if err != nil {
		return nil, storageErr("listing watches", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageErr("scanning row", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing watches", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
