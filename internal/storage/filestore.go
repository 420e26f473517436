package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/watch-drift/internal/model"
)

// FileStore keeps one human-readable JSON file per watch under
// <base>/watches/. A lock file serializes writers across processes.
type FileStore struct {
	base string
	mu   sync.Mutex
}

// NewFileStore creates the directory layout under base if needed.
func NewFileStore(base string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(base, "watches"), 0o700); err != nil {
		return nil, storageErr("creating directories", err)
	}
	return &FileStore{base: base}, nil
}

// WatchFilePath returns the path of the given watch's JSON file. The name
// is the lower-cased, path-escaped watch name for readability plus a hash of
// the exact name, so names differing only in case never share a file on
// case-insensitive file systems.
func WatchFilePath(base, watch string) string {
	sum := uuid.NewSHA1(uuid.NameSpaceURL, []byte(watch)).String()[:8]
	return filepath.Join(base, "watches", url.PathEscape(strings.ToLower(watch))+"-"+sum+".json")
}

// readWatchFile decodes one watch file. A corrupt file is backed up and
// reported.
func readWatchFile(path string) (model.WatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.WatchFile{}, err
	}

	var wf model.WatchFile
	if err := json.Unmarshal(data, &wf); err != nil {
		// Back up corrupt file and abort.
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return model.WatchFile{}, storageErr("reading "+path,
			fmt.Errorf("corrupt JSON (backed up to %s): %w", backupPath, err))
	}
	return wf, nil
}

// LoadWatch loads the log of one watch. Returns an empty WatchFile if not found.
func LoadWatch(base, watch string) (model.WatchFile, error) {
	path := WatchFilePath(base, watch)
	wf, err := readWatchFile(path)
	if os.IsNotExist(err) {
		return model.WatchFile{Watch: watch, Records: []model.Record{}}, nil
	}
	if errors.Is(err, ErrStorage) {
		return model.WatchFile{}, err
	}
	if err != nil {
		return model.WatchFile{}, storageErr("reading "+path, err)
	}
	if wf.Watch != watch {
		return model.WatchFile{}, storageErr("reading "+path,
			fmt.Errorf("file holds watch %q, not %q", wf.Watch, watch))
	}
	return wf, nil
}

// SaveWatch atomically writes the log of one watch.
func SaveWatch(base string, wf model.WatchFile) error {
	path := WatchFilePath(base, wf.Watch)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return storageErr("creating directories", err)
	}

	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return storageErr("marshalling JSON", err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return storageErr("writing temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return storageErr("renaming temp file", err)
	}
	return nil
}

// Tx holds the store lock while fn runs. Inserts made by fn are written
// only after fn succeeds.
func (s *FileStore) Tx(ctx context.Context, fn func(Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := acquireLock(filepath.Join(s.base, ".lock"))
	if err != nil {
		return storageErr("acquiring lock", err)
	}
	defer lock.release()

	tx := &fileTx{base: s.base}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (s *FileStore) Insert(ctx context.Context, r model.Record) error {
	return s.Tx(ctx, func(q Queries) error {
		return q.Insert(ctx, r)
	})
}

func (s *FileStore) LatestSyncBefore(ctx context.Context, watch string, ts time.Time) (*model.Record, error) {
	wf, err := LoadWatch(s.base, watch)
	if err != nil {
		return nil, err
	}
	return latestSync(wf.Records, watch, ts), nil
}

func (s *FileStore) List(ctx context.Context, f Filter) ([]model.Record, error) {
	watches := []string{f.Watch}
	if f.Watch == "" {
		var err error
		if watches, err = s.Watches(ctx); err != nil {
			return nil, err
		}
	}

	var out []model.Record
	for _, w := range watches {
		wf, err := LoadWatch(s.base, w)
		if err != nil {
			return nil, err
		}
		for _, r := range wf.Records {
			if f.match(r) {
				out = append(out, r)
			}
		}
	}
	newestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *FileStore) Watches(ctx context.Context) ([]string, error) {
	dir := filepath.Join(s.base, "watches")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("listing "+dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		wf, err := readWatchFile(filepath.Join(dir, name))
		if errors.Is(err, ErrStorage) {
			return nil, err
		}
		if err != nil {
			return nil, storageErr("reading "+name, err)
		}
		if wf.Watch != "" {
			names = append(names, wf.Watch)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) Close() error { return nil }

// fileTx buffers inserts until commit. Reads see the buffered records too.
type fileTx struct {
	base    string
	pending map[string][]model.Record
}

func (t *fileTx) Insert(ctx context.Context, r model.Record) error {
	if err := checkInsert(r); err != nil {
		return err
	}
	if t.pending == nil {
		t.pending = map[string][]model.Record{}
	}
	t.pending[r.Watch] = append(t.pending[r.Watch], r)
	return nil
}

func (t *fileTx) LatestSyncBefore(ctx context.Context, watch string, ts time.Time) (*model.Record, error) {
	wf, err := LoadWatch(t.base, watch)
	if err != nil {
		return nil, err
	}
	return latestSync(append(wf.Records, t.pending[watch]...), watch, ts), nil
}

func (t *fileTx) commit() error {
	for watch, records := range t.pending {
		wf, err := LoadWatch(t.base, watch)
		if err != nil {
			return err
		}
		for _, r := range records {
			for _, existing := range wf.Records {
				if existing.ID == r.ID {
					return storageErr("inserting "+r.ID, errors.New("duplicate record ID"))
				}
			}
		}
		wf.Watch = watch
		wf.Records = append(wf.Records, records...)
		if err := SaveWatch(t.base, wf); err != nil {
			return err
		}
	}
	return nil
}
