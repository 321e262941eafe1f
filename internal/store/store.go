// Package store persists cached model replies and run history in badger.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	replyPrefix = "reply:"
	runPrefix   = "run:"
)

var (
	// ErrNotFound is returned when no run matches an ID.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous is returned when an ID prefix matches more than one run.
	ErrAmbiguous = errors.New("ambiguous id prefix")
)

type DB struct {
	badgerDB *badger.DB
}

// Open opens (creating if needed) the database under dir.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory opens a throwaway database.
func OpenInMemory() (*DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*DB, error) {
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &DB{badgerDB: bdb}, nil
}

func (d *DB) Close() error {
	return d.badgerDB.Close()
}

// PutReply stores an encoded model reply under key. A positive ttl makes the
// entry expire.
func (d *DB) PutReply(key string, data []byte, ttl time.Duration) error {
	return d.badgerDB.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(replyPrefix+key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// GetReply returns the reply stored under key, if any.
func (d *DB) GetReply(key string) ([]byte, bool, error) {
	var out []byte
	err := d.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(replyPrefix + key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get reply: %w", err)
	}
	return out, true, nil
}

// RunRecord is the history entry of one analysis run.
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Dataset    string    `json:"dataset"`
	Shape      string    `json:"shape"`
	Encoding   string    `json:"encoding"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	WorkDir    string    `json:"work_dir"`
	ReportPath string    `json:"report_path"`
	Snippets   int       `json:"snippets"`
	Failed     int       `json:"failed"`
	Executed   bool      `json:"executed"`
	Summarized bool      `json:"summarized"`
	Notes      []string  `json:"notes,omitempty"`
}

// Duration is how long the run took.
func (r RunRecord) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

func runKey(r RunRecord) []byte {
	// zero-padded so lexical order is chronological
	return []byte(fmt.Sprintf("%s%020d:%s", runPrefix, r.StartedAt.UnixNano(), r.ID))
}

// PutRun records a run.
func (d *DB) PutRun(r RunRecord) error {
	if r.ID == "" {
		return errors.New("run id is empty")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return d.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(r), data)
	})
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (d *DB) ListRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord
	err := d.eachRun(func(r RunRecord) bool {
		runs = append(runs, r)
		return limit <= 0 || len(runs) < limit
	})
	return runs, err
}

// GetRun finds the run whose ID starts with idPrefix.
func (d *DB) GetRun(idPrefix string) (*RunRecord, error) {
	idPrefix = strings.TrimSpace(idPrefix)
	if idPrefix == "" {
		return nil, fmt.Errorf("run %q: %w", idPrefix, ErrNotFound)
	}
	var found []RunRecord
	err := d.eachRun(func(r RunRecord) bool {
		if strings.HasPrefix(r.ID, idPrefix) {
			found = append(found, r)
		}
		return len(found) < 2
	})
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("run %q: %w", idPrefix, ErrNotFound)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("run %q: %w", idPrefix, ErrAmbiguous)
	}
}

// eachRun walks runs newest first until fn returns false.
func (d *DB) eachRun(fn func(RunRecord) bool) error {
	return d.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runPrefix)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(runPrefix + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			var r RunRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return fmt.Errorf("decode run %s: %w", it.Item().Key(), err)
			}
			if !fn(r) {
				return nil
			}
		}
		return nil
	})
}
