// Package badger is a persistent journal backed by BadgerDB.
//
// Keys are "journal/" followed by journal.SortKey, so a forward prefix scan
// yields the newest entries first.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/filefighter/ftpfighter/pkg/journal"
)

var keyPrefix = []byte("journal/")

// Config configures a Store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory (tests, ephemeral deployments)
	InMemory bool

	// SyncWrites fsyncs every entry before Record returns
	SyncWrites bool

	// Retention expires entries after this long. Zero keeps them forever.
	Retention time.Duration
}

// Store is a BadgerDB-backed journal.
type Store struct {
	db        *badger.DB
	retention time.Duration
	seq       atomic.Uint64
}

// Open opens or creates the database described by cfg.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger journal: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	// Entries are small JSON documents written once and scanned rarely.
	opts = opts.
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithSyncWrites(cfg.SyncWrites)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database at %q: %w", cfg.Path, err)
	}

	return &Store{db: db, retention: cfg.Retention}, nil
}

var _ journal.Store = (*Store)(nil)

func (s *Store) Record(ctx context.Context, e journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}

	key := append(append([]byte{}, keyPrefix...), journal.SortKey(e.Time, s.seq.Add(1))...)

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, value)
		if s.retention > 0 {
			entry = entry.WithTTL(s.retention)
		}
		return txn.SetEntry(entry)
	})
}

func (s *Store) Recent(ctx context.Context, n int) ([]journal.Entry, error) {
	var out []journal.Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if n > 0 && len(out) >= n {
				break
			}

			var e journal.Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode journal entry %q: %w", it.Item().Key(), err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
