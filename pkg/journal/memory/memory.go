// Package memory is a bounded in-process journal.
package memory

import (
	"context"
	"sync"

	"github.com/filefighter/ftpfighter/pkg/journal"
)

// DefaultMaxEntries is used when Config.MaxEntries is not positive.
const DefaultMaxEntries = 1000

// Config configures a Store.
type Config struct {
	// MaxEntries is the ring size; the oldest entry is dropped when full
	MaxEntries int
}

// Store keeps the most recent entries in a ring buffer.
type Store struct {
	mu      sync.Mutex
	entries []journal.Entry
	next    int
	full    bool
}

// New creates an empty Store.
func New(cfg Config) *Store {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	return &Store{entries: make([]journal.Entry, cfg.MaxEntries)}
}

var _ journal.Store = (*Store)(nil)

func (s *Store) Record(ctx context.Context, e journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.next] = e
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, n int) ([]journal.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	if s.full {
		size = len(s.entries)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]journal.Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.entries)) % len(s.entries)
		out = append(out, s.entries[idx])
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
