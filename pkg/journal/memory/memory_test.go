package memory

import (
	"context"
	"testing"
	"time"

	"github.com/filefighter/ftpfighter/pkg/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, s *Store, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, s.Record(context.Background(), journal.Entry{
			Time:      time.Now(),
			Operation: journal.OpUpload,
			Path:      p,
		}))
	}
}

func paths(entries []journal.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestStore_Recent(t *testing.T) {
	s := New(Config{MaxEntries: 3})

	entries, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	record(t, s, "/a", "/b")
	entries, err = s.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/b", "/a"}, paths(entries))

	entries, err = s.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"/b"}, paths(entries))
}

func TestStore_Wraps(t *testing.T) {
	s := New(Config{MaxEntries: 3})
	record(t, s, "/a", "/b", "/c", "/d", "/e")

	entries, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"/e", "/d", "/c"}, paths(entries))
}

func TestStore_DefaultSize(t *testing.T) {
	s := New(Config{})
	assert.Len(t, s.entries, DefaultMaxEntries)
}

func TestStore_CancelledContext(t *testing.T) {
	s := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Record(ctx, journal.Entry{}), context.Canceled)
	_, err := s.Recent(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
