// Package journal records completed FTP transfers and namespace changes for
// operator auditing. The gateway only writes to it; operators read it back
// through /journal on the metrics server or the journal subcommand.
package journal

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Operation names a journaled action.
type Operation string

const (
	OpUpload     Operation = "upload"
	OpDownload   Operation = "download"
	OpDelete     Operation = "delete"
	OpMkdir      Operation = "mkdir"
	OpRmdir      Operation = "rmdir"
	OpRename     Operation = "rename"
	OpSetModTime Operation = "set_modtime"
)

// Entry is one journaled action.
type Entry struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	Username  string    `json:"username"`
	Operation Operation `json:"operation"`
	Path      string    `json:"path"`

	// Target is the destination of a rename
	Target string `json:"target,omitempty"`

	// Bytes is the payload size of a transfer
	Bytes int64 `json:"bytes,omitempty"`

	// ErrorCode is empty for successful actions
	ErrorCode string `json:"error_code,omitempty"`
}

// Store persists journal entries.
//
// Implementations must be safe for concurrent use by all connections.
type Store interface {
	// Record appends e.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)

	// Close releases the store's resources.
	Close() error
}

// SortKey returns a fixed-width key that sorts newer entries first.
// seq breaks ties between entries recorded in the same nanosecond.
func SortKey(t time.Time, seq uint64) string {
	return fmt.Sprintf("%016x-%016x", uint64(math.MaxInt64-t.UnixNano()), math.MaxUint64-seq)
}

// NewNoop returns a Store that drops every entry.
func NewNoop() Store {
	return noopStore{}
}

type noopStore struct{}

func (noopStore) Record(context.Context, Entry) error { return nil }
func (noopStore) Recent(context.Context, int) ([]Entry, error) { return nil, nil }
func (noopStore) Close() error { return nil }
