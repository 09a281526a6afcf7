// Package backend maps FTP filesystem operations onto the FileFighter
// FileSystem and FileHandler services.
//
// Every path is normalized by NormalizeAndValidate before it reaches a
// remote call, every inode is projected through MetadataFrom, and every
// remote failure is classified into an *Error.
package backend

import (
	"context"
	"io"
	"time"

	"github.com/filefighter/ftpfighter/pkg/remote"
)

// Features is a bit set of optional protocol capabilities.
type Features uint32

const (
	// FeatureRestart advertises REST (resumed transfers at an offset)
	FeatureRestart Features = 1 << iota
)

// Has reports whether f contains feature.
func (f Features) Has(feature Features) bool {
	return f&feature != 0
}

// IdentityClient is the part of the remote API used to log users in.
type IdentityClient interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
	UserInfo(ctx context.Context, token string) (*remote.User, error)
}

// StorageClient is the part of the remote API used for filesystem operations.
//
// *remote.Client implements it.
type StorageClient interface {
	GetInode(ctx context.Context, token, path string) (*remote.Inode, error)
	Contents(ctx context.Context, token, path string) (*remote.Contents, error)
	CreateFolder(ctx context.Context, token, parent, name string) (*remote.Inode, error)
	Rename(ctx context.Context, token, path, newName string) (*remote.Inode, error)
	Move(ctx context.Context, token, path, newPath string) (*remote.Inode, error)
	Delete(ctx context.Context, token, path string) error
	SetLastModified(ctx context.Context, token, path string, modified time.Time) (*remote.Inode, error)
	Upload(ctx context.Context, token, parent, name string, r io.Reader) error
	Download(ctx context.Context, token, path string) (io.ReadCloser, error)
}

// FileSystem is the set of filesystem operations an FTP connection performs.
//
// All methods take the session of the calling connection and a raw virtual
// path. They return *Error on failure. Cancelling ctx aborts the in-flight
// remote call.
type FileSystem interface {
	// SupportedFeatures returns the optional capabilities to advertise.
	SupportedFeatures() Features

	// Metadata stats path. A path in the timestamp convention (see
	// DetectTimestamp) updates the modification time instead.
	Metadata(ctx context.Context, s *Session, path string) (*Metadata, error)

	// List returns the children of the folder at path.
	List(ctx context.Context, s *Session, path string) ([]*Metadata, error)

	// Get opens a streamed download. Only offset 0 is supported.
	Get(ctx context.Context, s *Session, path string, offset int64) (io.ReadCloser, error)

	// Put streams r into a file at path and returns the stored size.
	// Only offset 0 is supported.
	Put(ctx context.Context, s *Session, path string, offset int64, r io.Reader) (uint64, error)

	// Del deletes the inode at path.
	Del(ctx context.Context, s *Session, path string) error

	// Mkd creates a folder at path.
	Mkd(ctx context.Context, s *Session, path string) error

	// Rmd deletes the folder at path.
	Rmd(ctx context.Context, s *Session, path string) error

	// Rename renames and/or moves from to to.
	Rename(ctx context.Context, s *Session, from, to string) error

	// Cwd succeeds if path is an existing folder.
	Cwd(ctx context.Context, s *Session, path string) error

	// SetModTime overrides the modification time of the inode at path.
	SetModTime(ctx context.Context, s *Session, path string, modified time.Time) (*Metadata, error)
}

// Factory builds the FileSystem for a new connection.
type Factory func() FileSystem

// NewFactory returns a Factory whose adapters share client and nothing else.
func NewFactory(client StorageClient) Factory {
	return func() FileSystem {
		return NewStorageAdapter(client)
	}
}
