package backend

import (
	"context"
	"io"
	"time"

	"github.com/filefighter/ftpfighter/internal/logger"
)

// StorageAdapter implements FileSystem on top of a StorageClient.
//
// It holds no mutable state: one value per connection is cheap and needs no
// locking, and the FTP engine already serializes operations per connection.
type StorageAdapter struct {
	client StorageClient
}

// NewStorageAdapter creates a StorageAdapter backed by client.
func NewStorageAdapter(client StorageClient) *StorageAdapter {
	return &StorageAdapter{client: client}
}

var _ FileSystem = (*StorageAdapter)(nil)

// SupportedFeatures advertises nothing: transfers at a non-zero offset are
// rejected, so REST must not be offered.
func (a *StorageAdapter) SupportedFeatures() Features {
	return 0
}

func (a *StorageAdapter) Metadata(ctx context.Context, s *Session, path string) (*Metadata, error) {
	p, err := NormalizeAndValidate(path)
	if err != nil {
		return nil, err
	}

	if ts, rest, ok := DetectTimestamp(p); ok {
		logger.Debug("Session %s: timestamp convention on %q, setting %q to %s",
			s.ID, p, rest, ts.Format(time.RFC3339))
		return a.SetModTime(ctx, s, rest, ts)
	}

	inode, err := a.client.GetInode(ctx, s.Token(), p)
	if err != nil {
		return nil, translate(err, p)
	}

	return MetadataFrom(inode, s.UserID), nil
}

// List attributes every entry to the folder owner, so one listing never
// mixes owners.
func (a *StorageAdapter) List(ctx context.Context, s *Session, path string) ([]*Metadata, error) {
	p, err := NormalizeAndValidate(path)
	if err != nil {
		return nil, err
	}

	contents, err := a.client.Contents(ctx, s.Token(), p)
	if err != nil {
		return nil, translate(err, p)
	}

	logger.Debug("Session %s: %q has %d inodes", s.ID, p, len(contents.Inodes))

	entries := make([]*Metadata, 0, len(contents.Inodes))
	for i := range contents.Inodes {
		entries = append(entries, MetadataFrom(&contents.Inodes[i], contents.Owner.ID))
	}
	return entries, nil
}

func (a *StorageAdapter) Get(ctx context.Context, s *Session, path string, offset int64) (io.ReadCloser, error) {
	if offset != 0 {
		return nil, unsupportedOffset("Gets", path, offset)
	}

	p, err := NormalizeAndValidate(path)
	if err != nil {
		return nil, err
	}

	rc, err := a.client.Download(ctx, s.Token(), p)
	if err != nil {
		return nil, translate(err, p)
	}
	return rc, nil
}

// Put uploads and then re-reads the inode, because the upload answer does
// not reliably carry the final size.
func (a *StorageAdapter) Put(ctx context.Context, s *Session, path string, offset int64, r io.Reader) (uint64, error) {
	if offset != 0 {
		return 0, unsupportedOffset("Puts", path, offset)
	}

	p, err := NormalizeAndValidate(path)
	if err != nil {
		return 0, err
	}

	parent, name, err := SplitParentAndName(p)
	if err != nil {
		return 0, err
	}

	if err := a.client.Upload(ctx, s.Token(), parent, name, r); err != nil {
		return 0, translate(err, p)
	}

	inode, err := a.client.GetInode(ctx, s.Token(), p)
	if err != nil {
		return 0, translate(err, p)
	}
	return inode.Size, nil
}

func (a *StorageAdapter) Del(ctx context.Context, s *Session, path string) error {
	p, err := NormalizeAndValidate(path)
	if err != nil {
		return err
	}

	return translate(a.client.Delete(ctx, s.Token(), p), p)
}

func (a *StorageAdapter) Mkd(ctx context.Context, s *Session, path string) error {
	p, err := NormalizeAndValidate(path)
	if err != nil {
		return err
	}

	parent, name, err := SplitParentAndName(p)
	if err != nil {
		return err
	}

	_, err = a.client.CreateFolder(ctx, s.Token(), parent, name)
	return translate(err, p)
}

// Rmd is Del: the remote API has a single delete for files and folders.
func (a *StorageAdapter) Rmd(ctx context.Context, s *Session, path string) error {
	return a.Del(ctx, s, path)
}

// Rename issues a remote rename when the leaf names differ and a remote
// move when the parent folders differ. The move uses the path returned by
// the rename, since the service may have adjusted it.
func (a *StorageAdapter) Rename(ctx context.Context, s *Session, from, to string) error {
	fromPath, err := NormalizeAndValidate(from)
	if err != nil {
		return err
	}
	toPath, err := NormalizeAndValidate(to)
	if err != nil {
		return err
	}

	fromParent, fromName, err := SplitParentAndName(fromPath)
	if err != nil {
		return err
	}
	toParent, toName, err := SplitParentAndName(toPath)
	if err != nil {
		return err
	}

	current := fromPath
	if fromName != toName {
		inode, err := a.client.Rename(ctx, s.Token(), current, toName)
		if err != nil {
			return translate(err, fromPath)
		}
		current = inode.Path
	}

	if fromParent != toParent {
		if _, err := a.client.Move(ctx, s.Token(), current, toParent); err != nil {
			return translate(err, current)
		}
	}

	return nil
}

func (a *StorageAdapter) Cwd(ctx context.Context, s *Session, path string) error {
	p, err := NormalizeAndValidate(path)
	if err != nil {
		return err
	}

	inode, err := a.client.GetInode(ctx, s.Token(), p)
	if err != nil {
		return translate(err, p)
	}

	if !MetadataFrom(inode, s.UserID).IsDir() {
		return newError(ErrNotADirectory, p, "Not a directory")
	}
	return nil
}

func (a *StorageAdapter) SetModTime(ctx context.Context, s *Session, path string, modified time.Time) (*Metadata, error) {
	p, err := NormalizeAndValidate(path)
	if err != nil {
		return nil, err
	}

	inode, err := a.client.SetLastModified(ctx, s.Token(), p, modified)
	if err != nil {
		return nil, translate(err, p)
	}
	return MetadataFrom(inode, s.UserID), nil
}

func unsupportedOffset(op, path string, offset int64) error {
	logger.Error("%s at offset %d are not implemented", op, offset)
	return newError(ErrUnsupportedOffset, path, "%s at offset not equal to 0 are not implemented", op)
}
