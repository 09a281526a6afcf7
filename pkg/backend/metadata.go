package backend

import (
	"os"
	"path"
	"time"

	"github.com/filefighter/ftpfighter/pkg/remote"
)

// Metadata is the protocol-facing view of an inode for one viewing user.
//
// It implements os.FileInfo so the FTP engine can stat and list with it.
// Symlinks do not exist in the remote model and are never reported.
type Metadata struct {
	name     string
	path     string
	size     uint64
	dir      bool
	modified time.Time
	uid      uint32
	gid      uint32
}

// MetadataFrom maps inode to Metadata owned by ownerID.
//
// An inode without a mime type is a folder. There is no group concept in the
// remote model, so the gid mirrors the uid.
func MetadataFrom(inode *remote.Inode, ownerID uint32) *Metadata {
	name := inode.Name
	if name == "" {
		name = path.Base(inode.Path)
	}

	return &Metadata{
		name:     name,
		path:     inode.Path,
		size:     inode.Size,
		dir:      inode.MimeType == nil,
		modified: time.Unix(inode.LastUpdated, 0).UTC(),
		uid:      ownerID,
		gid:      ownerID,
	}
}

func (m *Metadata) Name() string       { return m.name }
func (m *Metadata) Size() int64        { return int64(m.size) }
func (m *Metadata) ModTime() time.Time { return m.modified }
func (m *Metadata) IsDir() bool        { return m.dir }
func (m *Metadata) Sys() any           { return m }

func (m *Metadata) Mode() os.FileMode {
	if m.dir {
		return os.ModeDir | 0o755
	}
	return 0o644
}

// Path is the remote path of the inode.
func (m *Metadata) Path() string { return m.path }

// Len is the content length in bytes.
func (m *Metadata) Len() uint64 { return m.size }

func (m *Metadata) IsFile() bool    { return !m.dir }
func (m *Metadata) IsSymlink() bool { return false }
func (m *Metadata) UID() uint32     { return m.uid }
func (m *Metadata) GID() uint32     { return m.gid }
