package ftp

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/filefighter/ftpfighter/internal/logger"
	"github.com/filefighter/ftpfighter/pkg/backend"
	"github.com/filefighter/ftpfighter/pkg/journal"
	"github.com/filefighter/ftpfighter/pkg/metrics"
	"github.com/spf13/afero"
)

// journalTimeout bounds a single journal write. Journal writes never use the
// connection context so a disconnect does not lose the entry.
const journalTimeout = 5 * time.Second

// clientDriver serves one authenticated FTP connection.
//
// It implements afero.Fs for the engine plus the ReadDir, GetHandle and
// RemoveDir extensions. Every call is forwarded to the connection's
// backend.FileSystem with the connection context, so a disconnect aborts
// the remote request in flight.
type clientDriver struct {
	ctx       context.Context
	fs        backend.FileSystem
	session   *backend.Session
	journal   journal.Store
	metrics   metrics.FTPMetrics
	log       *logger.Logger
	transfers *atomic.Int32
}

var (
	_ ftpserver.ClientDriver                      = (*clientDriver)(nil)
	_ ftpserver.ClientDriverExtensionFileList     = (*clientDriver)(nil)
	_ ftpserver.ClientDriverExtentionFileTransfer = (*clientDriver)(nil)
	_ ftpserver.ClientDriverExtensionRemoveDir    = (*clientDriver)(nil)
)

func (c *clientDriver) Name() string {
	return "ftpfighter"
}

// Stat also serves the timestamp convention: a client that sets a
// modification time through "MDTM <YYYYMMDDHHMMSS> <path>" ends up here with
// the timestamp prefixed to the path.
func (c *clientDriver) Stat(name string) (os.FileInfo, error) {
	start := time.Now()
	md, err := c.fs.Metadata(c.ctx, c.session, name)

	if modified, rest, ok := backend.DetectTimestamp(name); ok {
		c.done(journal.OpSetModTime, start, err)
		c.record(journal.Entry{Operation: journal.OpSetModTime, Path: rest, Target: modified.Format(time.RFC3339)}, err)
	} else {
		c.done("stat", start, err)
	}

	if err != nil {
		return nil, toEngine(err)
	}
	return md, nil
}

func (c *clientDriver) ReadDir(name string) ([]os.FileInfo, error) {
	start := time.Now()
	entries, err := c.fs.List(c.ctx, c.session, name)
	c.done("list", start, err)
	if err != nil {
		return nil, toEngine(err)
	}

	infos := make([]os.FileInfo, len(entries))
	for i, e := range entries {
		infos[i] = e
	}
	return infos, nil
}

func (c *clientDriver) Mkdir(name string, _ os.FileMode) error {
	start := time.Now()
	err := c.fs.Mkd(c.ctx, c.session, name)
	c.done(journal.OpMkdir, start, err)
	c.record(journal.Entry{Operation: journal.OpMkdir, Path: name}, err)
	return toEngine(err)
}

// MkdirAll creates only the last component; the FileSystem service has no
// recursive create.
func (c *clientDriver) MkdirAll(name string, perm os.FileMode) error {
	return c.Mkdir(name, perm)
}

func (c *clientDriver) Remove(name string) error {
	start := time.Now()
	err := c.fs.Del(c.ctx, c.session, name)
	c.done(journal.OpDelete, start, err)
	c.record(journal.Entry{Operation: journal.OpDelete, Path: name}, err)
	return toEngine(err)
}

func (c *clientDriver) RemoveDir(name string) error {
	start := time.Now()
	err := c.fs.Rmd(c.ctx, c.session, name)
	c.done(journal.OpRmdir, start, err)
	c.record(journal.Entry{Operation: journal.OpRmdir, Path: name}, err)
	return toEngine(err)
}

// RemoveAll deletes recursively on the service side.
func (c *clientDriver) RemoveAll(name string) error {
	return c.RemoveDir(name)
}

func (c *clientDriver) Rename(from, to string) error {
	start := time.Now()
	err := c.fs.Rename(c.ctx, c.session, from, to)
	c.done(journal.OpRename, start, err)
	c.record(journal.Entry{Operation: journal.OpRename, Path: from, Target: to}, err)
	return toEngine(err)
}

func (c *clientDriver) Chtimes(name string, _ time.Time, mtime time.Time) error {
	start := time.Now()
	_, err := c.fs.SetModTime(c.ctx, c.session, name, mtime)
	c.done(journal.OpSetModTime, start, err)
	c.record(journal.Entry{Operation: journal.OpSetModTime, Path: name, Target: mtime.UTC().Format(time.RFC3339)}, err)
	return toEngine(err)
}

func (c *clientDriver) Chmod(name string, _ os.FileMode) error {
	return c.unsupported("chmod", name)
}

func (c *clientDriver) Chown(name string, _, _ int) error {
	return c.unsupported("chown", name)
}

// Create, Open and OpenFile are never used for transfers, which go through
// GetHandle. Random-access files cannot be expressed on the remote side.
func (c *clientDriver) Create(name string) (afero.File, error) {
	return nil, c.unsupported("create", name)
}

func (c *clientDriver) Open(name string) (afero.File, error) {
	return nil, c.unsupported("open", name)
}

func (c *clientDriver) OpenFile(name string, _ int, _ os.FileMode) (afero.File, error) {
	return nil, c.unsupported("open", name)
}

// GetHandle opens a streamed transfer. Write flags select an upload,
// anything else a download.
func (c *clientDriver) GetHandle(name string, flags int, offset int64) (ftpserver.FileTransfer, error) {
	op := journal.OpDownload
	if flags&(os.O_WRONLY|os.O_RDWR) != 0 {
		op = journal.OpUpload
	}

	if flags&os.O_APPEND != 0 {
		err := backend.NotSupported("append", name)
		c.done(op, time.Now(), err)
		return nil, toEngine(err)
	}

	if op == journal.OpUpload {
		// Uploads run in the background, so a refused offset has to be
		// reported here before the data connection is committed.
		if offset != 0 && !c.fs.SupportedFeatures().Has(backend.FeatureRestart) {
			_, err := c.fs.Put(c.ctx, c.session, name, offset, strings.NewReader(""))
			c.done(op, time.Now(), err)
			return nil, toEngine(err)
		}
		return c.openUpload(name, offset), nil
	}

	h, err := c.openDownload(name, offset)
	if err != nil {
		return nil, toEngine(err)
	}
	return h, nil
}

func (c *clientDriver) unsupported(op, name string) error {
	err := backend.NotSupported(op, name)
	c.done(journal.Operation(op), time.Now(), err)
	return toEngine(err)
}

// done reports a finished operation to the metrics sink.
func (c *clientDriver) done(op journal.Operation, start time.Time, err error) {
	c.metrics.RecordOperation(string(op), time.Since(start), errorCode(err))
	if err != nil {
		c.log.Debug("%s failed: %v", op, err)
	}
}

// record appends e to the journal, filling in the session fields.
func (c *clientDriver) record(e journal.Entry, err error) {
	e.Time = time.Now().UTC()
	e.SessionID = c.session.ID
	e.Username = c.session.Username
	e.ErrorCode = errorCode(err)

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	if jerr := c.journal.Record(ctx, e); jerr != nil {
		c.log.Warn("Failed to journal %s of %q: %v", e.Operation, e.Path, jerr)
	}
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if code, ok := backend.CodeOf(err); ok {
		return code.String()
	}
	return "internal"
}
