package ftp

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/filefighter/ftpfighter/pkg/backend"
	"github.com/filefighter/ftpfighter/pkg/journal"
)

const (
	directionDownload = "download"
	directionUpload   = "upload"
)

// errTransferAborted is recorded when the engine aborts a transfer without
// giving a reason.
var errTransferAborted = errors.New("transfer aborted")

// downloadHandle streams a file from the FileHandler service to the data
// connection.
type downloadHandle struct {
	c      *clientDriver
	name   string
	rc     io.ReadCloser
	cancel context.CancelFunc
	start  time.Time

	n        int64
	err      error
	closeErr error
	once     sync.Once
}

func (c *clientDriver) openDownload(name string, offset int64) (*downloadHandle, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(c.ctx)

	rc, err := c.fs.Get(ctx, c.session, name, offset)
	if err != nil {
		cancel()
		c.done(journal.OpDownload, start, err)
		c.record(journal.Entry{Operation: journal.OpDownload, Path: name}, err)
		return nil, err
	}

	c.transfers.Add(1)
	return &downloadHandle{c: c, name: name, rc: rc, cancel: cancel, start: start}, nil
}

func (h *downloadHandle) Read(p []byte) (int, error) {
	n, err := h.rc.Read(p)
	h.n += int64(n)
	if err != nil && err != io.EOF && h.err == nil {
		h.err = err
	}
	return n, err
}

func (h *downloadHandle) Write([]byte) (int, error) {
	return 0, toEngine(backend.NotSupported("write to a download", h.name))
}

func (h *downloadHandle) Seek(offset int64, whence int) (int64, error) {
	return seekStart(h.name, offset, whence)
}

// TransferError is called by the engine when the data connection fails.
func (h *downloadHandle) TransferError(err error) {
	if err == nil {
		err = errTransferAborted
	}
	h.err = err
	h.cancel()
}

func (h *downloadHandle) Close() error {
	h.once.Do(func() {
		closeErr := h.rc.Close()
		h.cancel()
		h.c.transfers.Add(-1)

		err := h.err
		if err == nil {
			err = closeErr
		}

		h.c.metrics.RecordBytesTransferred(directionDownload, h.n)
		h.c.done(journal.OpDownload, h.start, err)
		h.c.record(journal.Entry{Operation: journal.OpDownload, Path: h.name, Bytes: h.n}, err)

		if err != nil {
			h.c.log.Warn("Download of %q failed after %s: %v", h.name, humanize.Bytes(uint64(h.n)), err)
		} else {
			h.c.log.Info("Sent %q (%s in %v)", h.name, humanize.Bytes(uint64(h.n)), time.Since(h.start).Round(time.Millisecond))
		}
		h.closeErr = closeErr
	})
	return h.closeErr
}

type uploadResult struct {
	size uint64
	err  error
}

// uploadHandle pipes the data connection into a streamed upload running in
// its own goroutine. Close waits for the upload to finish.
type uploadHandle struct {
	c      *clientDriver
	name   string
	pw     *io.PipeWriter
	result chan uploadResult
	cancel context.CancelFunc
	start  time.Time

	n        int64
	aborted  error
	closeErr error
	once     sync.Once
}

func (c *clientDriver) openUpload(name string, offset int64) *uploadHandle {
	ctx, cancel := context.WithCancel(c.ctx)
	pr, pw := io.Pipe()

	h := &uploadHandle{
		c:      c,
		name:   name,
		pw:     pw,
		result: make(chan uploadResult, 1),
		cancel: cancel,
		start:  time.Now(),
	}

	c.transfers.Add(1)
	go func() {
		size, err := c.fs.Put(ctx, c.session, name, offset, pr)
		// Unblocks a writer when the upload ended early.
		_ = pr.CloseWithError(errOrEOF(err))
		h.result <- uploadResult{size: size, err: err}
	}()

	return h
}

func (h *uploadHandle) Write(p []byte) (int, error) {
	n, err := h.pw.Write(p)
	h.n += int64(n)
	return n, toEngine(err)
}

func (h *uploadHandle) Read([]byte) (int, error) {
	return 0, toEngine(backend.NotSupported("read from an upload", h.name))
}

func (h *uploadHandle) Seek(offset int64, whence int) (int64, error) {
	return seekStart(h.name, offset, whence)
}

// TransferError aborts the upload. The remote side sees a broken body and
// discards the file.
func (h *uploadHandle) TransferError(err error) {
	if err == nil {
		err = errTransferAborted
	}
	h.aborted = err
	_ = h.pw.CloseWithError(err)
	h.cancel()
}

func (h *uploadHandle) Close() error {
	h.once.Do(func() {
		if h.aborted == nil {
			_ = h.pw.Close()
		}
		res := <-h.result
		h.cancel()
		h.c.transfers.Add(-1)

		err := res.err
		if err == nil && h.aborted != nil {
			err = h.aborted
		}

		h.c.metrics.RecordBytesTransferred(directionUpload, h.n)
		h.c.done(journal.OpUpload, h.start, err)
		h.c.record(journal.Entry{Operation: journal.OpUpload, Path: h.name, Bytes: h.n}, err)

		if err != nil {
			h.c.log.Warn("Upload of %q failed after %s: %v", h.name, humanize.Bytes(uint64(h.n)), err)
			h.closeErr = toEngine(err)
			return
		}
		h.c.log.Info("Stored %q (%s in %v)", h.name, humanize.Bytes(res.size), time.Since(h.start).Round(time.Millisecond))
	})
	return h.closeErr
}

// seekStart accepts only the no-op seek to the start of the file.
func seekStart(name string, offset int64, whence int) (int64, error) {
	if offset == 0 && (whence == io.SeekStart || whence == io.SeekCurrent) {
		return 0, nil
	}
	return 0, toEngine(backend.NotSupported("seek", name))
}

func errOrEOF(err error) error {
	if err == nil {
		return io.EOF
	}
	return err
}
