package ftp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/filefighter/ftpfighter/pkg/backend"
	"github.com/filefighter/ftpfighter/pkg/journal"
	"github.com/filefighter/ftpfighter/pkg/journal/memory"
	"github.com/filefighter/ftpfighter/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFS is an in-memory backend.FileSystem.
type fakeFS struct {
	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	modified map[string]time.Time
	cwdErr   error
	cwdCalls int
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		files:    map[string][]byte{"/docs/report.txt": []byte("quarterly numbers")},
		dirs:     map[string]bool{"/": true, "/docs": true},
		modified: map[string]time.Time{},
	}
}

func notFound(p string) error {
	return &backend.Error{Code: backend.ErrRemoteRejected, Message: "not found", Path: p, Status: 400}
}

func (f *fakeFS) meta(p string) *backend.Metadata {
	inode := &remote.Inode{Path: p, LastUpdated: f.modified[p].Unix()}
	if data, ok := f.files[p]; ok {
		mime := "text/plain"
		inode.MimeType = &mime
		inode.Size = uint64(len(data))
	}
	return backend.MetadataFrom(inode, 7)
}

func (f *fakeFS) SupportedFeatures() backend.Features { return 0 }

func (f *fakeFS) Metadata(_ context.Context, _ *backend.Session, p string) (*backend.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if modified, rest, ok := backend.DetectTimestamp(p); ok {
		f.modified[rest] = modified
		p = rest
	}
	if strings.Contains(p, "..") {
		return nil, &backend.Error{Code: backend.ErrPathInvalid, Message: "invalid path", Path: p}
	}
	if _, ok := f.files[p]; !ok && !f.dirs[p] {
		return nil, notFound(p)
	}
	return f.meta(p), nil
}

func (f *fakeFS) List(_ context.Context, _ *backend.Session, p string) ([]*backend.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirs[p] {
		return nil, notFound(p)
	}
	var out []*backend.Metadata
	for name := range f.files {
		if strings.HasPrefix(name, p+"/") {
			out = append(out, f.meta(name))
		}
	}
	return out, nil
}

func (f *fakeFS) Get(_ context.Context, _ *backend.Session, p string, offset int64) (io.ReadCloser, error) {
	if offset != 0 {
		return nil, &backend.Error{Code: backend.ErrUnsupportedOffset, Message: "offset", Path: p}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.files[p]
	if !ok {
		return nil, notFound(p)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFS) Put(ctx context.Context, _ *backend.Session, p string, offset int64, r io.Reader) (uint64, error) {
	if offset != 0 {
		return 0, &backend.Error{Code: backend.ErrUnsupportedOffset, Message: "offset", Path: p}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = data
	return uint64(len(data)), nil
}

func (f *fakeFS) Del(_ context.Context, _ *backend.Session, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.files[p]; !ok {
		return notFound(p)
	}
	delete(f.files, p)
	return nil
}

func (f *fakeFS) Mkd(_ context.Context, _ *backend.Session, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[p] = true
	return nil
}

func (f *fakeFS) Rmd(_ context.Context, _ *backend.Session, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirs[p] {
		return notFound(p)
	}
	delete(f.dirs, p)
	return nil
}

func (f *fakeFS) Rename(_ context.Context, _ *backend.Session, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.files[from]
	if !ok {
		return notFound(from)
	}
	delete(f.files, from)
	f.files[to] = data
	return nil
}

func (f *fakeFS) Cwd(_ context.Context, _ *backend.Session, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cwdCalls++
	if f.cwdErr != nil {
		return f.cwdErr
	}
	return nil
}

func (f *fakeFS) SetModTime(_ context.Context, _ *backend.Session, p string, modified time.Time) (*backend.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modified[p] = modified
	return f.meta(p), nil
}

type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, username, password string) (*backend.Session, error) {
	if password != "secret" {
		return nil, &backend.AuthError{Kind: backend.AuthFailed, Message: "wrong credentials"}
	}
	return backend.NewSession(username, "token-"+username, 7), nil
}

// recordingMetrics keeps what the adapter reports.
type recordingMetrics struct {
	mu       sync.Mutex
	ops      []string
	bytes    map[string]int64
	logins   []bool
	accepted int
	rejected int
	closed   int
	active   int32
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{bytes: map[string]int64{}}
}

func (m *recordingMetrics) RecordOperation(op string, _ time.Duration, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code != "" {
		op += ":" + code
	}
	m.ops = append(m.ops, op)
}

func (m *recordingMetrics) RecordBytesTransferred(direction string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes[direction] += n
}

func (m *recordingMetrics) RecordAuthentication(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, ok)
}

func (m *recordingMetrics) SetActiveConnections(n int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

func (m *recordingMetrics) RecordConnectionAccepted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted++
}

func (m *recordingMetrics) RecordConnectionRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected++
}

func (m *recordingMetrics) RecordConnectionClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

type fakeCloser struct {
	closed atomic.Bool
}

func (c *fakeCloser) Close() error {
	c.closed.Store(true)
	return nil
}

var testAddr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}

type harness struct {
	adapter *FTPAdapter
	fs      *fakeFS
	metrics *recordingMetrics
	journal *memory.Store
}

func newHarness(t *testing.T, cfg FTPConfig) *harness {
	t.Helper()

	h := &harness{
		fs:      newFakeFS(),
		metrics: newRecordingMetrics(),
		journal: memory.New(memory.Config{}),
	}

	a, err := New(cfg, h.metrics, h.journal)
	require.NoError(t, err)
	a.SetBackend(func() backend.FileSystem { return h.fs }, fakeAuth{})
	h.adapter = a
	return h
}

// login accepts connection id and authenticates it as alice.
func (h *harness) login(t *testing.T, id uint32, closer io.Closer) *clientDriver {
	t.Helper()

	_, err := h.adapter.accept(id, testAddr, closer)
	require.NoError(t, err)

	d, err := h.adapter.login(id, "alice", "secret")
	require.NoError(t, err)
	return d.(*clientDriver)
}

func (h *harness) entries(t *testing.T) []journal.Entry {
	t.Helper()
	entries, err := h.journal.Recent(context.Background(), 0)
	require.NoError(t, err)
	return entries
}

func TestNew_Defaults(t *testing.T) {
	a, err := New(FTPConfig{}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "FTP", a.Protocol())
	assert.Equal(t, 2121, a.Port())

	settings, err := (&mainDriver{adapter: a}).GetSettings()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:2121", settings.ListenAddr)
	assert.Equal(t, 900, settings.IdleTimeout)
	assert.Equal(t, 30, settings.ConnectionTimeout)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(FTPConfig{PassivePortStart: 3000, PassivePortEnd: 2000}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start exceeds end")

	_, err = New(FTPConfig{ListenAddr: "no-port"}, nil, nil)
	require.Error(t, err)
}

func TestServe_RequiresBackend(t *testing.T) {
	a, err := New(FTPConfig{ListenAddr: "127.0.0.1:0"}, nil, nil)
	require.NoError(t, err)

	err = a.Serve(context.Background())
	require.Error(t, err)
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	h := newHarness(t, FTPConfig{ListenAddr: "127.0.0.1:0", ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.adapter.Serve(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestAccept_ConnectionLimit(t *testing.T) {
	h := newHarness(t, FTPConfig{MaxConnections: 1})

	banner, err := h.adapter.accept(1, testAddr, &fakeCloser{})
	require.NoError(t, err)
	assert.Equal(t, "FileFighter FTP Server", banner)

	_, err = h.adapter.accept(2, testAddr, &fakeCloser{})
	assert.ErrorIs(t, err, errTooManyConnections)

	// The engine reports the refused connection as disconnected too.
	h.adapter.release(2)
	assert.Equal(t, int32(1), h.adapter.GetActiveConnections())

	h.adapter.release(1)
	h.adapter.release(1)
	assert.Equal(t, int32(0), h.adapter.GetActiveConnections())

	_, err = h.adapter.accept(3, testAddr, &fakeCloser{})
	require.NoError(t, err)

	assert.Equal(t, 2, h.metrics.accepted)
	assert.Equal(t, 1, h.metrics.rejected)
	assert.Equal(t, 1, h.metrics.closed)
}

func TestAccept_AfterStop(t *testing.T) {
	h := newHarness(t, FTPConfig{})
	require.NoError(t, h.adapter.Stop(context.Background()))

	_, err := h.adapter.accept(1, testAddr, &fakeCloser{})
	assert.ErrorIs(t, err, errShuttingDown)
}

func TestLogin(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		h := newHarness(t, FTPConfig{})
		d := h.login(t, 1, &fakeCloser{})

		assert.Equal(t, "alice", d.session.Username)
		assert.Equal(t, []bool{true}, h.metrics.logins)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		h := newHarness(t, FTPConfig{})
		_, err := h.adapter.accept(1, testAddr, &fakeCloser{})
		require.NoError(t, err)

		_, err = h.adapter.login(1, "alice", "nope")
		var authErr *backend.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, []bool{false}, h.metrics.logins)
	})

	t.Run("NoFileSystemCall", func(t *testing.T) {
		h := newHarness(t, FTPConfig{})
		h.fs.cwdErr = notFound("/")
		_, err := h.adapter.accept(1, testAddr, &fakeCloser{})
		require.NoError(t, err)

		_, err = h.adapter.login(1, "alice", "secret")
		require.NoError(t, err)
		assert.Equal(t, 0, h.fs.cwdCalls)
		assert.Equal(t, []bool{true}, h.metrics.logins)
		assert.Empty(t, h.metrics.ops)
	})

	t.Run("Throttled", func(t *testing.T) {
		h := newHarness(t, FTPConfig{LoginRatePerMinute: 1, LoginBurst: 2})
		_, err := h.adapter.accept(1, testAddr, &fakeCloser{})
		require.NoError(t, err)
		_, err = h.adapter.accept(2, &net.TCPAddr{IP: testAddr.IP, Port: 50001}, &fakeCloser{})
		require.NoError(t, err)

		_, err = h.adapter.login(1, "alice", "nope")
		require.Error(t, err)
		_, err = h.adapter.login(2, "alice", "nope")
		require.Error(t, err)

		// Same host, other port: the budget is shared.
		_, err = h.adapter.login(2, "alice", "secret")
		assert.ErrorIs(t, err, errLoginThrottled)
		assert.Greater(t, h.adapter.logins.Delay(testAddr.IP.String()), time.Duration(0))
	})

	t.Run("UnknownConnection", func(t *testing.T) {
		h := newHarness(t, FTPConfig{})
		_, err := h.adapter.login(42, "alice", "secret")
		assert.ErrorIs(t, err, errUnknownConnection)
	})
}

func TestClientDriver_Operations(t *testing.T) {
	h := newHarness(t, FTPConfig{})
	d := h.login(t, 1, &fakeCloser{})

	require.NoError(t, d.Mkdir("/docs/archive", 0o755))
	require.NoError(t, d.Rename("/docs/report.txt", "/docs/archive/report.txt"))

	infos, err := d.ReadDir("/docs/archive")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "report.txt", infos[0].Name())
	assert.Equal(t, int64(17), infos[0].Size())

	require.NoError(t, d.Remove("/docs/archive/report.txt"))
	require.NoError(t, d.RemoveDir("/docs/archive"))

	entries := h.entries(t)
	require.Len(t, entries, 4)
	assert.Equal(t, journal.OpRmdir, entries[0].Operation)
	assert.Equal(t, journal.OpDelete, entries[1].Operation)
	assert.Equal(t, journal.OpRename, entries[2].Operation)
	assert.Equal(t, "/docs/archive/report.txt", entries[2].Target)
	assert.Equal(t, journal.OpMkdir, entries[3].Operation)
	for _, e := range entries {
		assert.Equal(t, "alice", e.Username)
		assert.Equal(t, d.session.ID, e.SessionID)
		assert.Empty(t, e.ErrorCode)
	}
}

func TestClientDriver_Errors(t *testing.T) {
	h := newHarness(t, FTPConfig{})
	d := h.login(t, 1, &fakeCloser{})

	t.Run("NotFoundKeepsDefaultReply", func(t *testing.T) {
		info, err := d.Stat("/missing")
		require.Error(t, err)
		assert.Nil(t, info)
		assert.True(t, backend.IsCode(err, backend.ErrRemoteRejected))
		assert.False(t, errors.Is(err, ftpserver.ErrFileNameNotAllowed))
	})

	t.Run("InvalidPathIsFileNameNotAllowed", func(t *testing.T) {
		_, err := d.Stat("/docs/../etc")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ftpserver.ErrFileNameNotAllowed))
	})

	t.Run("PermissionsNotSupported", func(t *testing.T) {
		err := d.Chmod("/docs/report.txt", 0o600)
		assert.True(t, backend.IsCode(err, backend.ErrNotSupported))

		_, err = d.Open("/docs/report.txt")
		assert.True(t, backend.IsCode(err, backend.ErrNotSupported))

		err = d.Chown("/docs/report.txt", 1, 1)
		assert.True(t, backend.IsCode(err, backend.ErrNotSupported))

		assert.Contains(t, h.metrics.ops, "chmod:not_supported")
		assert.Contains(t, h.metrics.ops, "open:not_supported")
		assert.Contains(t, h.metrics.ops, "chown:not_supported")
	})

	t.Run("FailuresAreJournaled", func(t *testing.T) {
		err := d.Remove("/missing")
		require.Error(t, err)

		entries := h.entries(t)
		require.NotEmpty(t, entries)
		assert.Equal(t, journal.OpDelete, entries[0].Operation)
		assert.Equal(t, "remote_rejected", entries[0].ErrorCode)
	})
}

func TestClientDriver_TimestampConvention(t *testing.T) {
	h := newHarness(t, FTPConfig{})
	d := h.login(t, 1, &fakeCloser{})

	info, err := d.Stat("/20240102030405 /docs/report.txt")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), info.ModTime())

	entries := h.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OpSetModTime, entries[0].Operation)
	assert.Equal(t, "2024-01-02T03:04:05Z", entries[0].Target)
}

func TestClientDriver_Chtimes(t *testing.T) {
	h := newHarness(t, FTPConfig{})
	d := h.login(t, 1, &fakeCloser{})

	mtime := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, d.Chtimes("/docs/report.txt", time.Time{}, mtime))
	assert.Equal(t, mtime, h.fs.modified["/docs/report.txt"])
}

func TestDownload(t *testing.T) {
	h := newHarness(t, FTPConfig{})
	d := h.login(t, 1, &fakeCloser{})

	ft, err := d.GetHandle("/docs/report.txt", os.O_RDONLY, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.adapter.transfers.Load())

	data, err := io.ReadAll(ft)
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(data))
	require.NoError(t, ft.Close())
	require.NoError(t, ft.Close())

	assert.Equal(t, int32(0), h.adapter.transfers.Load())
	assert.Equal(t, int64(17), h.metrics.bytes[directionDownload])

	entries := h.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OpDownload, entries[0].Operation)
	assert.Equal(t, int64(17), entries[0].Bytes)
}

func TestDownload_Missing(t *testing.T) {
	h := newHarness(t, FTPConfig{})
	d := h.login(t, 1, &fakeCloser{})

	_, err := d.GetHandle("/nope.txt", os.O_RDONLY, 0)
	require.Error(t, err)
	assert.Equal(t, int32(0), h.adapter.transfers.Load())
	assert.Contains(t, h.metrics.ops, "download:remote_rejected")

	entries := h.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "remote_rejected", entries[0].ErrorCode)
}

func TestUpload(t *testing.T) {
	h := newHarness(t, FTPConfig{})
	d := h.login(t, 1, &fakeCloser{})

	ft, err := d.GetHandle("/docs/new.bin", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0)
	require.NoError(t, err)

	_, err = ft.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = ft.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, ft.Close())

	assert.Equal(t, "hello world", string(h.fs.files["/docs/new.bin"]))
	assert.Equal(t, int64(11), h.metrics.bytes[directionUpload])
	assert.Equal(t, int32(0), h.adapter.transfers.Load())

	entries := h.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OpUpload, entries[0].Operation)
	assert.Equal(t, int64(11), entries[0].Bytes)
}

func TestUpload_Aborted(t *testing.T) {
	h := newHarness(t, FTPConfig{})
	d := h.login(t, 1, &fakeCloser{})

	ft, err := d.GetHandle("/docs/partial.bin", os.O_WRONLY|os.O_CREATE, 0)
	require.NoError(t, err)
	_, err = ft.Write([]byte("half"))
	require.NoError(t, err)

	ft.(ftpserver.FileTransferError).TransferError(errors.New("data connection reset"))
	require.Error(t, ft.Close())

	_, stored := h.fs.files["/docs/partial.bin"]
	assert.False(t, stored)
	assert.Equal(t, int32(0), h.adapter.transfers.Load())
}

func TestGetHandle_Restrictions(t *testing.T) {
	h := newHarness(t, FTPConfig{})
	d := h.login(t, 1, &fakeCloser{})

	_, err := d.GetHandle("/docs/report.txt", os.O_RDONLY, 5)
	assert.True(t, backend.IsCode(err, backend.ErrUnsupportedOffset))

	_, err = d.GetHandle("/docs/report.txt", os.O_WRONLY, 5)
	assert.True(t, backend.IsCode(err, backend.ErrUnsupportedOffset))

	_, err = d.GetHandle("/docs/report.txt", os.O_WRONLY|os.O_APPEND, 0)
	assert.True(t, backend.IsCode(err, backend.ErrNotSupported))

	assert.Equal(t, int32(0), h.adapter.transfers.Load())
}

func TestStop_WaitsForTransfers(t *testing.T) {
	h := newHarness(t, FTPConfig{ShutdownTimeout: 2 * time.Second})
	closer := &fakeCloser{}
	d := h.login(t, 1, closer)

	ft, err := d.GetHandle("/docs/report.txt", os.O_RDONLY, 0)
	require.NoError(t, err)

	stopped := make(chan error, 1)
	go func() {
		stopped <- h.adapter.Stop(context.Background())
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a transfer was running")
	case <-time.After(150 * time.Millisecond):
	}
	assert.False(t, closer.closed.Load())

	require.NoError(t, ft.Close())

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the transfer finished")
	}
	assert.True(t, closer.closed.Load())
}

func TestStop_TimeoutForcesClosure(t *testing.T) {
	h := newHarness(t, FTPConfig{ShutdownTimeout: 100 * time.Millisecond})
	closer := &fakeCloser{}
	d := h.login(t, 1, closer)

	ft, err := d.GetHandle("/docs/report.txt", os.O_RDONLY, 0)
	require.NoError(t, err)
	defer ft.Close()

	start := time.Now()
	err = h.adapter.Stop(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.True(t, closer.closed.Load())
	assert.ErrorIs(t, d.ctx.Err(), context.Canceled)
}

func TestStop_ContextCancelled(t *testing.T) {
	h := newHarness(t, FTPConfig{ShutdownTimeout: 5 * time.Second})
	d := h.login(t, 1, &fakeCloser{})

	ft, err := d.GetHandle("/docs/report.txt", os.O_RDONLY, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = h.adapter.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, ft.Close())
}
