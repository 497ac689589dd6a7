package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/memipc/internal/codec"
	"github.com/GriffinCanCode/memipc/internal/config"
	"github.com/GriffinCanCode/memipc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/memipc/internal/logging"
	"github.com/GriffinCanCode/memipc/internal/shm"
	"github.com/GriffinCanCode/memipc/internal/testutil"
)

type harness struct {
	srv     *Server
	reader  *testutil.MockClientReader
	wakeup  *testutil.MockClientWriter
	replies *testutil.MockServerWriter
	runErr  chan error
}

func newHarness(t *testing.T, journal *Journal) *harness {
	t.Helper()
	reader := testutil.NewMockClientReader(t)
	h := &harness{
		reader:  reader,
		wakeup:  testutil.NewMockClientWriter(t, reader),
		replies: testutil.NewMockServerWriter(t),
		runErr:  make(chan error, 1),
	}

	srv, err := NewWithChannels(config.Default(), Channels{
		Requests: h.reader,
		Wakeup:   h.wakeup,
		Replies:  h.replies,
	}, journal, logging.NewNop(), monitoring.NewMetrics())
	require.NoError(t, err)
	h.srv = srv
	return h
}

func (h *harness) start() {
	go func() { h.runErr <- h.srv.Run() }()
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.srv.Shutdown(ctx))
	select {
	case err := <-h.runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func (h *harness) reply(t *testing.T) codec.ServerItem {
	t.Helper()
	select {
	case r := <-h.replies.Replies:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
		return codec.ServerItem{}
	}
}

func TestServerAppliesAndReplies(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	h.reader.Push(add("users", "a", "alice"))
	assert.Equal(t, codec.ServerItem{TableID: "users", Action: codec.ActionAdd, Index: 1}, h.reply(t))

	h.reader.Push(add("users", "b", "bob"))
	assert.Equal(t, uint16(2), h.reply(t).Index)

	h.reader.Push(codec.ClientItem{TableID: "users", Action: codec.ActionQuery, Key: []byte("b")})
	assert.Equal(t, []byte("bob"), h.reply(t).Value)

	h.reader.Push(codec.ClientItem{TableID: "users", Action: codec.ActionDelete, Key: []byte("a")})
	assert.Equal(t, uint16(1), h.reply(t).Index)

	h.stop(t)

	assert.Equal(t, int64(4), h.srv.Metrics().Snapshot().RecordsApplied)
	h.wakeup.AssertCalled(t, "WriteClientItem", wakeupItem())
	h.reader.AssertCalled(t, "Close")
	h.wakeup.AssertCalled(t, "Close")
	h.replies.AssertCalled(t, "Close")

	// The shutdown wakeup is not applied.
	assert.Empty(t, h.replies.Replies)
}

func TestServerSkipsMalformedRecords(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	h.reader.Push(codec.ClientItem{TableID: testutil.DecodeFailure})
	h.reader.Push(add("t", "k", "v"))
	assert.Equal(t, "t", h.reply(t).TableID)

	h.stop(t)
}

func TestServerReplyFailureIsNotFatal(t *testing.T) {
	reader := testutil.NewMockClientReader(t)
	replies := &testutil.MockServerWriter{}
	replies.On("WriteServerItem", mock.Anything).Return(testutil.ErrInjected)
	replies.On("Close").Return(nil)

	srv, err := NewWithChannels(config.Default(), Channels{
		Requests: reader,
		Wakeup:   testutil.NewMockClientWriter(t, reader),
		Replies:  replies,
	}, nil, nil, nil)
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run() }()

	reader.Push(add("t", "a", "1"))
	reader.Push(add("t", "b", "2"))
	assert.Eventually(t, func() bool { return srv.Shadow().Len("t") == 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, <-runErr)
	replies.AssertNumberOfCalls(t, "WriteServerItem", 2)
}

// pausingReader holds its first record until release is closed.
type pausingReader struct {
	*testutil.MockClientReader
	once    sync.Once
	taken   chan struct{}
	release chan struct{}
}

func (p *pausingReader) ReadClientItem() (codec.ClientItem, error) {
	item, err := p.MockClientReader.ReadClientItem()
	p.once.Do(func() {
		close(p.taken)
		<-p.release
	})
	return item, err
}

func TestServerAppliesRecordReadDuringShutdown(t *testing.T) {
	inner := testutil.NewMockClientReader(t)
	reader := &pausingReader{
		MockClientReader: inner,
		taken:            make(chan struct{}),
		release:          make(chan struct{}),
	}
	replies := testutil.NewMockServerWriter(t)

	srv, err := NewWithChannels(config.Default(), Channels{
		Requests: reader,
		Wakeup:   testutil.NewMockClientWriter(t, inner),
		Replies:  replies,
	}, nil, nil, monitoring.NewMetrics())
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run() }()

	inner.Push(add("t", "k", "v"))
	<-reader.taken

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(ctx)
	}()
	require.Eventually(t, srv.stopping.Load, 5*time.Second, 5*time.Millisecond)
	close(reader.release)

	require.NoError(t, <-shutdownErr)
	require.NoError(t, <-runErr)

	assert.Equal(t, 1, srv.Shadow().Len("t"))
	require.Len(t, replies.Replies, 1)
	assert.Equal(t, codec.ServerItem{TableID: "t", Action: codec.ActionAdd, Index: 1}, <-replies.Replies)
	assert.Equal(t, int64(1), srv.Metrics().Snapshot().RecordsApplied)
}

func TestServerSkipsStaleWakeup(t *testing.T) {
	h := newHarness(t, nil)

	// Left behind by an instance that stopped before reading its wakeup.
	h.reader.Push(wakeupItem())
	h.reader.Push(add("t", "k", "v"))
	h.start()

	assert.Equal(t, codec.ServerItem{TableID: "t", Action: codec.ActionAdd, Index: 1}, h.reply(t))
	h.stop(t)

	assert.Empty(t, h.replies.Replies)
	assert.Equal(t, int64(1), h.srv.Metrics().Snapshot().RecordsApplied)
}

func TestClientNoopIsNotWakeup(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	h.reader.Push(codec.ClientItem{Action: codec.ActionNoop})
	assert.Equal(t, codec.ActionNoop, h.reply(t).Action)

	h.stop(t)
}

type failingReader struct {
	mock.Mock
}

func (f *failingReader) ReadClientItem() (codec.ClientItem, error) {
	args := f.Called()
	return codec.ClientItem{}, args.Error(0)
}

func (f *failingReader) Close() error {
	return f.Called().Error(0)
}

func TestServerStopsOnTransportError(t *testing.T) {
	reader := &failingReader{}
	reader.On("ReadClientItem").Return(testutil.ErrInjected).Once()
	reader.On("Close").Return(nil)

	srv, err := NewWithChannels(config.Default(), Channels{
		Requests: reader,
		Wakeup:   testutil.NewMockClientWriter(t, nil),
	}, nil, nil, nil)
	require.NoError(t, err)

	err = srv.Run()
	assert.ErrorIs(t, err, testutil.ErrInjected)

	// Run has returned, so shutdown must not need a wakeup.
	require.NoError(t, srv.Shutdown(context.Background()))
	reader.AssertExpectations(t)
}

func TestServerRunTwice(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	assert.Eventually(t, func() bool { return h.srv.running.Load() }, 5*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.srv.Run(), ErrAlreadyRunning)

	h.stop(t)
}

func TestShutdownBeforeRun(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.srv.Shutdown(context.Background()))
	assert.ErrorIs(t, h.srv.Run(), ErrStopped)
	h.wakeup.AssertNotCalled(t, "WriteClientItem", mock.Anything)

	// Later calls return the first result without closing again.
	require.NoError(t, h.srv.Shutdown(context.Background()))
	h.reader.AssertNumberOfCalls(t, "Close", 1)
}

func TestNewWithChannelsRequiresChannels(t *testing.T) {
	_, err := NewWithChannels(config.Default(), Channels{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestServerJournalsAndReplays(t *testing.T) {
	dir := t.TempDir()

	journal, err := OpenJournal("shadow", 4096, nil, shm.WithDir(dir))
	require.NoError(t, err)
	h := newHarness(t, journal)
	h.start()

	h.reader.Push(add("t", "a", "1"))
	h.reader.Push(add("t", "b", "2"))
	h.reader.Push(codec.ClientItem{TableID: "t", Action: codec.ActionQuery, Key: []byte("a")})
	h.reader.Push(codec.ClientItem{TableID: "t", Action: codec.ActionDelete, Key: []byte("a")})
	for i := 0; i < 4; i++ {
		h.reply(t)
	}
	h.stop(t)

	// A new server on the same journal starts from the same shadow.
	journal, err = OpenJournal("shadow", 0, nil, shm.WithDir(dir))
	require.NoError(t, err)
	records := 0
	_, err = journal.Replay(func(codec.ClientItem) error { records++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, records, "queries are not journaled")

	h2 := newHarness(t, journal)
	assert.Equal(t, []string{"b"}, h2.srv.Shadow().Keys("t"))
	require.NoError(t, h2.srv.Shutdown(context.Background()))
}

func TestRoutes(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.Shadow().Apply(add("orders", "1", "x"))

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, h.srv.Instance().String(), health["instance"])

	w = get("/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Tables   map[string]int      `json:"tables"`
		Messages monitoring.Snapshot `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, map[string]int{"orders": 1}, stats.Tables)

	w = get("/tables/orders")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"keys":["1"]`)

	assert.Equal(t, http.StatusNotFound, get("/tables/missing").Code)

	w = get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `memipc_http_requests_total{method="GET",path="/healthz",status="200"} 1`)

	require.NoError(t, h.srv.Shutdown(context.Background()))
	assert.Equal(t, http.StatusServiceUnavailable, get("/healthz").Code)
}
