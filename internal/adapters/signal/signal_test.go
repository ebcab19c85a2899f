package signal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/VoiceClient/internal/core/coretest"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer upgrades every request and hands the server side of the socket to onConn.
type testServer struct {
	*httptest.Server
	upgrades atomic.Int32
	lastURL  atomic.Value
	conns    chan *websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{conns: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.lastURL.Store(r.URL.String())
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.upgrades.Add(1)
		ts.conns <- c
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func (ts *testServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-ts.conns:
		t.Cleanup(func() { _ = c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for upgrade")
		return nil
	}
}

type dialerFunc func(ctx context.Context, u string, h http.Header) (*websocket.Conn, *http.Response, error)

func (f dialerFunc) DialContext(ctx context.Context, u string, h http.Header) (*websocket.Conn, *http.Response, error) {
	return f(ctx, u, h)
}

type statusLog struct {
	mu  sync.Mutex
	all []Status
}

func (l *statusLog) record(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, s)
}

func (l *statusLog) last() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.all) == 0 {
		return ""
	}
	return l.all[len(l.all)-1]
}

func newTestManager(url string, clock *coretest.Clock, opts ...Option) *Manager {
	opts = append([]Option{WithAfterFunc(clock.AfterFunc)}, opts...)
	return NewManager(Config{URL: url, PingPeriod: time.Minute}, opts...)
}

func TestManager_ConnectIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	clock := &coretest.Clock{}
	m := newTestManager(ts.wsURL(), clock)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background(), "u1", "secret"))
	ts.accept(t)
	require.NoError(t, m.Connect(context.Background(), "u1", "secret"))

	assert.Equal(t, StatusOpen, m.Status())
	assert.Equal(t, int32(1), ts.upgrades.Load())
	assert.Contains(t, ts.lastURL.Load().(string), "user_id=u1")
	assert.Contains(t, ts.lastURL.Load().(string), "token=secret")
}

func TestManager_SendRequiresOpenSocket(t *testing.T) {
	m := NewManager(Config{URL: "ws://127.0.0.1:1/ws"})

	err := m.Send(domain.SignalMessage{Type: domain.SignalCallResponse, SenderID: "1", ReceiverID: "2", Response: domain.ResponseBusy})
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestManager_SendAndReceive(t *testing.T) {
	ts := newTestServer(t)
	clock := &coretest.Clock{}
	m := newTestManager(ts.wsURL(), clock)
	defer m.Close()

	got := make(chan domain.SignalMessage, 4)
	m.OnMessage(func(msg domain.SignalMessage) { got <- msg })

	require.NoError(t, m.Connect(context.Background(), "u1", "secret"))
	srv := ts.accept(t)

	out := domain.SignalMessage{Type: domain.SignalCallResponse, SenderID: "u1", ReceiverID: "u2", Response: domain.ResponseAccept}
	require.NoError(t, m.Send(out))
	_, frame, err := srv.ReadMessage()
	require.NoError(t, err)
	decoded, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, out, decoded)

	require.NoError(t, srv.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	require.NoError(t, srv.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat-message","sender_id":"u2","id":"m1","content":"yo"}`)))

	select {
	case msg := <-got:
		assert.Equal(t, domain.SignalChatMessage, msg.Type)
		assert.Equal(t, domain.MessageID("m1"), msg.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message dispatched")
	}
	assert.Empty(t, got)
}

func TestManager_FatalCloseDoesNotRetry(t *testing.T) {
	ts := newTestServer(t)
	clock := &coretest.Clock{}
	m := newTestManager(ts.wsURL(), clock)
	defer m.Close()

	expired := make(chan error, 1)
	m.OnAuthExpired(func(err error) { expired <- err })

	require.NoError(t, m.Connect(context.Background(), "u1", "stale"))
	srv := ts.accept(t)
	require.NoError(t, srv.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(4001, "token expired")))

	select {
	case err := <-expired:
		assert.ErrorIs(t, err, domain.ErrAuthExpired)
	case <-time.After(2 * time.Second):
		t.Fatal("auth expiry not surfaced")
	}
	assert.Equal(t, StatusDisconnected, m.Status())
	assert.Empty(t, clock.Delays())
}

func TestManager_CleanServerCloseIsTerminal(t *testing.T) {
	ts := newTestServer(t)
	clock := &coretest.Clock{}
	m := newTestManager(ts.wsURL(), clock)
	defer m.Close()

	closed := make(chan error, 1)
	m.OnClosed(func(err error) { closed <- err })
	var expired atomic.Int32
	m.OnAuthExpired(func(error) { expired.Add(1) })

	require.NoError(t, m.Connect(context.Background(), "u1", "secret"))
	srv := ts.accept(t)
	require.NoError(t, srv.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down")))

	select {
	case err := <-closed:
		assert.ErrorIs(t, err, domain.ErrSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("clean close not surfaced")
	}
	assert.Equal(t, StatusDisconnected, m.Status())
	assert.Empty(t, clock.Delays())
	assert.Zero(t, expired.Load())
}

func TestManager_OpenPrecedesDrop(t *testing.T) {
	ts := newTestServer(t)
	clock := &coretest.Clock{}
	m := newTestManager(ts.wsURL(), clock)
	defer m.Close()

	var statuses statusLog
	m.OnStatus(statuses.record)

	require.NoError(t, m.Connect(context.Background(), "u1", "secret"))
	srv := ts.accept(t)
	require.NoError(t, srv.NetConn().Close())

	require.Eventually(t, func() bool { return statuses.last() == StatusDisconnected }, 2*time.Second, 10*time.Millisecond)
	statuses.mu.Lock()
	defer statuses.mu.Unlock()
	assert.Equal(t, []Status{StatusConnecting, StatusOpen, StatusDisconnected}, statuses.all)
}

func TestManager_AbnormalCloseSchedulesRetry(t *testing.T) {
	ts := newTestServer(t)
	clock := &coretest.Clock{}
	m := newTestManager(ts.wsURL(), clock)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background(), "u1", "secret"))
	srv := ts.accept(t)
	// Dropping TCP without a close frame surfaces as 1006 on the client.
	require.NoError(t, srv.NetConn().Close())

	require.Eventually(t, func() bool { return len(clock.Delays()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []time.Duration{3 * time.Second}, clock.Delays())
	assert.Equal(t, StatusDisconnected, m.Status())

	require.True(t, clock.FireLast())
	ts.accept(t)
	assert.Equal(t, StatusOpen, m.Status())
	assert.Equal(t, 0, m.Attempt())
}

func TestManager_BackoffSequenceAndReset(t *testing.T) {
	ts := newTestServer(t)
	clock := &coretest.Clock{}

	var failing atomic.Bool
	failing.Store(true)
	netDialer := &websocket.Dialer{HandshakeTimeout: time.Second}
	dialer := dialerFunc(func(ctx context.Context, u string, h http.Header) (*websocket.Conn, *http.Response, error) {
		if failing.Load() {
			return nil, nil, errors.New("connection refused")
		}
		return netDialer.DialContext(ctx, u, h)
	})
	m := newTestManager(ts.wsURL(), clock, WithDialer(dialer))
	defer m.Close()

	require.Error(t, m.Connect(context.Background(), "u1", "secret"))
	for i := 0; i < 5; i++ {
		require.True(t, clock.FireLast())
	}
	want := []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second, 24 * time.Second, 30 * time.Second, 30 * time.Second}
	assert.Equal(t, want, clock.Delays())

	failing.Store(false)
	require.True(t, clock.FireLast())
	srv := ts.accept(t)
	require.Equal(t, StatusOpen, m.Status())

	require.NoError(t, srv.NetConn().Close())
	require.Eventually(t, func() bool { return len(clock.Delays()) == len(want)+1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3*time.Second, clock.Delays()[len(want)])
}

func TestManager_RejectedHandshakeIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()
	clock := &coretest.Clock{}
	m := newTestManager("ws"+strings.TrimPrefix(srv.URL, "http"), clock)

	var expired atomic.Int32
	m.OnAuthExpired(func(error) { expired.Add(1) })

	err := m.Connect(context.Background(), "u1", "bad")
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.Equal(t, int32(1), expired.Load())
	assert.Empty(t, clock.Delays())
}

func TestManager_CloseSuppressesReconnect(t *testing.T) {
	ts := newTestServer(t)
	clock := &coretest.Clock{}
	m := newTestManager(ts.wsURL(), clock)
	statuses := &statusLog{}
	m.OnStatus(statuses.record)

	require.NoError(t, m.Connect(context.Background(), "u1", "secret"))
	srv := ts.accept(t)

	m.Close()
	_, _, err := srv.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, clock.Delays())
	assert.Equal(t, StatusDisconnected, statuses.last())
	assert.ErrorIs(t, m.Send(domain.SignalMessage{Type: domain.SignalChatMessage, SenderID: "u1"}), domain.ErrNotConnected)
}

func TestManager_CloseCancelsPendingRetry(t *testing.T) {
	clock := &coretest.Clock{}
	dialer := dialerFunc(func(context.Context, string, http.Header) (*websocket.Conn, *http.Response, error) {
		return nil, nil, errors.New("network unreachable")
	})
	m := newTestManager("ws://example.invalid/ws", clock, WithDialer(dialer))

	require.Error(t, m.Connect(context.Background(), "u1", "secret"))
	require.Len(t, clock.Pending(), 1)

	m.Close()
	assert.Empty(t, clock.Pending())
}

func TestClassifyClose(t *testing.T) {
	assert.Equal(t, CloseClean, ClassifyClose(1000))
	assert.Equal(t, CloseFatal, ClassifyClose(1008))
	for code := 4000; code <= 4003; code++ {
		assert.Equal(t, CloseFatal, ClassifyClose(code))
	}
	assert.Equal(t, CloseTransient, ClassifyClose(1001))
	assert.Equal(t, CloseTransient, ClassifyClose(1006))
	assert.Equal(t, CloseTransient, ClassifyClose(1011))
	assert.Equal(t, CloseTransient, ClassifyClose(4004))
}

func TestBackoff(t *testing.T) {
	base, max := 3*time.Second, 30*time.Second
	assert.Equal(t, 3*time.Second, Backoff(base, max, 0))
	assert.Equal(t, 24*time.Second, Backoff(base, max, 3))
	assert.Equal(t, 30*time.Second, Backoff(base, max, 4))
	assert.Equal(t, 30*time.Second, Backoff(base, max, 64))
}
