// Package signal owns the client's signaling session: one duplex websocket per
// identity, its wire codec, and the reconnect policy around it.
package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

type Status = core.SessionStatus

const (
	StatusDisconnected = core.SessionDisconnected
	StatusConnecting   = core.SessionConnecting
	StatusOpen         = core.SessionOpen
)

type Config struct {
	URL        string
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
	ReadLimit  int64
	SendBuffer int
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 3 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = 54 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 5 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	return c
}

// Dialer is satisfied by *websocket.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type Option func(*Manager)

func WithDialer(d Dialer) Option { return func(m *Manager) { m.dialer = d } }

func WithAfterFunc(f core.AfterFunc) Option { return func(m *Manager) { m.afterFunc = f } }

// Manager is the Session: it owns the one outstanding socket of an identity and is
// the only writer on it.
type Manager struct {
	cfg       Config
	dialer    Dialer
	afterFunc core.AfterFunc
	logger    zerolog.Logger

	mu         sync.Mutex
	status     Status
	identity   domain.UserID
	credential string
	attempt    int
	retry      core.Timer
	closing    bool
	gen        uint64
	sock       *socket

	hmu       sync.RWMutex
	onMessage []func(domain.SignalMessage)
	onStatus  []func(Status)
	onAuth    []func(error)
	onClosed  []func(error)
}

func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg.withDefaults(),
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		afterFunc: core.RealAfterFunc,
		logger:    log.With().Str("module", "signal").Logger(),
		status:    StatusDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnMessage registers a dispatch callback. Callbacks run on the read pump in arrival order.
func (m *Manager) OnMessage(fn func(domain.SignalMessage)) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.onMessage = append(m.onMessage, fn)
}

func (m *Manager) OnStatus(fn func(Status)) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.onStatus = append(m.onStatus, fn)
}

// OnAuthExpired is called once per fatal close or rejected handshake.
func (m *Manager) OnAuthExpired(fn func(error)) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.onAuth = append(m.onAuth, fn)
}

// OnClosed is called when the server ends the session with a normal close.
func (m *Manager) OnClosed(fn func(error)) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.onClosed = append(m.onClosed, fn)
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Attempt returns the consecutive transient failure count used for backoff.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Connect establishes the duplex channel. It is a no-op while a connection is
// open or an attempt is in flight.
func (m *Manager) Connect(ctx context.Context, identity domain.UserID, credential string) error {
	m.mu.Lock()
	if status := m.status; status != StatusDisconnected {
		m.mu.Unlock()
		m.logger.Debug().Str("status", string(status)).Msg("connect ignored")
		return nil
	}
	m.identity = identity
	m.credential = credential
	m.closing = false
	m.stopRetryLocked()
	gen := m.beginAttemptLocked()
	m.mu.Unlock()

	m.emitStatus(StatusConnecting)
	return m.dial(ctx, gen)
}

// Send transmits msg only while the socket is open.
func (m *Manager) Send(msg domain.SignalMessage) error {
	m.mu.Lock()
	sock, status := m.sock, m.status
	m.mu.Unlock()
	if status != StatusOpen || sock == nil {
		return domain.ErrNotConnected
	}
	frame, err := Encode(msg)
	if err != nil {
		return err
	}
	return sock.trySend(frame)
}

// Close shuts the session down cleanly and suppresses any reconnect.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closing = true
	m.stopRetryLocked()
	sock := m.sock
	m.sock = nil
	m.gen++
	prev := m.status
	m.status = StatusDisconnected
	m.mu.Unlock()

	if sock != nil {
		sock.shutdown(websocket.CloseNormalClosure, "bye", m.cfg.WriteWait)
	}
	if prev != StatusDisconnected {
		m.emitStatus(StatusDisconnected)
	}
	m.logger.Info().Msg("session closed")
}

func (m *Manager) endpoint() (string, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse signaling url: %w", err)
	}
	q := u.Query()
	q.Set("user_id", string(m.identity))
	q.Set("token", m.credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// beginAttemptLocked supersedes any previous socket and returns the new generation.
func (m *Manager) beginAttemptLocked() uint64 {
	if old := m.sock; old != nil {
		m.sock = nil
		old.close()
	}
	m.gen++
	m.status = StatusConnecting
	return m.gen
}

func (m *Manager) dial(ctx context.Context, gen uint64) error {
	m.mu.Lock()
	target, err := m.endpoint()
	m.mu.Unlock()
	if err != nil {
		m.mu.Lock()
		m.status = StatusDisconnected
		m.mu.Unlock()
		m.emitStatus(StatusDisconnected)
		return err
	}

	conn, resp, err := m.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	if gen != m.gen || m.closing {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if err != nil {
		m.status = StatusDisconnected
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			m.mu.Unlock()
			m.logger.Warn().Int("http_status", resp.StatusCode).Msg("handshake rejected")
			m.emitStatus(StatusDisconnected)
			m.emitAuth(domain.ErrAuthExpired)
			return fmt.Errorf("dial signaling: %w", domain.ErrAuthExpired)
		}
		delay := m.scheduleRetryLocked()
		m.mu.Unlock()
		m.logger.Warn().Err(err).Dur("retry_in", delay).Msg("dial failed")
		m.emitStatus(StatusDisconnected)
		return fmt.Errorf("dial signaling: %w", err)
	}

	sock := newSocket(gen, conn, m.cfg.SendBuffer)
	m.sock = sock
	m.status = StatusOpen
	m.attempt = 0
	m.stopRetryLocked()
	m.mu.Unlock()

	m.logger.Info().Str("user", string(m.identity)).Uint64("gen", gen).Msg("session open")
	// open must reach listeners before the read pump can report a drop.
	m.emitStatus(StatusOpen)
	go m.writePump(sock)
	go m.readPump(sock)
	return nil
}

func (m *Manager) scheduleRetryLocked() time.Duration {
	delay := Backoff(m.cfg.BaseDelay, m.cfg.MaxDelay, m.attempt)
	m.attempt++
	m.stopRetryLocked()
	m.retry = m.afterFunc(delay, m.reconnect)
	return delay
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) reconnect() {
	m.mu.Lock()
	if m.closing || m.status != StatusDisconnected {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	gen := m.beginAttemptLocked()
	m.mu.Unlock()

	m.emitStatus(StatusConnecting)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := m.dial(ctx, gen); err != nil {
		m.logger.Debug().Err(err).Msg("reconnect attempt failed")
	}
}

// handleDrop runs when a socket's read pump exits.
func (m *Manager) handleDrop(sock *socket, err error) {
	code := closeCode(err)

	m.mu.Lock()
	if m.sock != sock {
		m.mu.Unlock()
		sock.close()
		return
	}
	m.sock = nil
	sock.close()
	m.status = StatusDisconnected
	if m.closing {
		m.mu.Unlock()
		m.emitStatus(StatusDisconnected)
		return
	}

	class := ClassifyClose(code)
	var delay time.Duration
	if class == CloseTransient {
		delay = m.scheduleRetryLocked()
	}
	m.mu.Unlock()

	m.logger.Info().Int("code", code).Str("class", class.String()).Dur("retry_in", delay).Msg("session dropped")
	m.emitStatus(StatusDisconnected)
	switch class {
	case CloseFatal:
		m.emitAuth(domain.ErrAuthExpired)
	case CloseClean:
		m.emitClosed(domain.ErrSessionClosed)
	}
}

func (m *Manager) current(sock *socket) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sock == sock
}

func (m *Manager) dispatch(sock *socket, msg domain.SignalMessage) {
	if !m.current(sock) {
		return
	}
	m.hmu.RLock()
	handlers := m.onMessage
	m.hmu.RUnlock()
	for _, fn := range handlers {
		fn(msg)
	}
}

func (m *Manager) emitStatus(s Status) {
	m.hmu.RLock()
	handlers := m.onStatus
	m.hmu.RUnlock()
	for _, fn := range handlers {
		fn(s)
	}
}

func (m *Manager) emitAuth(err error) {
	m.hmu.RLock()
	handlers := m.onAuth
	m.hmu.RUnlock()
	for _, fn := range handlers {
		fn(err)
	}
}

func (m *Manager) emitClosed(err error) {
	m.hmu.RLock()
	handlers := m.onClosed
	m.hmu.RUnlock()
	for _, fn := range handlers {
		fn(err)
	}
}

type socket struct {
	gen  uint64
	conn *websocket.Conn
	send chan core.Frame
	done chan struct{}
	once sync.Once
}

func newSocket(gen uint64, conn *websocket.Conn, buf int) *socket {
	return &socket{
		gen:  gen,
		conn: conn,
		send: make(chan core.Frame, buf),
		done: make(chan struct{}),
	}
}

func (s *socket) trySend(f core.Frame) error {
	select {
	case <-s.done:
		return domain.ErrNotConnected
	default:
	}
	select {
	case s.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (s *socket) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// shutdown sends a close frame before tearing the socket down.
func (s *socket) shutdown(code int, text string, wait time.Duration) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait))
	s.close()
}
