// Package call drives the one-to-one call state machine on top of the shared
// signaling session and a WebRTC peer connection.
package call

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	RingTimeout    time.Duration
	ConnectTimeout time.Duration
	DisposeDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if c.RingTimeout <= 0 {
		c.RingTimeout = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 20 * time.Second
	}
	if c.DisposeDelay <= 0 {
		c.DisposeDelay = 2 * time.Second
	}
	return c
}

type Option func(*Engine)

func WithAfterFunc(f core.AfterFunc) Option {
	return func(e *Engine) { e.afterFunc = f }
}

// Engine owns at most one call session at a time.
//
// The mutex is never held across media acquisition or SDP creation; after each
// such step the engine re-checks that the session it started with is still live.
type Engine struct {
	self      domain.UserID
	signal    core.SignalSender
	media     core.MediaSource
	peers     core.PeerFactory
	cfg       Config
	afterFunc core.AfterFunc
	logger    zerolog.Logger

	mu      sync.Mutex
	session *session
	// release holds resource teardown queued by finishLocked; it runs after
	// the mutex is dropped so pion callbacks can never deadlock against it.
	release []func()

	smu  sync.Mutex
	subs []func(Snapshot, bool)
}

func NewEngine(self domain.UserID, signal core.SignalSender, media core.MediaSource, peers core.PeerFactory, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		self:      self,
		signal:    signal,
		media:     media,
		peers:     peers,
		cfg:       cfg.withDefaults(),
		afterFunc: core.RealAfterFunc,
		logger:    log.With().Str("module", "app.call").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers fn for every session change. ok is false once the
// session has been disposed and no call exists.
func (e *Engine) Subscribe(fn func(snap Snapshot, ok bool)) {
	e.smu.Lock()
	e.subs = append(e.subs, fn)
	e.smu.Unlock()
}

func (e *Engine) Snapshot() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Snapshot{}, false
	}
	return e.session.snapshot(), true
}

func (e *Engine) unlockAndPublish() {
	var (
		snap Snapshot
		ok   bool
	)
	if e.session != nil {
		snap, ok = e.session.snapshot(), true
	}
	release := e.release
	e.release = nil
	e.mu.Unlock()

	for _, fn := range release {
		fn()
	}

	e.smu.Lock()
	subs := slices.Clone(e.subs)
	e.smu.Unlock()
	for _, fn := range subs {
		fn(snap, ok)
	}
}

func (e *Engine) liveLocked(s *session) bool {
	return e.session == s && !s.state.Terminal()
}

// StartCall places an outgoing call. It returns once the offer has been
// transmitted or the attempt has ended.
func (e *Engine) StartCall(ctx context.Context, peer domain.UserID, kind domain.MediaKind) error {
	if peer == "" || peer == e.self {
		return fmt.Errorf("call %q: %w", peer, domain.ErrNoCall)
	}
	if kind != domain.MediaVideo {
		kind = domain.MediaAudio
	}

	e.mu.Lock()
	if cur := e.session; cur != nil && !cur.state.Terminal() {
		e.mu.Unlock()
		return domain.ErrCallInProgress
	}
	s := e.newSessionLocked(domain.CallOutgoing, peer, kind, domain.CallStateCalling)
	s.status = "Calling"
	e.armLocked(s, e.cfg.RingTimeout)
	e.logger.Info().Str("call", s.id).Str("peer", string(peer)).Str("kind", string(kind)).Msg("outgoing call")
	e.unlockAndPublish()

	if err := e.acquire(ctx, s); err != nil {
		return err
	}
	pc, err := e.openPeer(ctx, s)
	if err != nil {
		return err
	}

	offer, err := pc.CreateOffer()
	if err == nil {
		err = pc.SetLocalDescription(offer)
	}
	if err != nil {
		return e.abort(s, fmt.Errorf("%w: offer: %v", domain.ErrPeerConnectionFailed, err), "Call failed")
	}

	e.mu.Lock()
	if !e.liveLocked(s) {
		e.mu.Unlock()
		return domain.ErrCallEnded
	}
	err = e.sendLocked(s, domain.SignalMessage{
		Type:    domain.SignalCallOffer,
		SDP:     offer.SDP,
		IsVideo: kind.HasVideo(),
	})
	if err != nil {
		e.finishLocked(s, fmt.Errorf("send offer: %w", err), "Signaling unavailable")
		e.unlockAndPublish()
		return err
	}
	s.described = true
	e.flushHeldLocked(s)
	e.unlockAndPublish()
	return nil
}

// AcceptCall answers the pending incoming call.
func (e *Engine) AcceptCall(ctx context.Context) error {
	e.mu.Lock()
	s := e.session
	if s == nil || s.state != domain.CallStateIncoming {
		e.mu.Unlock()
		return domain.ErrNoCall
	}
	s.state = domain.CallStateConnecting
	s.status = "Connecting"
	e.armLocked(s, e.cfg.ConnectTimeout)
	e.unlockAndPublish()

	if err := e.acquire(ctx, s); err != nil {
		return err
	}

	e.mu.Lock()
	if !e.liveLocked(s) {
		e.mu.Unlock()
		return domain.ErrCallEnded
	}
	if err := e.transmitLocked(s, domain.SignalMessage{Type: domain.SignalCallResponse, Response: domain.ResponseAccept}); err != nil {
		e.logger.Warn().Err(err).Str("call", s.id).Msg("accept not delivered")
	}
	e.mu.Unlock()

	pc, err := e.openPeer(ctx, s)
	if err != nil {
		return err
	}

	e.mu.Lock()
	offer := s.offer
	e.mu.Unlock()

	err = pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer})
	var answer webrtc.SessionDescription
	if err == nil {
		answer, err = pc.CreateAnswer()
	}
	if err == nil {
		err = pc.SetLocalDescription(answer)
	}
	if err != nil {
		return e.abort(s, fmt.Errorf("%w: answer: %v", domain.ErrPeerConnectionFailed, err), "Call failed")
	}

	e.mu.Lock()
	if !e.liveLocked(s) {
		e.mu.Unlock()
		return domain.ErrCallEnded
	}
	if err := e.transmitLocked(s, domain.SignalMessage{
		Type:    domain.SignalCallAnswer,
		SDP:     answer.SDP,
		IsVideo: s.kind.HasVideo(),
	}); err != nil {
		e.finishLocked(s, fmt.Errorf("send answer: %w", err), "Signaling unavailable")
		e.unlockAndPublish()
		return err
	}
	s.described = true
	e.flushHeldLocked(s)
	e.applyPendingLocked(s)
	e.unlockAndPublish()
	return nil
}

// RejectCall declines the pending incoming call.
func (e *Engine) RejectCall(ctx context.Context) error {
	e.mu.Lock()
	s := e.session
	if s == nil || s.state != domain.CallStateIncoming {
		e.mu.Unlock()
		return domain.ErrNoCall
	}
	e.notifyRejectLocked(s)
	e.finishLocked(s, nil, "Call declined")
	e.unlockAndPublish()
	return nil
}

// EndCall hangs up the current call in any live state.
func (e *Engine) EndCall(ctx context.Context) error {
	e.mu.Lock()
	s := e.session
	if s == nil || s.state.Terminal() {
		e.mu.Unlock()
		return domain.ErrNoCall
	}
	e.notifyRejectLocked(s)
	e.finishLocked(s, nil, "Call ended")
	e.unlockAndPublish()
	return nil
}

func (e *Engine) SetMicEnabled(enabled bool) error {
	return e.toggle(func(s *session) {
		s.mic = enabled
		if s.local != nil {
			s.local.SetAudioEnabled(enabled)
		}
	})
}

func (e *Engine) SetVideoEnabled(enabled bool) error {
	return e.toggle(func(s *session) {
		s.video = enabled && s.kind.HasVideo()
		if s.local != nil {
			s.local.SetVideoEnabled(s.video)
		}
	})
}

func (e *Engine) toggle(apply func(*session)) error {
	e.mu.Lock()
	s := e.session
	if s == nil || s.state.Terminal() {
		e.mu.Unlock()
		return domain.ErrNoCall
	}
	apply(s)
	e.unlockAndPublish()
	return nil
}

// HandleSessionLost ends any live call when the signaling session is gone for good.
func (e *Engine) HandleSessionLost(err error) {
	e.mu.Lock()
	if s := e.session; s != nil && !s.state.Terminal() {
		e.finishLocked(s, err, "Connection lost")
	}
	e.unlockAndPublish()
}

// HandleReconnected flushes signaling that was queued while the socket was down.
func (e *Engine) HandleReconnected(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.session; s != nil && !s.state.Terminal() {
		e.flushOutboxLocked(s)
	}
}

// Close ends any call synchronously; used on application shutdown.
func (e *Engine) Close() {
	e.mu.Lock()
	s := e.session
	if s != nil && !s.state.Terminal() {
		e.notifyRejectLocked(s)
		e.finishLocked(s, nil, "Call ended")
	}
	if s != nil {
		s.stopTimer()
	}
	e.unlockAndPublish()
}

// HandleSignal consumes one call-signaling message from the session.
func (e *Engine) HandleSignal(ctx context.Context, msg domain.SignalMessage) {
	if msg.ReceiverID != "" && msg.ReceiverID != e.self {
		e.logger.Debug().Str("type", string(msg.Type)).Str("receiver", string(msg.ReceiverID)).Msg("signal for another user dropped")
		return
	}
	switch msg.Type {
	case domain.SignalCallOffer:
		e.handleOffer(ctx, msg)
	case domain.SignalCallAnswer:
		e.handleAnswer(msg)
	case domain.SignalICECandidate:
		e.handleCandidate(msg)
	case domain.SignalCallResponse:
		e.handleResponse(msg)
	default:
		e.logger.Debug().Str("type", string(msg.Type)).Msg("not a call signal")
	}
}

func (e *Engine) handleOffer(ctx context.Context, msg domain.SignalMessage) {
	e.mu.Lock()
	s := e.session
	switch action := classifyOffer(s, msg.SenderID); action {
	case offerBusy:
		e.logger.Info().Str("from", string(msg.SenderID)).Msg("offer while busy")
		busy := domain.SignalMessage{
			Type:       domain.SignalCallResponse,
			SenderID:   e.self,
			ReceiverID: msg.SenderID,
			Response:   domain.ResponseBusy,
		}
		if err := e.signal.Send(busy); err != nil {
			e.logger.Warn().Err(err).Msg("busy not delivered")
		}
		e.mu.Unlock()
	case offerRefresh:
		s.offer = msg.SDP
		e.mu.Unlock()
	case offerRenegotiate:
		pc := s.pc
		e.mu.Unlock()
		e.renegotiate(s, pc, msg.SDP)
	default:
		kind := domain.MediaAudio
		if msg.IsVideo {
			kind = domain.MediaVideo
		}
		ns := e.newSessionLocked(domain.CallIncoming, msg.SenderID, kind, domain.CallStateIncoming)
		ns.offer = msg.SDP
		ns.status = "Incoming call"
		e.armLocked(ns, e.cfg.RingTimeout)
		e.logger.Info().Str("call", ns.id).Str("from", string(msg.SenderID)).Str("kind", string(kind)).Msg("incoming call")
		e.unlockAndPublish()
	}
}

func (e *Engine) renegotiate(s *session, pc core.PeerConnection, sdp string) {
	err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
	var answer webrtc.SessionDescription
	if err == nil {
		answer, err = pc.CreateAnswer()
	}
	if err == nil {
		err = pc.SetLocalDescription(answer)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.liveLocked(s) {
		return
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("call", s.id).Msg("renegotiation failed")
		return
	}
	if err := e.transmitLocked(s, domain.SignalMessage{Type: domain.SignalCallAnswer, SDP: answer.SDP, IsVideo: s.kind.HasVideo()}); err != nil {
		e.logger.Warn().Err(err).Str("call", s.id).Msg("renegotiation answer not delivered")
	}
}

func (e *Engine) handleAnswer(msg domain.SignalMessage) {
	e.mu.Lock()
	s := e.session
	if s == nil || !e.liveLocked(s) || s.direction != domain.CallOutgoing || msg.SenderID != s.peer {
		e.mu.Unlock()
		return
	}
	if s.pc == nil || s.remoteSet {
		e.mu.Unlock()
		e.logger.Debug().Str("call", s.id).Msg("unexpected answer ignored")
		return
	}
	if s.state == domain.CallStateCalling {
		s.state = domain.CallStateConnecting
		s.status = "Connecting"
		e.armLocked(s, e.cfg.ConnectTimeout)
	}
	pc := s.pc
	e.mu.Unlock()

	err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP})

	e.mu.Lock()
	if !e.liveLocked(s) {
		e.mu.Unlock()
		return
	}
	if err != nil {
		e.notifyRejectLocked(s)
		e.finishLocked(s, fmt.Errorf("%w: remote answer: %v", domain.ErrPeerConnectionFailed, err), "Call failed")
	} else {
		e.applyPendingLocked(s)
	}
	e.unlockAndPublish()
}

func (e *Engine) handleCandidate(msg domain.SignalMessage) {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(msg.Candidate, &init); err != nil {
		e.logger.Warn().Err(err).Msg("malformed candidate dropped")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	if s == nil || !e.liveLocked(s) || msg.SenderID != s.peer {
		e.logger.Debug().Str("from", string(msg.SenderID)).Msg("candidate without matching call dropped")
		return
	}
	// an empty candidate string marks the end of the remote gathering
	if init.Candidate == "" {
		return
	}
	if !s.remoteSet || s.pc == nil {
		s.pending = append(s.pending, init)
		return
	}
	if err := s.pc.AddICECandidate(init); err != nil {
		e.logger.Warn().Err(err).Str("call", s.id).Msg("add candidate")
	}
}

func (e *Engine) handleResponse(msg domain.SignalMessage) {
	e.mu.Lock()
	s := e.session
	if s == nil || !e.liveLocked(s) || msg.SenderID != s.peer {
		e.mu.Unlock()
		return
	}
	switch msg.Response {
	case domain.ResponseAccept:
		if s.direction != domain.CallOutgoing || s.state != domain.CallStateCalling {
			e.mu.Unlock()
			return
		}
		s.state = domain.CallStateConnecting
		s.status = "Connecting"
		e.armLocked(s, e.cfg.ConnectTimeout)
	case domain.ResponseReject:
		status := "Call ended"
		if s.state == domain.CallStateCalling {
			status = "Call declined"
		}
		e.finishLocked(s, domain.ErrRemoteRejected, status)
	case domain.ResponseBusy:
		if s.direction != domain.CallOutgoing || s.state != domain.CallStateCalling {
			e.mu.Unlock()
			return
		}
		e.finishLocked(s, domain.ErrRemoteBusy, "User is busy")
	}
	e.unlockAndPublish()
}

func (e *Engine) onLocalCandidate(s *session, c *webrtc.ICECandidateInit) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		e.logger.Warn().Err(err).Msg("encode local candidate")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.liveLocked(s) {
		return
	}
	if err := e.transmitLocked(s, domain.SignalMessage{Type: domain.SignalICECandidate, Candidate: raw}); err != nil {
		e.logger.Warn().Err(err).Str("call", s.id).Msg("candidate not delivered")
	}
}

func (e *Engine) onConnectionState(s *session, state webrtc.PeerConnectionState) {
	e.mu.Lock()
	if !e.liveLocked(s) {
		e.mu.Unlock()
		return
	}
	e.logger.Debug().Str("call", s.id).Str("state", state.String()).Msg("peer connection state")
	switch state {
	case webrtc.PeerConnectionStateConnected:
		if s.state == domain.CallStateConnected {
			e.mu.Unlock()
			return
		}
		s.state = domain.CallStateConnected
		s.status = "Connected"
		s.stopTimer()
	case webrtc.PeerConnectionStateFailed:
		e.finishLocked(s, domain.ErrPeerConnectionFailed, "Connection failed")
	case webrtc.PeerConnectionStateClosed:
		e.finishLocked(s, domain.ErrCallEnded, "Call ended")
	default:
		e.mu.Unlock()
		return
	}
	e.unlockAndPublish()
}

func (e *Engine) onICEState(s *session, state webrtc.ICEConnectionState) {
	if state != webrtc.ICEConnectionStateFailed {
		return
	}
	e.mu.Lock()
	if e.liveLocked(s) {
		e.finishLocked(s, domain.ErrPeerConnectionFailed, "Connection failed")
	}
	e.unlockAndPublish()
}

func (e *Engine) onRemoteTrack(s *session, t core.RemoteTrack) {
	e.mu.Lock()
	if !e.liveLocked(s) {
		e.mu.Unlock()
		return
	}
	s.remote = append(s.remote, t)
	e.logger.Info().Str("call", s.id).Str("track", t.ID()).Str("kind", t.Kind().String()).Msg("remote track")
	e.unlockAndPublish()
}

func (e *Engine) newSessionLocked(dir domain.CallDirection, peer domain.UserID, kind domain.MediaKind, state domain.CallState) *session {
	if old := e.session; old != nil {
		old.stopTimer()
	}
	s := &session{
		id:        uuid.NewString(),
		direction: dir,
		peer:      peer,
		kind:      kind,
		state:     state,
		mic:       true,
		video:     kind.HasVideo(),
	}
	e.session = s
	return s
}

func (e *Engine) acquire(ctx context.Context, s *session) error {
	local, err := e.media.Acquire(ctx, s.kind)

	e.mu.Lock()
	if err != nil {
		if !e.liveLocked(s) {
			e.mu.Unlock()
			return domain.ErrCallEnded
		}
		err = fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
		e.notifyRejectLocked(s)
		e.finishLocked(s, err, "Microphone or camera unavailable")
		e.unlockAndPublish()
		return err
	}
	if !e.liveLocked(s) {
		e.mu.Unlock()
		local.Stop()
		return domain.ErrCallEnded
	}
	local.SetAudioEnabled(s.mic)
	local.SetVideoEnabled(s.video)
	s.local = local
	e.unlockAndPublish()
	return nil
}

func (e *Engine) openPeer(ctx context.Context, s *session) (core.PeerConnection, error) {
	pc, err := e.peers.NewPeer(ctx)
	if err != nil {
		return nil, e.abort(s, fmt.Errorf("%w: %v", domain.ErrPeerConnectionFailed, err), "Call failed")
	}

	e.mu.Lock()
	if !e.liveLocked(s) {
		e.mu.Unlock()
		if err := pc.Close(); err != nil {
			e.logger.Debug().Err(err).Msg("close orphan peer")
		}
		return nil, domain.ErrCallEnded
	}
	s.pc = pc
	local := s.local
	pc.OnICECandidate(func(c *webrtc.ICECandidateInit) { e.onLocalCandidate(s, c) })
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) { e.onConnectionState(s, st) })
	pc.OnICEConnectionStateChange(func(st webrtc.ICEConnectionState) { e.onICEState(s, st) })
	pc.OnTrack(func(t core.RemoteTrack) { e.onRemoteTrack(s, t) })
	e.mu.Unlock()

	if err := pc.AddLocalTracks(local.Tracks()); err != nil {
		return nil, e.abort(s, fmt.Errorf("%w: tracks: %v", domain.ErrPeerConnectionFailed, err), "Call failed")
	}
	return pc, nil
}

// abort ends s after a local failure, unless something else ended it first.
func (e *Engine) abort(s *session, err error, status string) error {
	e.mu.Lock()
	if !e.liveLocked(s) {
		e.mu.Unlock()
		return domain.ErrCallEnded
	}
	e.logger.Warn().Err(err).Str("call", s.id).Msg("call aborted")
	e.notifyRejectLocked(s)
	e.finishLocked(s, err, status)
	e.unlockAndPublish()
	return err
}

// finishLocked moves s to ended. Its peer connection and local media are
// released by unlockAndPublish before the terminal snapshot goes out.
func (e *Engine) finishLocked(s *session, reason error, status string) {
	if s.state.Terminal() {
		return
	}
	s.stopTimer()
	if pc := s.pc; pc != nil {
		id := s.id
		e.release = append(e.release, func() {
			if err := pc.Close(); err != nil {
				e.logger.Debug().Err(err).Str("call", id).Msg("close peer connection")
			}
		})
		s.pc = nil
	}
	if local := s.local; local != nil {
		e.release = append(e.release, local.Stop)
		s.local = nil
	}
	s.remote = nil
	s.pending = nil
	s.held = nil
	s.outbox = nil
	s.state = domain.CallStateEnded
	s.status = status
	s.err = reason
	e.logger.Info().Err(reason).Str("call", s.id).Str("status", status).Msg("call ended")

	s.timer = e.afterFunc(e.cfg.DisposeDelay, func() {
		e.mu.Lock()
		if e.session != s {
			e.mu.Unlock()
			return
		}
		e.session = nil
		e.unlockAndPublish()
	})
}

func (e *Engine) armLocked(s *session, d time.Duration) {
	s.stopTimer()
	s.timer = e.afterFunc(d, func() {
		e.mu.Lock()
		if !e.liveLocked(s) {
			e.mu.Unlock()
			return
		}
		e.notifyRejectLocked(s)
		e.finishLocked(s, domain.ErrCallTimeout, "No answer")
		e.unlockAndPublish()
	})
}

func (e *Engine) notifyRejectLocked(s *session) {
	if !s.peerAware() {
		return
	}
	if err := e.transmitLocked(s, domain.SignalMessage{Type: domain.SignalCallResponse, Response: domain.ResponseReject}); err != nil {
		e.logger.Debug().Err(err).Str("call", s.id).Msg("reject not delivered")
	}
}

// sendLocked addresses msg to the peer and sends it immediately.
func (e *Engine) sendLocked(s *session, msg domain.SignalMessage) error {
	msg.SenderID = e.self
	msg.ReceiverID = s.peer
	return e.signal.Send(msg)
}

// transmitLocked sends msg to the peer, holding candidates until our
// description is out and queueing anything that hits a dropped socket.
func (e *Engine) transmitLocked(s *session, msg domain.SignalMessage) error {
	msg.SenderID = e.self
	msg.ReceiverID = s.peer
	if msg.Type == domain.SignalICECandidate && !s.described {
		s.held = append(s.held, msg)
		return nil
	}
	if len(s.outbox) > 0 {
		s.outbox = append(s.outbox, msg)
		e.flushOutboxLocked(s)
		return nil
	}
	err := e.signal.Send(msg)
	if errors.Is(err, domain.ErrNotConnected) {
		s.outbox = append(s.outbox, msg)
		return nil
	}
	return err
}

func (e *Engine) flushHeldLocked(s *session) {
	held := s.held
	s.held = nil
	for _, msg := range held {
		if err := e.transmitLocked(s, msg); err != nil {
			e.logger.Warn().Err(err).Str("call", s.id).Msg("held candidate not delivered")
		}
	}
}

func (e *Engine) flushOutboxLocked(s *session) {
	for len(s.outbox) > 0 {
		err := e.signal.Send(s.outbox[0])
		if errors.Is(err, domain.ErrNotConnected) {
			return
		}
		if err != nil {
			e.logger.Warn().Err(err).Str("call", s.id).Str("type", string(s.outbox[0].Type)).Msg("queued signal dropped")
		}
		s.outbox = s.outbox[1:]
	}
	s.outbox = nil
}

// applyPendingLocked marks the remote description as set and applies queued
// remote candidates in arrival order.
func (e *Engine) applyPendingLocked(s *session) {
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			e.logger.Warn().Err(err).Str("call", s.id).Msg("add queued candidate")
		}
	}
}
