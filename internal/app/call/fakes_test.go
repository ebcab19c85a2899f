package call

import (
	"context"
	"sync"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/pion/webrtc/v4"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []domain.SignalMessage
	down bool
}

func (f *fakeSender) Send(msg domain.SignalMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return domain.ErrNotConnected
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeSender) Sent() []domain.SignalMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SignalMessage(nil), f.sent...)
}

func (f *fakeSender) Last() domain.SignalMessage {
	sent := f.Sent()
	if len(sent) == 0 {
		return domain.SignalMessage{}
	}
	return sent[len(sent)-1]
}

type fakeLocal struct {
	mu      sync.Mutex
	audio   bool
	video   bool
	stopped int
}

func (l *fakeLocal) Tracks() []webrtc.TrackLocal { return nil }

func (l *fakeLocal) SetAudioEnabled(v bool) {
	l.mu.Lock()
	l.audio = v
	l.mu.Unlock()
}

func (l *fakeLocal) SetVideoEnabled(v bool) {
	l.mu.Lock()
	l.video = v
	l.mu.Unlock()
}

func (l *fakeLocal) Stop() {
	l.mu.Lock()
	l.stopped++
	l.mu.Unlock()
}

func (l *fakeLocal) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped > 0
}

type fakeMedia struct {
	mu      sync.Mutex
	err     error
	calls   int
	started chan struct{}
	gate    chan struct{}
	locals  []*fakeLocal
}

func (m *fakeMedia) Acquire(ctx context.Context, kind domain.MediaKind) (core.LocalMedia, error) {
	m.mu.Lock()
	m.calls++
	started, gate, err := m.started, m.gate, m.err
	m.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	l := &fakeLocal{}
	m.mu.Lock()
	m.locals = append(m.locals, l)
	m.mu.Unlock()
	return l, nil
}

func (m *fakeMedia) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *fakeMedia) Last() *fakeLocal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.locals) == 0 {
		return nil
	}
	return m.locals[len(m.locals)-1]
}

type fakePeer struct {
	mu      sync.Mutex
	remote  []webrtc.SessionDescription
	local   []webrtc.SessionDescription
	added   []string
	tracks  int
	closed  bool
	onLocal func()
	onCand  func(*webrtc.ICECandidateInit)
	onConn  func(webrtc.PeerConnectionState)
	onICE   func(webrtc.ICEConnectionState)
	onTrack func(core.RemoteTrack)
}

func (p *fakePeer) AddLocalTracks(tracks []webrtc.TrackLocal) error {
	p.mu.Lock()
	p.tracks++
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"}, nil
}

func (p *fakePeer) SetLocalDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	p.local = append(p.local, d)
	hook := p.onLocal
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (p *fakePeer) SetRemoteDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = append(p.remote, d)
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, c.Candidate)
	return nil
}

func (p *fakePeer) OnICECandidate(f func(*webrtc.ICECandidateInit)) {
	p.mu.Lock()
	p.onCand = f
	p.mu.Unlock()
}

func (p *fakePeer) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	p.onConn = f
	p.mu.Unlock()
}

func (p *fakePeer) OnICEConnectionStateChange(f func(webrtc.ICEConnectionState)) {
	p.mu.Lock()
	p.onICE = f
	p.mu.Unlock()
}

func (p *fakePeer) OnTrack(f func(core.RemoteTrack)) {
	p.mu.Lock()
	p.onTrack = f
	p.mu.Unlock()
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) emitCandidate(c string) {
	p.mu.Lock()
	f := p.onCand
	p.mu.Unlock()
	f(&webrtc.ICECandidateInit{Candidate: c})
}

func (p *fakePeer) emitEndOfCandidates() {
	p.mu.Lock()
	f := p.onCand
	p.mu.Unlock()
	f(nil)
}

func (p *fakePeer) setState(s webrtc.PeerConnectionState) {
	p.mu.Lock()
	f := p.onConn
	p.mu.Unlock()
	f(s)
}

func (p *fakePeer) setICEState(s webrtc.ICEConnectionState) {
	p.mu.Lock()
	f := p.onICE
	p.mu.Unlock()
	f(s)
}

func (p *fakePeer) Remote() []webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.SessionDescription(nil), p.remote...)
}

func (p *fakePeer) Added() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.added...)
}

func (p *fakePeer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakePeers struct {
	mu    sync.Mutex
	peers []*fakePeer
	setup func(*fakePeer)
}

func (f *fakePeers) NewPeer(ctx context.Context) (core.PeerConnection, error) {
	p := &fakePeer{}
	f.mu.Lock()
	if f.setup != nil {
		f.setup(p)
	}
	f.peers = append(f.peers, p)
	f.mu.Unlock()
	return p, nil
}

func (f *fakePeers) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

func (f *fakePeers) Last() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}
