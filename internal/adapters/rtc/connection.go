package rtc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Connection adapts a pion PeerConnection to core.PeerConnection.
// Callbacks registered on it stop firing once Close has been called.
type Connection struct {
	pc     *webrtc.PeerConnection
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
	closed atomic.Bool

	mu         sync.Mutex
	onICE      func(*webrtc.ICECandidateInit)
	onState    func(webrtc.PeerConnectionState)
	onICEState func(webrtc.ICEConnectionState)
	onTrack    func(core.RemoteTrack)
	remote     []*remoteTrack
}

func newConnection(ctx context.Context, pc *webrtc.PeerConnection, logger zerolog.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Connection{pc: pc, ctx: ctx, cancel: cancel, logger: logger}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
		c.mu.Lock()
		fn := c.onICEState
		c.mu.Unlock()
		if fn != nil && !c.closed.Load() {
			fn(s)
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		c.mu.Lock()
		fn := c.onState
		c.mu.Unlock()
		if fn != nil && !c.closed.Load() {
			fn(s)
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn == nil || c.closed.Load() {
			return
		}
		if cand == nil {
			fn(nil)
			return
		}
		init := cand.ToJSON()
		fn(&init)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		rt := newRemoteTrack(track)
		c.mu.Lock()
		c.remote = append(c.remote, rt)
		fn := c.onTrack
		c.mu.Unlock()

		go rt.loop(c.ctx, c.logger)
		if fn != nil && !c.closed.Load() {
			fn(rt)
		}
	})
	return c
}

func (c *Connection) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *Connection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *Connection) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	c.mu.Lock()
	c.onICEState = fn
	c.mu.Unlock()
}

// OnTrack sets application-level callback for remote tracks.
func (c *Connection) OnTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

// AddLocalTracks attaches local tracks and drains RTCP for each sender so
// the interceptors keep running.
func (c *Connection) AddLocalTracks(tracks []webrtc.TrackLocal) error {
	for _, t := range tracks {
		sender, err := c.pc.AddTrack(t)
		if err != nil {
			return fmt.Errorf("add track %s: %w", t.ID(), err)
		}
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}
	return nil
}

func (c *Connection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *Connection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *Connection) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(d)
}

func (c *Connection) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(d)
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

// Stats sums what the remote track sinks have received so far.
func (c *Connection) Stats() TrackStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total TrackStats
	for _, rt := range c.remote {
		s := rt.Stats()
		total.Packets += s.Packets
		total.Bytes += s.Bytes
	}
	return total
}

func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	if err := c.pc.Close(); err != nil {
		c.logger.Error().Err(err).Msg("close error")
		return err
	}
	c.logger.Info().Msg("closed")
	return nil
}
