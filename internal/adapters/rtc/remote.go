package rtc

import (
	"context"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type TrackStats struct {
	Packets uint64
	Bytes   uint64
}

// remoteTrack is the handle the call engine sees for an inbound track. Its
// loop drains RTP so the receiver's buffers never back up; playback is left
// to whatever consumes the packets.
type remoteTrack struct {
	src     *webrtc.TrackRemote
	packets atomic.Uint64
	bytes   atomic.Uint64
}

func newRemoteTrack(src *webrtc.TrackRemote) *remoteTrack {
	return &remoteTrack{src: src}
}

func (t *remoteTrack) ID() string                { return t.src.ID() }
func (t *remoteTrack) StreamID() string          { return t.src.StreamID() }
func (t *remoteTrack) Kind() webrtc.RTPCodecType { return t.src.Kind() }

func (t *remoteTrack) Stats() TrackStats {
	return TrackStats{Packets: t.packets.Load(), Bytes: t.bytes.Load()}
}

// loop reads RTP packets from the remote track until ctx is done or the track ends.
func (t *remoteTrack) loop(ctx context.Context, logger zerolog.Logger) {
	logger = logger.With().Str("track_id", t.src.ID()).Logger()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("remote track ctx done")
			return
		default:
		}
		pkt, _, err := t.src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("remote track read stopped")
			return
		}
		t.account(pkt)
	}
}

func (t *remoteTrack) account(pkt *rtp.Packet) {
	t.packets.Add(1)
	t.bytes.Add(uint64(len(pkt.Payload)))
}
