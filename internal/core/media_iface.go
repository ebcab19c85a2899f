package core

import (
	"context"

	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/pion/webrtc/v4"
)

// PeerConnection is the subset of a WebRTC peer connection the call engine drives.
type PeerConnection interface {
	// AddLocalTracks attaches local tracks before the first offer/answer.
	AddLocalTracks(tracks []webrtc.TrackLocal) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate receives gathered local candidates; nil marks end-of-candidates.
	OnICECandidate(func(*webrtc.ICECandidateInit))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	OnICEConnectionStateChange(func(webrtc.ICEConnectionState))
	// OnTrack is invoked when a new remote media track arrives.
	OnTrack(func(RemoteTrack))
	// Close should stop all underlying media resources. Callbacks never fire after Close.
	Close() error
}

type PeerFactory interface {
	NewPeer(ctx context.Context) (PeerConnection, error)
}

// RemoteTrack is the remote media handle exposed to the UI.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
}

// LocalMedia is an acquired set of capture tracks.
type LocalMedia interface {
	Tracks() []webrtc.TrackLocal
	SetAudioEnabled(bool)
	SetVideoEnabled(bool)
	// Stop releases the capture devices. Safe to call more than once.
	Stop()
}

// MediaSource acquires local capture media; errors map to domain.ErrMediaUnavailable.
type MediaSource interface {
	Acquire(ctx context.Context, kind domain.MediaKind) (LocalMedia, error)
}
