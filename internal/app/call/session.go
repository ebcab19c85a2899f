package call

import (
	"slices"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Snapshot is the read-only view of the current call handed to subscribers.
type Snapshot struct {
	ID           string               `json:"id"`
	Direction    domain.CallDirection `json:"direction"`
	Peer         domain.UserID        `json:"peer"`
	Kind         domain.MediaKind     `json:"kind"`
	State        domain.CallState     `json:"state"`
	MicEnabled   bool                 `json:"mic_enabled"`
	VideoEnabled bool                 `json:"video_enabled"`
	Status       string               `json:"status"`
	Err          error                `json:"-"`

	Local  core.LocalMedia    `json:"-"`
	Remote []core.RemoteTrack `json:"-"`
}

// session is the single CallSession of the engine. Guarded by Engine.mu.
type session struct {
	id        string
	direction domain.CallDirection
	peer      domain.UserID
	kind      domain.MediaKind
	state     domain.CallState
	status    string
	err       error

	// offer is the stored remote SDP of an incoming call until it is accepted.
	offer string

	pc     core.PeerConnection
	local  core.LocalMedia
	remote []core.RemoteTrack

	// pending holds remote candidates received before the remote description.
	pending   []webrtc.ICECandidateInit
	remoteSet bool

	// held holds local candidates gathered before our offer/answer went out.
	held      []domain.SignalMessage
	described bool

	// outbox holds signaling that hit a dropped socket; flushed on reconnect.
	outbox []domain.SignalMessage

	mic   bool
	video bool
	timer core.Timer
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		ID:           s.id,
		Direction:    s.direction,
		Peer:         s.peer,
		Kind:         s.kind,
		State:        s.state,
		MicEnabled:   s.mic,
		VideoEnabled: s.video,
		Status:       s.status,
		Err:          s.err,
		Local:        s.local,
		Remote:       slices.Clone(s.remote),
	}
}

// peerAware reports whether the remote side already knows about this call.
func (s *session) peerAware() bool {
	return s.direction == domain.CallIncoming || s.described
}

func (s *session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
