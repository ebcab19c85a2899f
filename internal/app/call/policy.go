package call

import "github.com/dkeye/VoiceClient/internal/domain"

type offerAction int

const (
	offerNew offerAction = iota
	offerRefresh
	offerRenegotiate
	offerBusy
)

func (a offerAction) String() string {
	switch a {
	case offerNew:
		return "new"
	case offerRefresh:
		return "refresh"
	case offerRenegotiate:
		return "renegotiate"
	case offerBusy:
		return "busy"
	}
	return "unknown"
}

// classifyOffer decides what an inbound call-offer from `from` means given the
// current session. An ended session in its grace period is treated as absent.
func classifyOffer(s *session, from domain.UserID) offerAction {
	if s == nil || s.state.Terminal() {
		return offerNew
	}
	if from != s.peer {
		return offerBusy
	}
	switch s.state {
	case domain.CallStateIncoming:
		return offerRefresh
	case domain.CallStateConnected:
		return offerRenegotiate
	case domain.CallStateConnecting:
		if s.pc != nil && s.remoteSet {
			return offerRenegotiate
		}
	}
	// glare: both sides dialled each other
	return offerBusy
}
