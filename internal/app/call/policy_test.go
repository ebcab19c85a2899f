package call

import (
	"testing"

	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassifyOffer(t *testing.T) {
	pc := &fakePeer{}
	tests := []struct {
		name    string
		session *session
		from    domain.UserID
		want    offerAction
	}{
		{"no session", nil, peerB, offerNew},
		{"ended session in grace period", &session{peer: peerB, state: domain.CallStateEnded}, peerC, offerNew},
		{"other peer while connected", &session{peer: peerB, state: domain.CallStateConnected}, peerC, offerBusy},
		{"other peer while ringing", &session{peer: peerB, state: domain.CallStateIncoming}, peerC, offerBusy},
		{"same peer while ringing", &session{peer: peerB, state: domain.CallStateIncoming}, peerB, offerRefresh},
		{"same peer while connected", &session{peer: peerB, state: domain.CallStateConnected, pc: pc, remoteSet: true}, peerB, offerRenegotiate},
		{"same peer while connecting with remote description", &session{peer: peerB, state: domain.CallStateConnecting, pc: pc, remoteSet: true}, peerB, offerRenegotiate},
		{"same peer while connecting without remote description", &session{peer: peerB, state: domain.CallStateConnecting, pc: pc}, peerB, offerBusy},
		{"glare", &session{peer: peerB, state: domain.CallStateCalling}, peerB, offerBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyOffer(tt.session, tt.from), "got %s", classifyOffer(tt.session, tt.from))
		})
	}
}
