package signal

import (
	"errors"
	"testing"

	"github.com/dkeye/VoiceClient/internal/domain"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCodec_RoundTripsEveryVariant(t *testing.T) {
	cases := map[string]domain.SignalMessage{
		"global chat": {
			Type: domain.SignalChatMessage, SenderID: "7", ID: "m1",
			Content: strPtr("hello"), Timestamp: 1700000000000,
		},
		"private chat": {
			Type: domain.SignalChatMessage, SenderID: "7", ReceiverID: "42", ID: "m2",
			Content: strPtr("hi <there> & you"),
		},
		"group chat": {
			Type: domain.SignalChatMessage, SenderID: "7", GroupID: "g1", ID: "m3",
			Content: strPtr(""),
		},
		"unsend": {
			Type: domain.SignalMessageUpdate, SenderID: "7", ReceiverID: "42", ID: "m2", IsUnsent: true,
		},
		"edit": {
			Type: domain.SignalMessageUpdate, SenderID: "7", GroupID: "g1", ID: "m3",
			Content: strPtr("edited"), IsEdited: true,
		},
		"offer": {
			Type: domain.SignalCallOffer, SenderID: "1", ReceiverID: "2",
			SDP: "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n", IsVideo: true,
		},
		"answer": {
			Type: domain.SignalCallAnswer, SenderID: "2", ReceiverID: "1", SDP: "v=0\r\n",
		},
		"candidate": {
			Type: domain.SignalICECandidate, SenderID: "1", ReceiverID: "2",
			Candidate: json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 10.0.0.2 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`),
		},
		"response": {
			Type: domain.SignalCallResponse, SenderID: "2", ReceiverID: "1", Response: domain.ResponseBusy,
		},
		"notification": {
			Type: domain.SignalNotification, SenderID: "system", ReceiverID: "1",
			Payload: json.RawMessage(`{"kind":"friend-request","from":"9"}`),
		},
	}

	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			frame, err := Encode(msg)
			require.NoError(t, err)

			got, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

func TestCodec_UnknownTypeIsIgnorable(t *testing.T) {
	frame := []byte(`{"type":"typing","sender_id":5,"receiver_id":"1"}`)

	msg, err := Decode(frame)
	require.NoError(t, err)
	assert.False(t, msg.Type.Known())
	assert.Equal(t, domain.SignalType("typing"), msg.Type)
	assert.Equal(t, domain.UserID("5"), msg.SenderID)

	again, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, frame, again)
}

func TestCodec_NumericIdentities(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"chat-message","sender_id":7,"receiver_id":42,"id":"m1","content":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("7"), msg.SenderID)
	assert.Equal(t, domain.UserID("42"), msg.ReceiverID)
	assert.False(t, msg.Global())
}

func TestCodec_RejectsMalformedFrames(t *testing.T) {
	frames := map[string]string{
		"not json":          `{"type":`,
		"missing type":      `{"sender_id":"1"}`,
		"missing sender":    `{"type":"chat-message","content":"x"}`,
		"ambiguous scope":   `{"type":"chat-message","sender_id":"1","receiver_id":"2","group_id":"3"}`,
		"offer without sdp": `{"type":"call-offer","sender_id":"1","receiver_id":"2"}`,
		"null candidate":    `{"type":"ice-candidate","sender_id":"1","receiver_id":"2","candidate":null}`,
		"bad response verb": `{"type":"call-response","sender_id":"1","receiver_id":"2","response":"maybe"}`,
		"update without id": `{"type":"message-update","sender_id":"1","is_unsent":true}`,
	}
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			var de *DecodeError
			require.True(t, errors.As(err, &de), "want DecodeError, got %v", err)
			assert.Equal(t, []byte(frame), de.Frame)
		})
	}
}

func TestCodec_EncodeValidates(t *testing.T) {
	_, err := Encode(domain.SignalMessage{Type: domain.SignalCallAnswer, SenderID: "1", ReceiverID: "2"})
	assert.ErrorIs(t, err, errMissingSDP)

	_, err = Encode(domain.SignalMessage{Type: "mystery", SenderID: "1"})
	assert.Error(t, err)
}
