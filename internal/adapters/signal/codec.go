package signal

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dkeye/VoiceClient/internal/domain"
	json "github.com/goccy/go-json"
)

var (
	errMissingType     = errors.New("missing type")
	errMissingSender   = errors.New("missing sender_id")
	errAmbiguousScope  = errors.New("receiver_id and group_id are mutually exclusive")
	errMissingID       = errors.New("missing id")
	errMissingSDP      = errors.New("missing sdp")
	errMissingCand     = errors.New("missing candidate")
	errUnknownResponse = errors.New("unknown call response")
)

// DecodeError reports a frame that could not be turned into a SignalMessage.
// The frame is dropped; the connection stays up.
type DecodeError struct {
	Frame []byte
	Err   error
}

func (e *DecodeError) Error() string { return "decode signaling frame: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes m into a text frame. Unknown variants are re-emitted verbatim.
func Encode(m domain.SignalMessage) ([]byte, error) {
	if !m.Type.Known() {
		if len(m.Raw) > 0 {
			return m.Raw, nil
		}
		return nil, fmt.Errorf("encode signaling message: unknown type %q", m.Type)
	}
	if err := validate(m); err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return json.Marshal(m)
}

// Decode parses a text frame. Unknown types decode to an ignorable message, not an error.
func Decode(frame []byte) (domain.SignalMessage, error) {
	var env struct {
		Type     domain.SignalType `json:"type"`
		SenderID domain.UserID     `json:"sender_id"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return domain.SignalMessage{}, &DecodeError{Frame: frame, Err: err}
	}
	if env.Type == "" {
		return domain.SignalMessage{}, &DecodeError{Frame: frame, Err: errMissingType}
	}
	if !env.Type.Known() {
		return domain.SignalMessage{
			Type:     env.Type,
			SenderID: env.SenderID,
			Raw:      bytes.Clone(frame),
		}, nil
	}

	var m domain.SignalMessage
	if err := json.Unmarshal(frame, &m); err != nil {
		return domain.SignalMessage{}, &DecodeError{Frame: frame, Err: err}
	}
	if err := validate(m); err != nil {
		return domain.SignalMessage{}, &DecodeError{Frame: frame, Err: err}
	}
	return m, nil
}

func validate(m domain.SignalMessage) error {
	if m.SenderID == "" {
		return errMissingSender
	}
	if m.ReceiverID != "" && m.GroupID != "" {
		return errAmbiguousScope
	}
	switch m.Type {
	case domain.SignalMessageUpdate:
		if m.ID == "" {
			return errMissingID
		}
	case domain.SignalCallOffer, domain.SignalCallAnswer:
		if m.SDP == "" {
			return errMissingSDP
		}
	case domain.SignalICECandidate:
		c := bytes.TrimSpace(m.Candidate)
		if len(c) == 0 || bytes.Equal(c, []byte("null")) {
			return errMissingCand
		}
	case domain.SignalCallResponse:
		if !m.Response.Valid() {
			return fmt.Errorf("%w %q", errUnknownResponse, m.Response)
		}
	}
	return nil
}
