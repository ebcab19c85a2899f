package domain

import (
	"time"

	json "github.com/goccy/go-json"
)

type SignalType string

const (
	SignalChatMessage   SignalType = "chat-message"
	SignalMessageUpdate SignalType = "message-update"
	SignalCallOffer     SignalType = "call-offer"
	SignalCallAnswer    SignalType = "call-answer"
	SignalICECandidate  SignalType = "ice-candidate"
	SignalCallResponse  SignalType = "call-response"
	SignalNotification  SignalType = "notification"
)

// Known reports whether t is one of the protocol variants this client understands.
func (t SignalType) Known() bool {
	switch t {
	case SignalChatMessage, SignalMessageUpdate, SignalCallOffer, SignalCallAnswer,
		SignalICECandidate, SignalCallResponse, SignalNotification:
		return true
	}
	return false
}

// Call reports whether t belongs to call signaling rather than chat.
func (t SignalType) Call() bool {
	switch t {
	case SignalCallOffer, SignalCallAnswer, SignalICECandidate, SignalCallResponse:
		return true
	}
	return false
}

// SignalMessage is the tagged union carried on the signaling socket.
// Only the fields of the variant named by Type are populated.
type SignalMessage struct {
	Type       SignalType `json:"type"`
	SenderID   UserID     `json:"sender_id"`
	ReceiverID UserID     `json:"receiver_id,omitempty"`
	GroupID    GroupID    `json:"group_id,omitempty"`

	// chat-message, message-update
	ID        MessageID `json:"id,omitempty"`
	Content   *string   `json:"content,omitempty"`
	Timestamp int64     `json:"timestamp,omitempty"`
	IsUnsent  bool      `json:"is_unsent,omitempty"`
	IsEdited  bool      `json:"is_edited,omitempty"`

	// call-offer, call-answer
	SDP     string `json:"sdp,omitempty"`
	IsVideo bool   `json:"isVideo,omitempty"`

	// ice-candidate
	Candidate json.RawMessage `json:"candidate,omitempty"`

	// call-response
	Response CallResponse `json:"response,omitempty"`

	// notification
	Payload json.RawMessage `json:"payload,omitempty"`

	// Raw holds the undecoded frame of an unknown variant.
	Raw []byte `json:"-"`
}

// Global reports whether the message is scoped to the global channel.
func (m SignalMessage) Global() bool { return m.ReceiverID == "" && m.GroupID == "" }

// ChatMessage converts a chat-message variant into a conversation entry.
func (m SignalMessage) ChatMessage() ChatMessage {
	cm := ChatMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		GroupID:    m.GroupID,
		IsUnsent:   m.IsUnsent,
		IsEdited:   m.IsEdited,
	}
	if m.Content != nil {
		cm.Content = *m.Content
	}
	if m.Timestamp != 0 {
		cm.CreatedAt = time.UnixMilli(m.Timestamp).UTC()
	}
	return cm
}

// Patch converts a message-update variant into a MessagePatch.
func (m SignalMessage) Patch() MessagePatch {
	return MessagePatch{Content: m.Content, IsEdited: m.IsEdited, IsUnsent: m.IsUnsent}
}

// ChatSignal builds the chat-message variant for msg.
func ChatSignal(msg ChatMessage) SignalMessage {
	content := msg.Content
	s := SignalMessage{
		Type:       SignalChatMessage,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		GroupID:    msg.GroupID,
		ID:         msg.ID,
		Content:    &content,
	}
	if !msg.CreatedAt.IsZero() {
		s.Timestamp = msg.CreatedAt.UnixMilli()
	}
	return s
}
