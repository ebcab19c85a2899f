package domain

import "time"

type MessageID string

func (id *MessageID) UnmarshalJSON(data []byte) error {
	s, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*id = MessageID(s)
	return nil
}

// ChatMessage is one entry of a conversation view.
// Pending and Failed are local-only flags for optimistic sends.
type ChatMessage struct {
	ID         MessageID `json:"id"`
	SenderID   UserID    `json:"sender_id"`
	ReceiverID UserID    `json:"receiver_id,omitempty"`
	GroupID    GroupID   `json:"group_id,omitempty"`
	Content    string    `json:"content"`
	IsUnsent   bool      `json:"is_unsent,omitempty"`
	IsEdited   bool      `json:"is_edited,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	Pending bool `json:"-"`
	Failed  bool `json:"-"`
}

// Conversation resolves the conversation a message belongs to from self's point of view.
func (m ChatMessage) Conversation(self UserID) ConversationRef {
	switch {
	case m.GroupID != "":
		return Group(m.GroupID)
	case m.ReceiverID == "":
		return Global()
	case m.SenderID == self:
		return Private(m.ReceiverID)
	default:
		return Private(m.SenderID)
	}
}

// MessagePatch is a partial update carried by message-update notifications.
type MessagePatch struct {
	Content  *string
	IsEdited bool
	IsUnsent bool
}

// Apply mutates m. Unsent messages keep their entry but lose their content.
func (p MessagePatch) Apply(m *ChatMessage) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.IsEdited {
		m.IsEdited = true
	}
	if p.IsUnsent {
		m.IsUnsent = true
		m.Content = ""
	}
}
