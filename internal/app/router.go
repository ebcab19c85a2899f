package app

import "github.com/dkeye/VoiceClient/internal/domain"

type Action int

const (
	ActionIgnore Action = iota
	ActionAppend
	ActionUpdate
	ActionCall
)

func (a Action) String() string {
	switch a {
	case ActionAppend:
		return "append"
	case ActionUpdate:
		return "update"
	case ActionCall:
		return "call"
	default:
		return "ignore"
	}
}

// Decision is the router's verdict for one inbound message. Conversation is the
// conversation the message belongs to, when it belongs to one.
type Decision struct {
	Action       Action
	Conversation domain.ConversationRef
}

// Route decides what to do with msg given the conversation currently on screen.
// The active conversation is passed on every call and never captured.
func Route(msg domain.SignalMessage, active domain.ConversationRef, self domain.UserID) Decision {
	switch {
	case msg.Type.Call():
		return Decision{Action: ActionCall}
	case msg.Type == domain.SignalMessageUpdate:
		return Decision{Action: ActionUpdate, Conversation: msg.ChatMessage().Conversation(self)}
	case msg.Type == domain.SignalChatMessage:
		conv := msg.ChatMessage().Conversation(self)
		if !Relevant(msg, active, self) {
			return Decision{Action: ActionIgnore, Conversation: conv}
		}
		return Decision{Action: ActionAppend, Conversation: active}
	default:
		return Decision{Action: ActionIgnore}
	}
}

// Relevant reports whether a chat message belongs to the active conversation.
func Relevant(msg domain.SignalMessage, active domain.ConversationRef, self domain.UserID) bool {
	switch active.Kind {
	case domain.ConversationGlobal:
		return msg.Global()
	case domain.ConversationGroup:
		return active.GroupID != "" && msg.GroupID == active.GroupID
	case domain.ConversationPrivate:
		p := active.PeerID
		return (msg.SenderID == self && msg.ReceiverID == p) ||
			(msg.SenderID == p && msg.ReceiverID == self)
	}
	return false
}
