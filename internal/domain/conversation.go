package domain

import (
	"errors"
	"fmt"
)

type ConversationKind string

const (
	ConversationGlobal  ConversationKind = "global"
	ConversationPrivate ConversationKind = "private"
	ConversationGroup   ConversationKind = "group"
)

var ErrBadConversation = errors.New("invalid conversation")

// ConversationRef identifies exactly one of {global}, {private, peer}, {group, id}.
type ConversationRef struct {
	Kind    ConversationKind `json:"kind"`
	PeerID  UserID           `json:"peer_id,omitempty"`
	GroupID GroupID          `json:"group_id,omitempty"`
}

func Global() ConversationRef { return ConversationRef{Kind: ConversationGlobal} }

func Private(peer UserID) ConversationRef {
	return ConversationRef{Kind: ConversationPrivate, PeerID: peer}
}

func Group(id GroupID) ConversationRef {
	return ConversationRef{Kind: ConversationGroup, GroupID: id}
}

// Key is a stable map key for the conversation.
func (r ConversationRef) Key() string {
	switch r.Kind {
	case ConversationPrivate:
		return "private:" + string(r.PeerID)
	case ConversationGroup:
		return "group:" + string(r.GroupID)
	default:
		return string(ConversationGlobal)
	}
}

func (r ConversationRef) String() string { return r.Key() }

func (r ConversationRef) Validate() error {
	switch r.Kind {
	case ConversationGlobal:
		if r.PeerID != "" || r.GroupID != "" {
			return fmt.Errorf("%w: global conversation carries an id", ErrBadConversation)
		}
	case ConversationPrivate:
		if r.PeerID == "" || r.GroupID != "" {
			return fmt.Errorf("%w: private conversation needs exactly a peer id", ErrBadConversation)
		}
	case ConversationGroup:
		if r.GroupID == "" || r.PeerID != "" {
			return fmt.Errorf("%w: group conversation needs exactly a group id", ErrBadConversation)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrBadConversation, r.Kind)
	}
	return nil
}
