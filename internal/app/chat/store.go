// Package chat keeps the per-conversation message lists shown to the user.
package chat

import (
	"slices"
	"sync"
	"time"

	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Listener receives a copy of a conversation after every change.
type Listener func(ref domain.ConversationRef, msgs []domain.ChatMessage)

type conversation struct {
	ref      domain.ConversationRef
	messages []domain.ChatMessage
	// hidden holds ids deleted locally ("delete for me"); they never come back.
	hidden map[domain.MessageID]struct{}
}

func (c *conversation) indexOf(id domain.MessageID) int {
	return slices.IndexFunc(c.messages, func(m domain.ChatMessage) bool { return m.ID == id })
}

// confirmed is the part of the view the server knows about.
func (c *conversation) confirmed() []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(c.messages))
	for _, m := range c.messages {
		if !m.Pending && !m.Failed {
			out = append(out, m)
		}
	}
	return out
}

// Store is a threadsafe in-memory registry of conversations.
type Store struct {
	mu     sync.RWMutex
	convs  map[string]*conversation
	subs   []Listener
	now    func() time.Time
	logger zerolog.Logger
}

func NewStore() *Store {
	return &Store{
		convs:  make(map[string]*conversation),
		now:    time.Now,
		logger: log.With().Str("module", "app.chat").Logger(),
	}
}

func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) getOrCreateLocked(ref domain.ConversationRef) *conversation {
	key := ref.Key()
	if c, ok := s.convs[key]; ok {
		return c
	}
	c := &conversation{ref: ref, hidden: make(map[domain.MessageID]struct{})}
	s.convs[key] = c
	return c
}

// Messages returns a copy of the conversation's current view.
func (s *Store) Messages(ref domain.ConversationRef) []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[ref.Key()]
	if !ok {
		return nil
	}
	return slices.Clone(c.messages)
}

// AppendLocal inserts an optimistic message. An empty id gets a client-generated one.
func (s *Store) AppendLocal(ref domain.ConversationRef, msg domain.ChatMessage) domain.ChatMessage {
	if msg.ID == "" {
		msg.ID = domain.MessageID(uuid.NewString())
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	msg.Pending = true
	msg.Failed = false

	s.mu.Lock()
	c := s.getOrCreateLocked(ref)
	if i := c.indexOf(msg.ID); i >= 0 {
		c.messages[i] = msg
	} else {
		c.messages = append(c.messages, msg)
	}
	s.mu.Unlock()

	s.logger.Debug().Str("conversation", ref.Key()).Str("id", string(msg.ID)).Msg("optimistic append")
	s.notify(ref)
	return msg
}

// Confirm replaces the optimistic entry localID with the server-confirmed message, in place.
func (s *Store) Confirm(ref domain.ConversationRef, localID domain.MessageID, confirmed domain.ChatMessage) {
	confirmed.Pending = false
	confirmed.Failed = false

	s.mu.Lock()
	c := s.getOrCreateLocked(ref)
	if _, gone := c.hidden[localID]; gone {
		c.hidden[confirmed.ID] = struct{}{}
		s.mu.Unlock()
		return
	}
	i := c.indexOf(localID)
	switch {
	case i < 0:
		s.upsertLocked(c, confirmed)
	default:
		// The socket echo may already have inserted the confirmed id.
		if confirmed.ID != localID {
			if j := c.indexOf(confirmed.ID); j >= 0 {
				c.messages = slices.Delete(c.messages, j, j+1)
				if j < i {
					i--
				}
			}
		}
		c.messages[i] = confirmed
	}
	s.mu.Unlock()
	s.notify(ref)
}

// MarkFailed flags an optimistic message whose durable send failed.
func (s *Store) MarkFailed(ref domain.ConversationRef, localID domain.MessageID) bool {
	s.mu.Lock()
	c, ok := s.convs[ref.Key()]
	if !ok {
		s.mu.Unlock()
		return false
	}
	i := c.indexOf(localID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	c.messages[i].Pending = false
	c.messages[i].Failed = true
	s.mu.Unlock()
	s.notify(ref)
	return true
}

// AppendRemote applies a pushed message; an entry with the same id is replaced in place.
func (s *Store) AppendRemote(ref domain.ConversationRef, msg domain.ChatMessage) {
	msg.Pending = false
	msg.Failed = false
	s.mu.Lock()
	c := s.getOrCreateLocked(ref)
	if _, gone := c.hidden[msg.ID]; gone {
		s.mu.Unlock()
		return
	}
	s.upsertLocked(c, msg)
	s.mu.Unlock()
	s.notify(ref)
}

func (s *Store) upsertLocked(c *conversation, msg domain.ChatMessage) {
	if i := c.indexOf(msg.ID); i >= 0 {
		c.messages[i] = msg
		return
	}
	c.messages = append(c.messages, msg)
}

// Reconcile merges a polled server snapshot. The list is only replaced when its length
// or last id differ from the confirmed local view; unconfirmed local entries survive,
// and so do confirmed ones newer than anything in the snapshot.
func (s *Store) Reconcile(ref domain.ConversationRef, snapshot []domain.ChatMessage) bool {
	s.mu.Lock()
	c := s.getOrCreateLocked(ref)

	server := make([]domain.ChatMessage, 0, len(snapshot))
	ids := make(map[domain.MessageID]struct{}, len(snapshot))
	for _, m := range snapshot {
		if _, gone := c.hidden[m.ID]; gone {
			continue
		}
		m.Pending = false
		m.Failed = false
		server = append(server, m)
		ids[m.ID] = struct{}{}
	}

	local := c.confirmed()
	if len(local) == len(server) && lastID(local) == lastID(server) {
		s.mu.Unlock()
		return false
	}

	// Confirmed entries newer than the whole snapshot were persisted after it was taken.
	newest := latest(server)
	for _, m := range c.messages {
		if _, ok := ids[m.ID]; ok {
			continue
		}
		if m.Pending || m.Failed || (!m.CreatedAt.IsZero() && m.CreatedAt.After(newest)) {
			server = append(server, m)
		}
	}
	c.messages = server
	s.mu.Unlock()

	s.logger.Debug().Str("conversation", ref.Key()).Int("count", len(server)).Msg("reconciled")
	s.notify(ref)
	return true
}

func latest(msgs []domain.ChatMessage) time.Time {
	var t time.Time
	for _, m := range msgs {
		if m.CreatedAt.After(t) {
			t = m.CreatedAt
		}
	}
	return t
}

func lastID(msgs []domain.ChatMessage) domain.MessageID {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].ID
}

// ApplyUpdate patches the message with the given id in every loaded conversation.
func (s *Store) ApplyUpdate(id domain.MessageID, patch domain.MessagePatch) bool {
	var touched []domain.ConversationRef
	s.mu.Lock()
	for _, c := range s.convs {
		if i := c.indexOf(id); i >= 0 {
			patch.Apply(&c.messages[i])
			touched = append(touched, c.ref)
		}
	}
	s.mu.Unlock()

	for _, ref := range touched {
		s.notify(ref)
	}
	return len(touched) > 0
}

// DeleteForMe removes a message from the local view only.
func (s *Store) DeleteForMe(ref domain.ConversationRef, id domain.MessageID) bool {
	s.mu.Lock()
	c := s.getOrCreateLocked(ref)
	c.hidden[id] = struct{}{}
	i := c.indexOf(id)
	if i >= 0 {
		c.messages = slices.Delete(c.messages, i, i+1)
	}
	s.mu.Unlock()
	if i < 0 {
		return false
	}
	s.notify(ref)
	return true
}

func (s *Store) notify(ref domain.ConversationRef) {
	s.mu.RLock()
	subs := slices.Clone(s.subs)
	var msgs []domain.ChatMessage
	if c, ok := s.convs[ref.Key()]; ok {
		msgs = slices.Clone(c.messages)
	}
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(ref, msgs)
	}
}
