package http

import (
	"sync"

	"github.com/dkeye/VoiceClient/internal/app/call"
	"github.com/dkeye/VoiceClient/internal/app/orch"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Event is one server-sent event for the UI.
type Event struct {
	Name string
	Data any
}

type conversationEvent struct {
	Conversation domain.ConversationRef `json:"conversation"`
	Messages     []domain.ChatMessage   `json:"messages"`
}

type PublishResult struct {
	SendTo  int
	Dropped []string
}

// Hub fans UI events out to every connected event stream.
type Hub struct {
	policy Policy
	buffer int
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[string]chan Event
}

func NewHub(policy Policy, buffer int) *Hub {
	if policy == nil {
		policy = KickPolicy{}
	}
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		policy: policy,
		buffer: buffer,
		logger: log.With().Str("module", "adapters.http.events").Logger(),
		subs:   make(map[string]chan Event),
	}
}

// Bind subscribes the hub to connectivity, conversation and call changes.
func (h *Hub) Bind(chat ChatService, calls CallService) {
	chat.SubscribeConnectivity(func(c orch.Connectivity) {
		h.Broadcast(Event{Name: "connectivity", Data: c})
	})
	chat.SubscribeMessages(func(ref domain.ConversationRef, msgs []domain.ChatMessage) {
		h.Broadcast(Event{Name: "messages", Data: conversationEvent{Conversation: ref, Messages: msgs}})
	})
	calls.Subscribe(func(s call.Snapshot, ok bool) {
		h.Broadcast(Event{Name: "call", Data: newCallView(s, ok)})
	})
}

func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	h.logger.Info().Str("subscriber", id).Msg("event stream attached")
	return id, ch
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
		h.logger.Info().Str("subscriber", id).Msg("event stream detached")
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Broadcast(ev Event) PublishResult {
	h.mu.RLock()
	res := PublishResult{}
	for id, ch := range h.subs {
		select {
		case ch <- ev:
			res.SendTo++
		default:
			res.Dropped = append(res.Dropped, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range res.Dropped {
		switch h.policy.OnBackPressure(id) {
		case KickSubscriber:
			h.logger.Warn().Str("subscriber", id).Str("event", ev.Name).Msg("slow subscriber kicked")
			h.Unsubscribe(id)
		case DropEvent, NoAction:
		}
	}
	h.logger.Debug().Str("event", ev.Name).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// Close detaches every subscriber, ending their streams.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
