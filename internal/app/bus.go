package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/VoiceClient/internal/domain"
)

// ErrBusClosed is returned when publishing to a closed Bus.
var ErrBusClosed = errors.New("event bus closed")

type Topic string

const (
	TopicChat Topic = "chat"
	TopicCall Topic = "call"
)

// TopicFor maps a routing decision onto its subscriber set. Ignored messages have none.
func TopicFor(d Decision) (Topic, bool) {
	switch d.Action {
	case ActionAppend, ActionUpdate:
		return TopicChat, true
	case ActionCall:
		return TopicCall, true
	}
	return "", false
}

type Event struct {
	Decision Decision
	Message  domain.SignalMessage
}

// Bus fans decoded messages out to independent chat and call subscribers.
// Delivery within a topic keeps publish order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]chan Event
	buffer int
	done   chan struct{}
	closed atomic.Bool
}

func NewBus(buffer int) *Bus {
	return &Bus{
		subs:   make(map[Topic][]chan Event),
		buffer: buffer,
		done:   make(chan struct{}),
	}
}

func (b *Bus) Subscribe(topic Topic) <-chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	return ch
}

func (b *Bus) Publish(ctx context.Context, topic Topic, ev Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		case <-b.done:
			return ErrBusClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Done is closed once the bus is closed; consumers select on it.
func (b *Bus) Done() <-chan struct{} { return b.done }

func (b *Bus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
}
