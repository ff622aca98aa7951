package auth

import (
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	SignedUp  EventType = "signed_up"
	SignedIn  EventType = "signed_in"
	SignedOut EventType = "signed_out"
)

// Event is a session transition pushed to subscribers.
type Event struct {
	Type   EventType `json:"type"`
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

// Broker fans events out to subscribers without ever blocking the publisher.
// A subscriber whose buffer is full misses the event.
type Broker struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	logger *slog.Logger
}

func NewBroker(buffer int, logger *slog.Logger) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

func (b *Broker) Subscribe() <-chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe detaches and closes the channel. Unknown channels are ignored.
func (b *Broker) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		if ch == sub {
			delete(b.subs, ch)
			close(ch)
			return
		}
	}
}

func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("Auth event dropped for slow subscriber", "type", ev.Type, "user_id", ev.UserID)
		}
	}
}
