package agent

import (
	"log/slog"
	"sync"

	"github.com/ashureev/finagent/internal/domain"
	"github.com/ashureev/finagent/internal/journey"
	"github.com/ashureev/finagent/internal/metrics"
)

const defaultSubscriberBuffer = 256

// Bus fans session events out to transport subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event, and once it has
// room again it receives an EventResync for every tab it missed events for,
// ahead of anything newer.
type Bus struct {
	mu     sync.Mutex
	subs   map[int64]*subscriber
	nextID int64
	closed bool
}

type subscriber struct {
	ch     chan Envelope
	missed map[string]Envelope // by session key; the envelope addresses the resync
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int64]*subscriber)}
}

// Subscribe returns a channel receiving every published envelope and a
// function that removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Envelope, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Envelope, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = &subscriber{ch: ch, missed: make(map[string]Envelope)}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
}

// Publish delivers env to every subscriber that has room for it.
func (b *Bus) Publish(env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		sub.deliver(env)
	}
}

func (sub *subscriber) deliver(env Envelope) {
	for key, pending := range sub.missed {
		select {
		case sub.ch <- pending:
			delete(sub.missed, key)
		default:
			sub.drop(env)
			return
		}
	}
	select {
	case sub.ch <- env:
	default:
		sub.drop(env)
	}
}

func (sub *subscriber) drop(env Envelope) {
	metrics.BusEventsDropped.Inc()
	key := domain.SessionKey(env.UserID, env.SessionID)
	if _, ok := sub.missed[key]; !ok {
		slog.Warn("Event subscriber lagging, tab will resync",
			"user_id", env.UserID, "session_id", env.SessionID)
	}
	sub.missed[key] = Envelope{
		UserID:    env.UserID,
		SessionID: env.SessionID,
		Event:     journey.Event{Type: EventResync},
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
