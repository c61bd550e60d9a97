package events

import (
	"sync"
)

// Bus is a lightweight pub/sub broker using channels.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]chan any
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan any)}
}

// Subscribe registers a listener for an event and returns the channel and an
// unsubscribe function. Subscribing to EventAll receives every topic.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	b.subs[e] = append(b.subs[e], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[e]
			for i, c := range subs {
				if c == ch {
					close(c)
					b.subs[e] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		})
	}

	return ch, unsub
}

// Publish fans the payload out without blocking; slow subscribers miss it.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	deliver(b.subs[e], payload)
	if e != EventAll {
		deliver(b.subs[EventAll], payload)
	}
}

func deliver(subs []chan any, payload any) {
	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

// PublishAccount wraps data in an AccountEvent and publishes it under e.
func (b *Bus) PublishAccount(e Event, accountID string, data any) {
	if b == nil {
		return
	}
	b.Publish(e, AccountEvent{Type: e, AccountID: accountID, Time: now(), Data: data})
}
