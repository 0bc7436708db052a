package api

import (
	"sync"
)

// RelayEvent is one live relay outcome fanned out to audit-trail watchers.
type RelayEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Broker fans relay events out per shop to SSE and WebSocket subscribers.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan RelayEvent]struct{} // shop -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan RelayEvent]struct{}{}}
}

func (b *Broker) Subscribe(shop string) chan RelayEvent {
	ch := make(chan RelayEvent, 8)
	b.mu.Lock()
	if b.subs[shop] == nil {
		b.subs[shop] = map[chan RelayEvent]struct{}{}
	}
	b.subs[shop][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(shop string, ch chan RelayEvent) {
	b.mu.Lock()
	if m := b.subs[shop]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, shop)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(shop string, evt RelayEvent) {
	b.mu.Lock()
	m := b.subs[shop]
	for ch := range m {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
