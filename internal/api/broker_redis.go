package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// EventBroker fans relay outcomes out to live audit-trail subscribers.
type EventBroker interface {
	Subscribe(shop string) chan RelayEvent
	Unsubscribe(shop string, ch chan RelayEvent)
	Publish(shop string, evt RelayEvent)
}

// RedisBroker implements EventBroker over Redis Pub/Sub so live tails work
// across replicas.
type RedisBroker struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs map[chan RelayEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{
		rdb:  redis.NewClient(opt),
		subs: map[chan RelayEvent]*redis.PubSub{},
	}, nil
}

func (b *RedisBroker) Subscribe(shop string) chan RelayEvent {
	ch := make(chan RelayEvent, 16)
	ps := b.rdb.Subscribe(context.Background(), b.chanName(shop))
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt RelayEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the pubsub; the reader goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(shop string, ch chan RelayEvent) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(shop string, evt RelayEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	_ = b.rdb.Publish(ctx, b.chanName(shop), data).Err()
}

func (b *RedisBroker) chanName(shop string) string { return "relay:" + shop }
