package events

import (
	"context"
	"sync"
)

// LocalBus delivers events inside one process. It is used when no REDIS_URL
// is configured and in tests.
type LocalBus struct {
	mu     sync.Mutex
	subs   map[int64]map[chan Event]struct{}
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int64]map[chan Event]struct{})}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, userID int64) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}, nil
	}
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan Event]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[userID][ch]; ok {
				delete(b.subs[userID], ch)
				if len(b.subs[userID]) == 0 {
					delete(b.subs, userID)
				}
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

// Close ends every subscription.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for userID, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, userID)
	}
	b.closed = true
	return nil
}
