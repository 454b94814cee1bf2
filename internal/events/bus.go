// Package events broadcasts sync-core signals (migration finished, missing
// remote index, sync queue size) to whoever listens. Publishing never blocks
// and never depends on a listener being present.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/models"
)

// Name identifies an event kind.
type Name string

const (
	MigrationComplete  Name = "encryption-migration-complete"
	RemoteIndexMissing Name = "remote-index-missing"
	SyncQueueSize      Name = "sync-queue-size-changed"
)

// MigrationCompleted is the payload of MigrationComplete.
type MigrationCompleted struct {
	UserID    string `json:"userId"`
	Processed int    `json:"processed"`
	Updated   int    `json:"updated"`
}

// IndexMissing is the payload of RemoteIndexMissing.
type IndexMissing struct {
	Collection models.Collection `json:"collection"`
	Link       string            `json:"link"`
}

// QueueSizeChanged is the payload of SyncQueueSize.
type QueueSizeChanged struct {
	UserID string `json:"userId"`
	Size   int    `json:"size"`
}

// Event is one published signal.
type Event struct {
	Name    Name      `json:"name"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Publisher is the sending side of a Bus.
type Publisher interface {
	Publish(ctx context.Context, name Name, payload any)
}

const subscriberBuffer = 32

type subscriber struct {
	ch    chan Event
	names map[Name]struct{}
}

func (s *subscriber) wants(name Name) bool {
	if len(s.names) == 0 {
		return true
	}
	_, ok := s.names[name]
	return ok
}

// Bus fans events out to buffered subscriber channels. A subscriber that
// falls behind loses events rather than stalling the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Subscribe returns a channel receiving events with the given names, or all
// events when none are given, and a function that cancels the subscription
// and closes the channel.
func (b *Bus) Subscribe(names ...Name) (<-chan Event, func()) {
	sub := &subscriber{
		ch:    make(chan Event, subscriberBuffer),
		names: make(map[Name]struct{}, len(names)),
	}
	for _, n := range names {
		sub.names[n] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[sub] = struct{}{}

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[sub]; ok {
				delete(b.subs, sub)
				close(sub.ch)
			}
		})
	}
}

func (b *Bus) Publish(ctx context.Context, name Name, payload any) {
	ev := Event{Name: name, Payload: payload, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.wants(name) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			logger.FromContext(ctx).Warn().
				Str("func", "Bus.Publish").
				Str("event", string(name)).
				Msg("subscriber buffer full, dropping event")
		}
	}
}

// Close ends every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}
