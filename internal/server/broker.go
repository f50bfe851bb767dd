package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 32

// Broker fans server-side events out to the connected stream subscribers.
// Subscribers that fall behind are dropped rather than blocking writers.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]chan []byte
	logger *slog.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broker{
		subs:   make(map[string]chan []byte),
		logger: logger,
	}
}

// Subscribe registers a new stream consumer. The returned cancel function
// must be called when the consumer goes away.
func (b *Broker) Subscribe() (<-chan []byte, func()) {
	id := uuid.NewString()
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	b.logger.Debug("stream subscriber connected", "subscriber", id)

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish serializes the payload and delivers it to every subscriber.
func (b *Broker) Publish(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("marshaling stream payload", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- data:
		default:
			// Slow consumer. Drop it so one stuck connection cannot
			// stall the write path.
			delete(b.subs, id)
			close(ch)
			b.logger.Warn("dropping slow stream subscriber", "subscriber", id)
		}
	}
}

// Count reports the number of connected subscribers.
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
