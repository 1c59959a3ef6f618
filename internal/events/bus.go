// Package events provides the in-process publish/subscribe bus that carries
// scan progress to live consumers (the CLI printer and the WebSocket stream).
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type identifies the kind of payload carried by a Message.
type Type string

const (
	// TypeLog carries a LogPayload: one timestamped progress line.
	TypeLog Type = "log"
	// TypeState carries a StatePayload: a scan lifecycle transition.
	TypeState Type = "state"
)

// Message is the envelope delivered to subscribers.
type Message struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      Type        `json:"type"`
	Payload   interface{} `json:"payload"`
}

// LogPayload is published for every progress line appended to a scan log.
type LogPayload struct {
	Line string `json:"line"`
}

// StatePayload is published whenever the scan state changes.
type StatePayload struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Bus fans messages out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the message.
type Bus struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[chan Message][]Type
	bufferSize  int
	isShutdown  bool

	shutdownOnce sync.Once
	dropped      atomic.Int64
}

// NewBus initializes a Bus whose subscriber channels hold bufferSize messages.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Bus{
		logger:      logger.Named("event_bus"),
		subscribers: make(map[chan Message][]Type),
		bufferSize:  bufferSize,
	}
}

// Publish sends a message to every interested subscriber. It is a no-op after
// Shutdown.
func (b *Bus) Publish(msgType Type, payload interface{}) {
	msg := Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      msgType,
		Payload:   payload,
	}

	// The read lock is held across the sends so Shutdown cannot close a
	// channel underneath us. Sends are non-blocking so this is brief.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.isShutdown {
		return
	}

	for ch, types := range b.subscribers {
		if !wants(types, msgType) {
			continue
		}
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
			b.logger.Debug("Subscriber buffer full, dropping message",
				zap.String("type", string(msgType)), zap.String("id", msg.ID))
		}
	}
}

// Subscribe returns a channel receiving messages of the given types (all types
// when none are given) and a function that removes the subscription and
// closes the channel.
func (b *Bus) Subscribe(msgTypes ...Type) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isShutdown {
		closedCh := make(chan Message)
		close(closedCh)
		return closedCh, func() {}
	}

	ch := make(chan Message, b.bufferSize)
	types := make([]Type, len(msgTypes))
	copy(types, msgTypes)
	b.subscribers[ch] = types

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			// Shutdown may already have closed it.
			if _, ok := b.subscribers[ch]; ok {
				delete(b.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, unsubscribe
}

// Dropped reports how many deliveries were skipped because a subscriber was slow.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Shutdown closes every subscriber channel. Later subscriptions receive an
// already-closed channel.
func (b *Bus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.isShutdown = true
		for ch := range b.subscribers {
			close(ch)
		}
		b.subscribers = make(map[chan Message][]Type)
		b.logger.Debug("Event bus shut down.", zap.Int64("dropped", b.dropped.Load()))
	})
}

func wants(types []Type, t Type) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}
