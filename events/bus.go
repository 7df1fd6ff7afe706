// Package events delivers log and progress events to UI subscribers.
// Delivery is best-effort: slow subscribers drop events and late subscribers
// never see earlier ones.
package events

import (
	"sync"
	"time"
)

// LogEventName is the name of the event stream consumed by the UI.
const LogEventName = "log:event"

// Level is the severity of an event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is a single structured log event.
type Event struct {
	Level     Level             `json:"level"`
	Message   string            `json:"message"`
	Source    string            `json:"source"`
	Timestamp string            `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Bus is a non-blocking pub/sub fan-out.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	buffer      int
}

// NewBus creates a bus whose subscribers buffer up to buffer events (default: 100).
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 100
	}
	return &Bus{
		subscribers: make(map[chan Event]struct{}),
		buffer:      buffer,
	}
}

// Subscribe returns a channel of events published from now on and a function
// that unsubscribes and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends an event to every subscriber without blocking.
// A subscriber whose buffer is full misses the event.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp == "" {
		evt.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers returns the number of current subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
