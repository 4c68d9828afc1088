package server

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	EventReceived              EventType = "RECEIVED"
	EventQueued                EventType = "QUEUED"
	EventDuplicate             EventType = "DUPLICATE"
	EventMalformed             EventType = "MALFORMED"
	EventForwardAttempt        EventType = "FORWARD_ATTEMPT"
	EventAttemptFailed         EventType = "ATTEMPT_FAILED"
	EventForwarded             EventType = "FORWARDED"
	EventNeighborUnreachable   EventType = "NEIGHBOR_UNREACHABLE"
	EventAllNeighborsExhausted EventType = "ALL_NEIGHBORS_EXHAUSTED"
	EventBreakerSkip           EventType = "BREAKER_SKIP"
	EventStored                EventType = "STORED"
)

// Event is one state transition of a node, published for observers.
type Event struct {
	Type      EventType `json:"type"`
	Node      string    `json:"node"`
	MessageID string    `json:"message_id,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Neighbor  string    `json:"neighbor,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Remote    string    `json:"remote,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBus fans events out to subscribers without ever blocking the publisher.
type EventBus struct {
	subscribers []chan Event
	mu          sync.RWMutex
	logger      *zap.Logger
}

func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subscribers: make([]chan Event, 0),
		logger:      logger,
	}
}

func (eb *EventBus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, sub := range eb.subscribers {
		select {
		case sub <- e:
		default:
			eb.logger.Debug("dropping event, subscriber channel is full", zap.String("event", string(e.Type)))
		}
	}
}

// Subscribe returns a channel receiving every event published from now on.
func (eb *EventBus) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 100
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	ch := make(chan Event, buffer)
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}
