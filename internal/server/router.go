package server

import (
	"errors"
	"mesh_relay/internal/config"
	"mesh_relay/internal/dataType"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Router delivers one message to the first reachable neighbor, in list order.
type Router struct {
	node           string
	maxAttempts    int
	attemptTimeout time.Duration
	retryPause     time.Duration
	breakerCfg     config.BreakerConfig

	logger *zap.Logger
	events *EventBus

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewRouter(cfg *config.MainConfig, logger *zap.Logger, events *EventBus) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = NewEventBus(logger)
	}
	return &Router{
		node:           cfg.NodeName,
		maxAttempts:    cfg.MaxAttempts,
		attemptTimeout: cfg.AttemptTimeout,
		retryPause:     cfg.RetryPause,
		breakerCfg:     cfg.Breaker,
		logger:         logger,
		events:         events,
		breakers:       make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (r *Router) breaker(addr string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[addr]; ok {
		return cb
	}
	threshold := r.breakerCfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        addr,
		MaxRequests: 1,
		Timeout:     r.breakerCfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("neighbor circuit breaker state changed",
				zap.String("neighbor", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	r.breakers[addr] = cb
	return cb
}

// Deliver tries each neighbor in order, up to maxAttempts times each, and
// returns on the first success. It reports false once every neighbor is
// exhausted; the caller drops the message.
func (r *Router) Deliver(msg dataType.Message, neighbors []config.Neighbor) bool {
	payload, err := msg.Encode()
	if err != nil {
		r.logger.Error("failed to encode message", zap.String("message_id", msg.MessageID), zap.Error(err))
		return false
	}

	for _, nb := range neighbors {
		if r.deliverTo(msg, nb, payload) {
			return true
		}
	}

	r.logger.Error("could not forward message to any neighbor, dropping",
		zap.String("message_id", msg.MessageID),
		zap.String("priority", string(msg.Priority)),
		zap.Int("neighbors", len(neighbors)))
	r.events.Publish(Event{Type: EventAllNeighborsExhausted, Node: r.node, MessageID: msg.MessageID, Priority: string(msg.Priority)})
	return false
}

func (r *Router) deliverTo(msg dataType.Message, nb config.Neighbor, payload []byte) bool {
	addr := nb.Address()
	var cb *gobreaker.CircuitBreaker
	if r.breakerCfg.Enabled {
		cb = r.breaker(addr)
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if cb != nil && cb.State() == gobreaker.StateOpen {
			r.logger.Info("neighbor breaker open, skipping", zap.String("neighbor", addr), zap.String("message_id", msg.MessageID))
			r.events.Publish(Event{Type: EventBreakerSkip, Node: r.node, MessageID: msg.MessageID, Neighbor: addr})
			return false
		}

		r.logger.Debug("forward attempt",
			zap.String("message_id", msg.MessageID),
			zap.String("neighbor", addr),
			zap.Int("attempt", attempt))
		r.events.Publish(Event{Type: EventForwardAttempt, Node: r.node, MessageID: msg.MessageID, Neighbor: addr, Attempt: attempt})

		var err error
		if cb != nil {
			_, err = cb.Execute(func() (interface{}, error) {
				return nil, r.send(addr, payload)
			})
		} else {
			err = r.send(addr, payload)
		}

		if err == nil {
			r.logger.Info("forwarded",
				zap.String("message_id", msg.MessageID),
				zap.String("priority", string(msg.Priority)),
				zap.String("neighbor", addr),
				zap.Int("attempt", attempt))
			r.events.Publish(Event{Type: EventForwarded, Node: r.node, MessageID: msg.MessageID, Priority: string(msg.Priority), Neighbor: addr, Attempt: attempt})
			return true
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.events.Publish(Event{Type: EventBreakerSkip, Node: r.node, MessageID: msg.MessageID, Neighbor: addr})
			return false
		}

		r.logger.Warn("forward attempt failed",
			zap.String("message_id", msg.MessageID),
			zap.String("neighbor", addr),
			zap.Int("attempt", attempt),
			zap.Error(err))
		r.events.Publish(Event{Type: EventAttemptFailed, Node: r.node, MessageID: msg.MessageID, Neighbor: addr, Attempt: attempt, Error: err.Error()})

		if attempt < r.maxAttempts && r.retryPause > 0 {
			time.Sleep(r.retryPause)
		}
	}

	r.logger.Warn("neighbor unreachable, trying next", zap.String("neighbor", addr), zap.String("message_id", msg.MessageID))
	r.events.Publish(Event{Type: EventNeighborUnreachable, Node: r.node, MessageID: msg.MessageID, Neighbor: addr})
	return false
}

// send is one transport attempt bounded by attemptTimeout.
func (r *Router) send(addr string, payload []byte) error {
	return sendPayload(addr, payload, r.attemptTimeout)
}
