package server

import (
	"context"
	"mesh_relay/internal/config"
	"mesh_relay/internal/dataType"
	"time"

	"go.uber.org/zap"
)

// Forwarder is the single consumer of a node's queue. It takes the most
// urgent message, waits out the transmission delay and hands it to the router.
type Forwarder struct {
	node              string
	queue             *dataType.PriorityQueue
	router            *Router
	neighbors         []config.Neighbor
	dequeueTimeout    time.Duration
	transmissionDelay time.Duration
	logger            *zap.Logger
}

func NewForwarder(cfg *config.MainConfig, queue *dataType.PriorityQueue, router *Router, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	neighbors := make([]config.Neighbor, len(cfg.Neighbors))
	copy(neighbors, cfg.Neighbors)
	return &Forwarder{
		node:              cfg.NodeName,
		queue:             queue,
		router:            router,
		neighbors:         neighbors,
		dequeueTimeout:    cfg.DequeueTimeout,
		transmissionDelay: cfg.TransmissionDelay,
		logger:            logger,
	}
}

// Run forwards until ctx is cancelled. A message whose delivery fails is
// dropped; the loop goes back to waiting either way.
func (f *Forwarder) Run(ctx context.Context) {
	f.logger.Info("forwarder started")
	defer f.logger.Info("forwarder stopped")

	for {
		entry, ok := f.queue.DequeueBlocking(ctx, f.dequeueTimeout)
		if ctx.Err() != nil {
			if ok {
				f.logger.Warn("shutting down with message in hand, not forwarded", zap.String("message_id", entry.Message.MessageID))
			}
			return
		}
		if !ok {
			continue
		}
		f.forward(ctx, entry)
	}
}

func (f *Forwarder) forward(ctx context.Context, entry dataType.QueueEntry) {
	msg := entry.Message
	f.logger.Info("processing message",
		zap.String("message_id", msg.ShortID()),
		zap.String("priority", string(msg.Priority)),
		zap.Uint64("seq", entry.Seq))

	if f.transmissionDelay > 0 {
		timer := time.NewTimer(f.transmissionDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			f.logger.Warn("shutting down during transmission delay, not forwarded", zap.String("message_id", msg.MessageID))
			return
		}
	}

	f.router.Deliver(msg, f.neighbors)
}
