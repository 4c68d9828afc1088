package server

import (
	"context"
	"errors"
	"fmt"
	"mesh_relay/internal/action"
	"mesh_relay/internal/check"
	"mesh_relay/internal/config"
	"mesh_relay/internal/dataType"
	"mesh_relay/internal/utils"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var ErrNodeRunning = errors.New("node already running")

type CheckFunc func(dataType.Message, *dataType.SharedMemory, *action.Decision)

// Node is one relay: inbound listener, dedup tracker, priority queue and a
// forwarder draining it towards the configured neighbors. Nodes share no
// state, so several can run in one process.
type Node struct {
	cfg     *config.MainConfig
	shared  *dataType.SharedMemory
	events  *EventBus
	logger  *zap.Logger
	limiter *dataType.IPLimiter

	inbound   *Inbound
	router    *Router
	forwarder *Forwarder
	checks    []CheckFunc

	running atomic.Bool
}

func NewNode(cfg *config.MainConfig, logger *zap.Logger) (*Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &Node{
		cfg:    cfg,
		shared: dataType.NewSharedMemory(cfg.DedupShards),
		logger: logger,
		checks: []CheckFunc{check.Structure, check.Duplicate},
	}
	n.events = NewEventBus(logger)

	if cfg.AcceptRate != "" {
		limit, window, err := utils.ParseRate(cfg.AcceptRate)
		if err != nil {
			return nil, fmt.Errorf("accept_rate: %w", err)
		}
		n.limiter = dataType.NewIPLimiter(limit, window)
	}

	n.router = NewRouter(cfg, logger, n.events)
	n.forwarder = NewForwarder(cfg, n.shared.Queue, n.router, logger)
	n.inbound = NewInbound(InboundOptions{
		Address:         cfg.ListenAddr(),
		ReadTimeout:     cfg.ReadTimeout,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		Limiter:         n.limiter,
	}, n.handlePayload, logger)

	return n, nil
}

// Listen binds the node's port. A bind failure is fatal for the node.
func (n *Node) Listen() error {
	return n.inbound.Listen()
}

func (n *Node) Addr() net.Addr {
	return n.inbound.Addr()
}

func (n *Node) Events() *EventBus {
	return n.events
}

func (n *Node) Shared() *dataType.SharedMemory {
	return n.shared
}

// Run binds if needed, starts the forwarder and the housekeeping loops,
// and serves inbound connections until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	if !n.running.CompareAndSwap(false, true) {
		return ErrNodeRunning
	}
	if err := n.Listen(); err != nil {
		return err
	}
	n.logBanner()

	stopCh := make(chan struct{})
	defer close(stopCh)

	if n.cfg.DedupTTL > 0 {
		go dataType.StartSeenTrackerGC(n.shared.Seen, n.cfg.DedupTTL, gcInterval(n.cfg.DedupTTL), stopCh)
	}
	if n.limiter != nil {
		go dataType.StartIPLimiterGC(n.limiter, time.Minute, stopCh)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n.forwarder.Run(ctx)
	}()

	err := n.inbound.Serve(ctx)
	wg.Wait()
	n.logger.Info("node stopped", zap.Int("queued", n.shared.Queue.Len()))
	return err
}

func gcInterval(ttl time.Duration) time.Duration {
	if interval := ttl / 2; interval > time.Second {
		return interval
	}
	return time.Second
}

func (n *Node) logBanner() {
	neighbors := make([]string, 0, len(n.cfg.Neighbors))
	for i, nb := range n.cfg.Neighbors {
		neighbors = append(neighbors, fmt.Sprintf("%d:%s", i+1, nb.Address()))
	}
	n.logger.Info("relay node listening",
		zap.String("version", dataType.MeshRelayVersion),
		zap.String("address", n.Addr().String()),
		zap.String("neighbors", strings.Join(neighbors, ", ")))
	if len(n.cfg.Neighbors) == 0 {
		n.logger.Warn("no neighbors configured, every message will be dropped")
	}
}

func (n *Node) handlePayload(remote net.Addr, payload []byte, err error) {
	if err != nil {
		n.logger.Warn("discarding unreadable payload", zap.String("remote", remote.String()), zap.Error(err))
		n.events.Publish(Event{Type: EventMalformed, Node: n.cfg.NodeName, Remote: remote.String(), Error: err.Error()})
		return
	}
	_, _ = n.Submit(payload, remote)
}

// Submit runs one payload through the inbound checks and enqueues it when
// accepted. Malformed payloads never touch the tracker or the queue.
func (n *Node) Submit(payload []byte, remote net.Addr) (action.Action, error) {
	source := "local"
	if remote != nil {
		source = remote.String()
	}

	msg, err := dataType.DecodeMessage(payload)
	if err != nil {
		n.logger.Warn("invalid message format", zap.String("remote", source), zap.Error(err))
		n.events.Publish(Event{Type: EventMalformed, Node: n.cfg.NodeName, Remote: source, Error: err.Error()})
		return action.Reject, err
	}

	n.logger.Info("message received", zap.String("remote", source), zap.String("message_id", msg.MessageID))
	n.events.Publish(Event{Type: EventReceived, Node: n.cfg.NodeName, MessageID: msg.MessageID, Priority: string(msg.Priority), Remote: source})

	decision := action.NewDecision()
	for _, checkFunc := range n.checks {
		checkFunc(msg, n.shared, decision)
		if decision.Get() == action.Reject || decision.Get() == action.Duplicate {
			break
		}
	}

	switch decision.Get() {
	case action.Reject:
		n.logger.Warn("invalid message", zap.String("remote", source), zap.String("reason", decision.Reason()))
		n.events.Publish(Event{Type: EventMalformed, Node: n.cfg.NodeName, MessageID: msg.MessageID, Remote: source, Error: decision.Reason()})
		return action.Reject, fmt.Errorf("%w: %s", dataType.ErrMalformed, decision.Reason())
	case action.Duplicate:
		n.logger.Info("duplicate message ignored", zap.String("message_id", msg.ShortID()), zap.String("remote", source))
		n.events.Publish(Event{Type: EventDuplicate, Node: n.cfg.NodeName, MessageID: msg.MessageID, Remote: source})
		return action.Duplicate, nil
	}

	entry := n.shared.Queue.Enqueue(msg)
	n.logger.Info("message queued",
		zap.String("message_id", msg.ShortID()),
		zap.String("priority", string(msg.Priority)),
		zap.Int("rank", entry.Rank),
		zap.Int("queue_size", n.shared.Queue.Len()))
	n.events.Publish(Event{Type: EventQueued, Node: n.cfg.NodeName, MessageID: msg.MessageID, Priority: string(msg.Priority)})
	return action.Accept, nil
}
