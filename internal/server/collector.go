package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mesh_relay/internal/config"
	"mesh_relay/internal/dataType"
	"net"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Collector is the terminal endpoint of the mesh. It accepts the same wire
// format as a relay, prints and persists every message, and forwards nothing.
type Collector struct {
	cfg     *config.CollectorConfig
	logger  *zap.Logger
	events  *EventBus
	inbound *Inbound
	out     io.Writer

	mu       sync.Mutex
	messages []dataType.Message
	received int
}

// NewCollector loads any messages already persisted at cfg.MessagesFile.
// An unreadable file is logged and the collector starts empty.
func NewCollector(cfg *config.CollectorConfig, logger *zap.Logger, out io.Writer) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	c := &Collector{
		cfg:    cfg,
		logger: logger,
		events: NewEventBus(logger),
		out:    out,
	}
	c.messages = c.loadMessages()
	c.inbound = NewInbound(InboundOptions{
		Address:         cfg.ListenAddr(),
		ReadTimeout:     cfg.ReadTimeout,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
	}, c.handlePayload, logger)
	return c
}

func (c *Collector) loadMessages() []dataType.Message {
	data, err := os.ReadFile(c.cfg.MessagesFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("could not load existing messages", zap.String("file", c.cfg.MessagesFile), zap.Error(err))
		}
		return nil
	}
	var messages []dataType.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		c.logger.Warn("could not load existing messages", zap.String("file", c.cfg.MessagesFile), zap.Error(err))
		return nil
	}
	c.logger.Info("loaded existing messages", zap.Int("count", len(messages)), zap.String("file", c.cfg.MessagesFile))
	return messages
}

func (c *Collector) Listen() error {
	return c.inbound.Listen()
}

func (c *Collector) Addr() net.Addr {
	return c.inbound.Addr()
}

func (c *Collector) Events() *EventBus {
	return c.events
}

func (c *Collector) Run(ctx context.Context) error {
	if err := c.Listen(); err != nil {
		return err
	}
	c.logger.Info("base station listening",
		zap.String("address", c.Addr().String()),
		zap.String("messages_file", c.cfg.MessagesFile))
	err := c.inbound.Serve(ctx)

	stats := c.Stats()
	c.logger.Info("base station stopped",
		zap.Int("total", len(c.Messages())),
		zap.Int("high", stats[dataType.PriorityHigh]),
		zap.Int("medium", stats[dataType.PriorityMedium]),
		zap.Int("low", stats[dataType.PriorityLow]))
	return err
}

func (c *Collector) handlePayload(remote net.Addr, payload []byte, err error) {
	if err != nil {
		c.logger.Warn("discarding unreadable payload", zap.String("remote", remote.String()), zap.Error(err))
		c.events.Publish(Event{Type: EventMalformed, Node: c.cfg.NodeName, Remote: remote.String(), Error: err.Error()})
		return
	}
	_ = c.Receive(payload, remote)
}

// Receive stores one payload. Missing fields are kept as received; the
// display falls back to placeholders.
func (c *Collector) Receive(payload []byte, remote net.Addr) error {
	source := "local"
	if remote != nil {
		source = remote.String()
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil
	}
	msg, err := dataType.DecodeMessage(payload)
	if err != nil {
		c.logger.Error("invalid JSON format received", zap.String("remote", source), zap.Error(err))
		c.events.Publish(Event{Type: EventMalformed, Node: c.cfg.NodeName, Remote: source, Error: err.Error()})
		return err
	}
	c.logger.Info("message received from relay", zap.String("remote", source), zap.String("message_id", msg.MessageID))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.received++
	c.messages = append(c.messages, msg)
	writeMessageTable(c.out, msg, c.received)

	if err := c.persistLocked(); err != nil {
		c.logger.Error("failed to save message", zap.String("file", c.cfg.MessagesFile), zap.Error(err))
		return err
	}
	writeStatistics(c.out, c.messages)
	c.events.Publish(Event{Type: EventStored, Node: c.cfg.NodeName, MessageID: msg.MessageID, Priority: string(msg.Priority), Remote: source})
	return nil
}

// persistLocked rewrites the whole file. Caller holds c.mu.
func (c *Collector) persistLocked() error {
	data, err := json.MarshalIndent(c.messages, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	tmp := c.cfg.MessagesFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.cfg.MessagesFile); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (c *Collector) Messages() []dataType.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dataType.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Stats counts stored messages per priority.
func (c *Collector) Stats() map[dataType.Priority]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return countByPriority(c.messages)
}

func countByPriority(messages []dataType.Message) map[dataType.Priority]int {
	stats := map[dataType.Priority]int{
		dataType.PriorityHigh:   0,
		dataType.PriorityMedium: 0,
		dataType.PriorityLow:    0,
	}
	for _, m := range messages {
		if m.Priority.Valid() {
			stats[m.Priority]++
		}
	}
	return stats
}
