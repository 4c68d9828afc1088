package server

import (
	"mesh_relay/internal/config"
	"mesh_relay/internal/dataType"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_DeliversToFirstNeighbor(t *testing.T) {
	first, second := startSink(t), startSink(t)
	cfg := testConfig("relay-a")
	bus := NewEventBus(nil)
	events := bus.Subscribe(64)
	r := NewRouter(cfg, nil, bus)

	msg := testMessage("m-first", dataType.PriorityHigh)
	require.True(t, r.Deliver(msg, []config.Neighbor{first.neighbor(), second.neighbor()}))

	got := first.next(t, time.Second)
	assert.Equal(t, msg, got)
	assert.Empty(t, second.msgs, "delivery must stop at the first success")

	evs := drainEvents(events)
	assert.Equal(t, 1, countEvents(evs, EventForwardAttempt))
	assert.Equal(t, 1, countEvents(evs, EventForwarded))
}

func TestRouter_FailsOverAfterRetries(t *testing.T) {
	dead := refusedNeighbor(t)
	alive := startSink(t)
	cfg := testConfig("relay-a")
	bus := NewEventBus(nil)
	events := bus.Subscribe(64)
	r := NewRouter(cfg, nil, bus)

	msg := testMessage("m-failover", dataType.PriorityMedium)
	require.True(t, r.Deliver(msg, []config.Neighbor{dead, alive.neighbor()}))
	assert.Equal(t, "m-failover", alive.next(t, time.Second).MessageID)

	evs := drainEvents(events)
	var failed []int
	for _, e := range evs {
		if e.Type == EventAttemptFailed {
			assert.Equal(t, dead.Address(), e.Neighbor)
			failed = append(failed, e.Attempt)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, failed)
	assert.Equal(t, 1, countEvents(evs, EventNeighborUnreachable))

	fwd := evs[len(evs)-1]
	assert.Equal(t, EventForwarded, fwd.Type)
	assert.Equal(t, alive.neighbor().Address(), fwd.Neighbor)
	assert.Equal(t, 1, fwd.Attempt)
}

func TestRouter_AllNeighborsExhausted(t *testing.T) {
	cfg := testConfig("relay-a")
	bus := NewEventBus(nil)
	events := bus.Subscribe(64)
	r := NewRouter(cfg, nil, bus)

	start := time.Now()
	ok := r.Deliver(testMessage("m-lost", dataType.PriorityLow), []config.Neighbor{refusedNeighbor(t), refusedNeighbor(t)})
	assert.False(t, ok)

	evs := drainEvents(events)
	assert.Equal(t, 6, countEvents(evs, EventAttemptFailed))
	assert.Equal(t, 2, countEvents(evs, EventNeighborUnreachable))
	assert.Equal(t, EventAllNeighborsExhausted, evs[len(evs)-1].Type)
	// two pauses per neighbor
	assert.GreaterOrEqual(t, time.Since(start), 4*cfg.RetryPause)
}

func TestRouter_NoNeighbors(t *testing.T) {
	r := NewRouter(testConfig("relay-a"), nil, nil)
	assert.False(t, r.Deliver(testMessage("m-none", dataType.PriorityHigh), nil))
}

func TestRouter_OpenBreakerSkipsNeighbor(t *testing.T) {
	dead := refusedNeighbor(t)
	alive := startSink(t)
	cfg := testConfig("relay-a")
	cfg.Breaker = config.BreakerConfig{Enabled: true, FailureThreshold: 3, OpenTimeout: time.Minute}
	bus := NewEventBus(nil)
	events := bus.Subscribe(64)
	r := NewRouter(cfg, nil, bus)
	neighbors := []config.Neighbor{dead, alive.neighbor()}

	require.True(t, r.Deliver(testMessage("m-1", dataType.PriorityHigh), neighbors))
	alive.next(t, time.Second)
	assert.Equal(t, 3, countEvents(drainEvents(events), EventAttemptFailed))

	require.True(t, r.Deliver(testMessage("m-2", dataType.PriorityHigh), neighbors))
	alive.next(t, time.Second)
	evs := drainEvents(events)
	assert.Equal(t, 0, countEvents(evs, EventAttemptFailed))
	assert.Equal(t, 1, countEvents(evs, EventBreakerSkip))
	assert.Equal(t, 1, countEvents(evs, EventForwarded))
}
