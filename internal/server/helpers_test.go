package server

import (
	"context"
	"io"
	"mesh_relay/internal/config"
	"mesh_relay/internal/dataType"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// sink is a bare neighbor endpoint that decodes whatever it is sent.
// Connections are read one at a time so arrival order is preserved.
type sink struct {
	ln   net.Listener
	msgs chan dataType.Message
}

func startSink(t *testing.T) *sink {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &sink{ln: ln, msgs: make(chan dataType.Message, 256)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			data, _ := io.ReadAll(conn)
			conn.Close()
			if m, err := dataType.DecodeMessage(data); err == nil {
				s.msgs <- m
			}
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *sink) neighbor() config.Neighbor {
	return neighborOf(s.ln.Addr())
}

func (s *sink) next(t *testing.T, timeout time.Duration) dataType.Message {
	t.Helper()
	select {
	case m := <-s.msgs:
		return m
	case <-time.After(timeout):
		t.Fatalf("no message arrived at sink within %s", timeout)
		return dataType.Message{}
	}
}

func neighborOf(addr net.Addr) config.Neighbor {
	return config.Neighbor{Host: "127.0.0.1", Port: addr.(*net.TCPAddr).Port}
}

// refusedNeighbor returns an address nothing listens on.
func refusedNeighbor(t *testing.T) config.Neighbor {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	nb := neighborOf(ln.Addr())
	require.NoError(t, ln.Close())
	return nb
}

func testConfig(name string, neighbors ...config.Neighbor) *config.MainConfig {
	cfg := config.DefaultMainConfig()
	cfg.NodeName = name
	cfg.ListenAddress = "127.0.0.1"
	cfg.Port = 0
	cfg.Neighbors = neighbors
	cfg.AttemptTimeout = 500 * time.Millisecond
	cfg.RetryPause = 10 * time.Millisecond
	cfg.TransmissionDelay = 0
	cfg.DequeueTimeout = 20 * time.Millisecond
	cfg.ReadTimeout = 2 * time.Second
	return &cfg
}

func testMessage(id string, p dataType.Priority) dataType.Message {
	return dataType.NewMessage(id, "Ravi", "Sector 7", "need water", p, time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local))
}

func encode(t *testing.T, m dataType.Message) []byte {
	t.Helper()
	data, err := m.Encode()
	require.NoError(t, err)
	return data
}

// sendRaw writes payload to addr the way a sender or upstream relay does.
func sendRaw(t *testing.T, addr net.Addr, payload []byte) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

// runNode binds and starts n, stopping it when the test ends.
func runNode(t *testing.T, n *Node) {
	t.Helper()
	require.NoError(t, n.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func drainEvents(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func waitEvent(t *testing.T, ch <-chan Event, typ EventType, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-ch:
			if e.Type == typ {
				return e
			}
		case <-deadline:
			t.Fatalf("event %s not published within %s", typ, timeout)
			return Event{}
		}
	}
}

func countEvents(events []Event, typ EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}
