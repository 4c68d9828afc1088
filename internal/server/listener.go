package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mesh_relay/internal/dataType"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PayloadHandler receives one connection's payload. err is set when the
// payload could not be read in full.
type PayloadHandler func(remote net.Addr, payload []byte, err error)

type InboundOptions struct {
	Address         string
	ReadTimeout     time.Duration
	MaxPayloadBytes int
	// Limiter is optional; connections over the per-IP rate are closed unread.
	Limiter *dataType.IPLimiter
}

// Inbound is a TCP accept loop that hands each connection's payload to a
// handler on its own goroutine. It never writes back to the peer.
type Inbound struct {
	opts    InboundOptions
	handler PayloadHandler
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func NewInbound(opts InboundOptions, handler PayloadHandler, logger *zap.Logger) *Inbound {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbound{opts: opts, handler: handler, logger: logger}
}

// Listen binds the configured address. It must succeed before Serve.
func (in *Inbound) Listen() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", in.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", in.opts.Address, err)
	}
	in.listener = l
	return nil
}

func (in *Inbound) Addr() net.Addr {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.listener == nil {
		return nil
	}
	return in.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then closes the listener
// and waits for in-flight handlers.
func (in *Inbound) Serve(ctx context.Context) error {
	in.mu.Lock()
	l := in.listener
	in.mu.Unlock()
	if l == nil {
		return errors.New("inbound: Serve called before Listen")
	}

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	var backoff time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			backoff = nextAcceptBackoff(backoff)
			in.logger.Error("failed to accept connection", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		if in.opts.Limiter != nil && !in.opts.Limiter.Allow(conn.RemoteAddr()) {
			in.logger.Warn("accept rate exceeded, closing connection", zap.String("remote", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		in.wg.Add(1)
		go in.handleConnection(conn)
	}

	in.wg.Wait()
	return nil
}

// nextAcceptBackoff doubles from 5ms up to 1s, like net/http.Server.
func nextAcceptBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	if prev *= 2; prev > time.Second {
		return time.Second
	}
	return prev
}

func (in *Inbound) handleConnection(conn net.Conn) {
	defer in.wg.Done()
	defer conn.Close()

	payload, err := readPayload(conn, in.opts.MaxPayloadBytes, in.opts.ReadTimeout)
	in.handler(conn.RemoteAddr(), payload, err)
}

// readPayload reads until EOF. More than limit bytes is ErrPayloadTooLarge.
func readPayload(conn net.Conn, limit int, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
	}
	data, err := io.ReadAll(io.LimitReader(conn, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if len(data) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", dataType.ErrPayloadTooLarge, limit)
	}
	return data, nil
}
