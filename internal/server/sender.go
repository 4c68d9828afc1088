package server

import (
	"errors"
	"fmt"
	"mesh_relay/internal/dataType"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSendTimeout bounds the single attempt a sender makes.
const DefaultSendTimeout = 5 * time.Second

// Compose builds a new message at its origin with a fresh id.
func Compose(sender, location, text, priority string, now time.Time) (dataType.Message, error) {
	sender, location, text = strings.TrimSpace(sender), strings.TrimSpace(location), strings.TrimSpace(text)
	switch {
	case sender == "":
		return dataType.Message{}, errors.New("name cannot be empty")
	case location == "":
		return dataType.Message{}, errors.New("location cannot be empty")
	case text == "":
		return dataType.Message{}, errors.New("message cannot be empty")
	}
	p, err := dataType.ParsePriority(priority)
	if err != nil {
		return dataType.Message{}, err
	}
	return dataType.NewMessage(uuid.NewString(), sender, location, text, p, now), nil
}

// Send makes exactly one delivery attempt of msg to addr.
func Send(addr string, msg dataType.Message, timeout time.Duration) error {
	payload, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return sendPayload(addr, payload, timeout)
}

// sendPayload connects, writes payload and closes, all within timeout.
func sendPayload(addr string, payload []byte, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set write deadline %s: %w", addr, err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write %s: %w", addr, err)
	}
	return nil
}
