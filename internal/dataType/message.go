package dataType

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the origination timestamp format carried on the wire.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	ErrMalformed       = errors.New("malformed message")
	ErrPayloadTooLarge = errors.New("payload exceeds size limit")
)

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Rank orders priorities for dequeue; lower is delivered first.
// Unknown values rank with LOW.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ParsePriority normalizes user or wire input ("high", " Low ") to a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Message is one emergency message. It is created once by the sender and
// relayed unchanged; MessageID is the dedup key at every hop.
type Message struct {
	MessageID   string   `json:"message_id" validate:"required"`
	SenderName  string   `json:"sender_name"`
	Location    string   `json:"location"`
	MessageText string   `json:"message_text"`
	Priority    Priority `json:"priority" validate:"required,oneof=HIGH MEDIUM LOW"`
	Timestamp   string   `json:"timestamp"`

	// Extra holds wire fields this node does not interpret. They are
	// relayed and stored as received.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = []string{"message_id", "sender_name", "location", "message_text", "priority", "timestamp"}

// wireMessage has Message's fields without its JSON methods.
type wireMessage Message

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownFields {
		delete(raw, k)
	}
	w.Extra = nil
	if len(raw) > 0 {
		w.Extra = raw
	}
	*m = Message(w)
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(wireMessage(m))
	if err != nil || len(m.Extra) == 0 {
		return data, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, known := out[k]; !known {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// NewMessage builds a message at the origin. id must be globally unique.
func NewMessage(id, sender, location, text string, priority Priority, now time.Time) Message {
	return Message{
		MessageID:   id,
		SenderName:  sender,
		Location:    location,
		MessageText: text,
		Priority:    priority,
		Timestamp:   now.Format(TimestampLayout),
	}
}

// DecodeMessage parses one wire payload. Priority is upper-cased; structural
// validation is left to the caller.
func DecodeMessage(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m.Priority = Priority(strings.ToUpper(strings.TrimSpace(string(m.Priority))))
	return m, nil
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ShortID is the id prefix used in log lines.
func (m Message) ShortID() string {
	if len(m.MessageID) > 8 {
		return m.MessageID[:8]
	}
	return m.MessageID
}
