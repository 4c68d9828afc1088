package server

import (
	"mesh_relay/internal/dataType"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	m, err := Compose(" Ravi ", "Sector 7", "trapped", "high", now)
	require.NoError(t, err)

	_, err = uuid.Parse(m.MessageID)
	assert.NoError(t, err)
	assert.Equal(t, dataType.PriorityHigh, m.Priority)
	assert.Equal(t, "Ravi", m.SenderName)
	assert.Equal(t, "2024-05-01 09:30:00", m.Timestamp)

	other, err := Compose("Ravi", "Sector 7", "trapped", "HIGH", now)
	require.NoError(t, err)
	assert.NotEqual(t, m.MessageID, other.MessageID)
}

func TestCompose_Rejects(t *testing.T) {
	now := time.Now()
	for name, args := range map[string][4]string{
		"empty name":     {"", "loc", "text", "LOW"},
		"empty location": {"n", " ", "text", "LOW"},
		"empty text":     {"n", "loc", "", "LOW"},
		"bad priority":   {"n", "loc", "text", "CRITICAL"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Compose(args[0], args[1], args[2], args[3], now)
			assert.Error(t, err)
		})
	}
}

func TestSend(t *testing.T) {
	out := startSink(t)
	m := testMessage("sent-1", dataType.PriorityLow)

	require.NoError(t, Send(out.neighbor().Address(), m, time.Second))
	assert.Equal(t, m, out.next(t, time.Second))

	assert.Error(t, Send(refusedNeighbor(t).Address(), m, time.Second))
}
