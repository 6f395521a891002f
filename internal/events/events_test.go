package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calbook/internal/models"
)

type captureBroadcaster struct {
	frames [][]byte
}

func (c *captureBroadcaster) Broadcast(frame []byte) {
	c.frames = append(c.frames, frame)
}

func testSlot() *models.TimeSlot {
	start := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	return &models.TimeSlot{
		ID:           5,
		CategoryID:   1,
		CategoryName: models.Cat1,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		CreatedAt:    start.Add(-48 * time.Hour),
	}
}

func TestEventPayloads(t *testing.T) {
	slot := testSlot()

	t.Run("slot_created", func(t *testing.T) {
		e := NewSlotCreated(slot)
		assert.Equal(t, TypeSlotCreated, e.Type)

		data := e.Data.(SlotPayload)
		assert.Equal(t, "2025-06-10", data.Date)
		assert.Equal(t, "10:00", data.StartTime)
		assert.Equal(t, "11:00", data.EndTime)
		assert.Equal(t, models.Cat1, data.Category)
		assert.True(t, data.Available)
	})

	t.Run("slot_deleted", func(t *testing.T) {
		e := NewSlotDeleted(slot, time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC))
		data := e.Data.(SlotPayload)
		assert.Equal(t, TypeSlotDeleted, e.Type)
		assert.NotEmpty(t, data.DeletedAt)
		assert.False(t, data.Available)
	})

	t.Run("booking events carry the acting user", func(t *testing.T) {
		booking := &models.Booking{ID: 9, TimeSlotID: slot.ID, UserID: 3, Username: "alice", BookedAt: time.Now()}

		created := NewBookingCreated(booking, slot)
		data := created.Data.(BookingPayload)
		assert.Equal(t, TypeBookingCreated, created.Type)
		assert.Equal(t, int64(3), data.User.ID)
		assert.Equal(t, "alice", data.User.Username)
		assert.Equal(t, slot.ID, data.TimeSlotID)

		cancelled := NewBookingCancelled(booking, slot)
		assert.Equal(t, TypeBookingCancelled, cancelled.Type)
		assert.Empty(t, cancelled.Data.(BookingPayload).CreatedAt)
	})
}

func TestEvent_Encode(t *testing.T) {
	e := NewSlotCreated(testSlot())
	frame, err := e.Encode()
	require.NoError(t, err)

	var decoded struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, TypeSlotCreated, decoded.Type)
	assert.NotEmpty(t, decoded.Data)
}

func TestPublisher_LocalBroadcast(t *testing.T) {
	local := &captureBroadcaster{}
	logger := zerolog.Nop()
	p := NewPublisher(local, nil, "calendar_updates", &logger)

	p.Publish(context.Background(), NewSlotCreated(testSlot()))
	p.Publish(context.Background(), NewSlotDeleted(testSlot(), time.Now()))

	require.Len(t, local.frames, 2)

	var first Event
	require.NoError(t, json.Unmarshal(local.frames[0], &first))
	assert.Equal(t, TypeSlotCreated, first.Type)
}

func TestPublisher_EncodeFailureSwallowed(t *testing.T) {
	local := &captureBroadcaster{}
	logger := zerolog.Nop()
	p := NewPublisher(local, nil, "calendar_updates", &logger)

	// Channels cannot be marshalled; the publish must not panic or deliver.
	p.Publish(context.Background(), Event{Type: "broken", Data: make(chan int)})
	assert.Empty(t, local.frames)
}
