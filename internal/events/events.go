package events

import (
	"encoding/json"
	"time"

	"calbook/internal/models"
)

// Event type discriminants carried on the wire.
const (
	TypeSlotCreated      = "slot_created"
	TypeSlotDeleted      = "slot_deleted"
	TypeBookingCreated   = "booking_created"
	TypeBookingCancelled = "booking_cancelled"
)

// Event is one calendar update fanned out to every subscriber.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Encode renders the event as a wire frame.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// SlotPayload is the externally visible snapshot of a time slot.
type SlotPayload struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`   // HH:MM
	Category  string `json:"category"`
	Available bool   `json:"is_available,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	DeletedAt string `json:"deleted_at,omitempty"`
}

// UserPayload identifies the acting user by public fields only.
type UserPayload struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// BookingPayload is the snapshot carried by booking events.
type BookingPayload struct {
	ID         int64       `json:"id"`
	TimeSlotID int64       `json:"timeslot_id"`
	User       UserPayload `json:"user"`
	TimeSlot   SlotPayload `json:"timeslot"`
	CreatedAt  string      `json:"created_at,omitempty"`
}

func snapshotSlot(slot *models.TimeSlot) SlotPayload {
	return SlotPayload{
		ID:        slot.ID,
		Date:      slot.StartTime.Format("2006-01-02"),
		StartTime: slot.StartTime.Format("15:04"),
		EndTime:   slot.EndTime.Format("15:04"),
		Category:  slot.CategoryName,
	}
}

// NewSlotCreated builds the slot_created event. A fresh slot is always
// available.
func NewSlotCreated(slot *models.TimeSlot) Event {
	data := snapshotSlot(slot)
	data.Available = true
	data.CreatedAt = slot.CreatedAt.Format(time.RFC3339)
	return Event{Type: TypeSlotCreated, Data: data}
}

// NewSlotDeleted builds the slot_deleted event from a snapshot taken before
// the delete committed.
func NewSlotDeleted(slot *models.TimeSlot, deletedAt time.Time) Event {
	data := snapshotSlot(slot)
	data.DeletedAt = deletedAt.Format(time.RFC3339)
	return Event{Type: TypeSlotDeleted, Data: data}
}

// NewBookingCreated builds the booking_created event.
func NewBookingCreated(booking *models.Booking, slot *models.TimeSlot) Event {
	return Event{Type: TypeBookingCreated, Data: BookingPayload{
		ID:         booking.ID,
		TimeSlotID: slot.ID,
		User:       UserPayload{ID: booking.UserID, Username: booking.Username},
		TimeSlot:   snapshotSlot(slot),
		CreatedAt:  booking.BookedAt.Format(time.RFC3339),
	}}
}

// NewBookingCancelled builds the booking_cancelled event from a snapshot
// taken before the booking row went away.
func NewBookingCancelled(booking *models.Booking, slot *models.TimeSlot) Event {
	return Event{Type: TypeBookingCancelled, Data: BookingPayload{
		ID:         booking.ID,
		TimeSlotID: slot.ID,
		User:       UserPayload{ID: booking.UserID, Username: booking.Username},
		TimeSlot:   snapshotSlot(slot),
	}}
}
