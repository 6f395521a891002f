package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"calbook/internal/models"
)

var day = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func slot(id, categoryID int64, start, end time.Time) models.TimeSlot {
	return models.TimeSlot{ID: id, CategoryID: categoryID, StartTime: start, EndTime: end}
}

func TestCanCreateSlot(t *testing.T) {
	e := New(0)
	now := at(8, 0)
	existing := []models.TimeSlot{slot(1, 1, at(10, 0), at(11, 0))}

	tests := []struct {
		name       string
		start, end time.Time
		excludeID  int64
		wantOK     bool
		wantReason string
	}{
		{
			name:  "no overlap after existing",
			start: at(11, 0), end: at(12, 0),
			wantOK: true,
		},
		{
			name:  "no overlap before existing",
			start: at(9, 0), end: at(10, 0),
			wantOK: true,
		},
		{
			name:  "overlapping same category",
			start: at(10, 30), end: at(11, 30),
			wantOK:     false,
			wantReason: "Time slot overlaps with existing slot in the same category",
		},
		{
			name:  "start after end",
			start: at(12, 0), end: at(11, 0),
			wantOK:     false,
			wantReason: "Start time must be before end time",
		},
		{
			name:  "start equals end",
			start: at(12, 0), end: at(12, 0),
			wantOK:     false,
			wantReason: "Start time must be before end time",
		},
		{
			name:  "too short",
			start: at(12, 0), end: at(12, 10),
			wantOK:     false,
			wantReason: "Time slot must be at least 15 minutes long",
		},
		{
			name:  "in the past",
			start: at(6, 0), end: at(7, 0),
			wantOK:     false,
			wantReason: "Cannot create time slots in the past",
		},
		{
			name:  "update may keep its own interval",
			start: at(10, 0), end: at(11, 0),
			excludeID: 1,
			wantOK:    true,
		},
		{
			name:  "update past slot allowed",
			start: at(6, 0), end: at(7, 0),
			excludeID: 1,
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.CanCreateSlot(tt.start, tt.end, tt.excludeID, existing, now)
			assert.Equal(t, tt.wantOK, d.OK)
			if !tt.wantOK {
				assert.Equal(t, tt.wantReason, d.Reason)
			}
		})
	}
}

func TestCanCreateSlot_ExactMinDuration(t *testing.T) {
	e := New(15 * time.Minute)
	d := e.CanCreateSlot(at(12, 0), at(12, 15), 0, nil, at(8, 0))
	assert.True(t, d.OK)
}

func TestCanBookSlot(t *testing.T) {
	e := New(0)
	now := at(8, 0)
	target := slot(5, 2, at(10, 30), at(11, 30))

	withSlot := func(b models.Booking, s models.TimeSlot) models.Booking {
		b.Slot = &s
		return b
	}

	t.Run("open future slot", func(t *testing.T) {
		d := e.CanBookSlot(1, &target, nil, nil, now)
		assert.True(t, d.OK)
	})

	t.Run("past slot", func(t *testing.T) {
		d := e.CanBookSlot(1, &target, nil, nil, at(11, 0))
		assert.False(t, d.OK)
		assert.Equal(t, "Time slot is in the past", d.Reason)
	})

	t.Run("booked by someone else", func(t *testing.T) {
		d := e.CanBookSlot(1, &target, &models.Booking{UserID: 2, TimeSlotID: 5}, nil, now)
		assert.False(t, d.OK)
		assert.Equal(t, "This slot is already booked by another user", d.Reason)
	})

	t.Run("booked by the requester", func(t *testing.T) {
		d := e.CanBookSlot(1, &target, &models.Booking{UserID: 1, TimeSlotID: 5}, nil, now)
		assert.False(t, d.OK)
		assert.Equal(t, "You have already booked this slot", d.Reason)
	})

	t.Run("self overlap across categories", func(t *testing.T) {
		// User already holds 10:00-11:00 in Cat 1; target is 10:30-11:30 in Cat 2.
		mine := withSlot(models.Booking{ID: 7, UserID: 1, TimeSlotID: 3}, slot(3, 1, at(10, 0), at(11, 0)))
		d := e.CanBookSlot(1, &target, nil, []models.Booking{mine}, now)
		assert.False(t, d.OK)
		assert.Equal(t, "You have a conflicting booking at this time", d.Reason)
	})

	t.Run("back to back booking allowed", func(t *testing.T) {
		mine := withSlot(models.Booking{ID: 7, UserID: 1, TimeSlotID: 3}, slot(3, 1, at(9, 30), at(10, 30)))
		d := e.CanBookSlot(1, &target, nil, []models.Booking{mine}, now)
		assert.True(t, d.OK)
	})

	t.Run("own booking of the same slot is skipped in scan", func(t *testing.T) {
		mine := withSlot(models.Booking{ID: 7, UserID: 1, TimeSlotID: 5}, target)
		d := e.CanBookSlot(1, &target, nil, []models.Booking{mine}, now)
		assert.True(t, d.OK)
	})
}

func TestCanCancelBooking(t *testing.T) {
	e := New(0)
	future := slot(5, 1, at(10, 0), at(11, 0))
	booking := &models.Booking{ID: 9, UserID: 1, TimeSlotID: 5}

	t.Run("owner before start", func(t *testing.T) {
		d := e.CanCancelBooking(booking, &future, 1, false, at(9, 59))
		assert.True(t, d.OK)
	})

	t.Run("owner after start", func(t *testing.T) {
		d := e.CanCancelBooking(booking, &future, 1, false, at(10, 1))
		assert.False(t, d.OK)
		assert.Equal(t, "Cannot cancel a booking for a time slot that has already started", d.Reason)
	})

	t.Run("not the owner", func(t *testing.T) {
		d := e.CanCancelBooking(booking, &future, 2, false, at(9, 0))
		assert.False(t, d.OK)
	})

	t.Run("admin bypasses the cutoff", func(t *testing.T) {
		d := e.CanCancelBooking(booking, &future, 2, true, at(12, 0))
		assert.True(t, d.OK)
	})
}

func TestCanModifySlot(t *testing.T) {
	e := New(0)
	s := slot(5, 1, at(10, 0), at(11, 0))

	t.Run("unbooked slot freely modifiable", func(t *testing.T) {
		d := e.CanModifySlot(&s, false, 2, at(12, 0), at(13, 0))
		assert.True(t, d.OK)
	})

	t.Run("booked slot time frozen", func(t *testing.T) {
		d := e.CanModifySlot(&s, true, 1, at(10, 30), at(11, 30))
		assert.False(t, d.OK)
		assert.Equal(t, "Cannot modify time or category of booked slot", d.Reason)
	})

	t.Run("booked slot category frozen", func(t *testing.T) {
		d := e.CanModifySlot(&s, true, 2, s.StartTime, s.EndTime)
		assert.False(t, d.OK)
	})

	t.Run("booked slot unchanged fields pass", func(t *testing.T) {
		d := e.CanModifySlot(&s, true, 1, s.StartTime, s.EndTime)
		assert.True(t, d.OK)
	})
}

func TestCanDeleteSlot(t *testing.T) {
	e := New(0)

	assert.True(t, e.CanDeleteSlot(false).OK)

	d := e.CanDeleteSlot(true)
	assert.False(t, d.OK)
	assert.Equal(t, "Cannot delete booked time slot", d.Reason)
}
