package conflict

import (
	"fmt"
	"time"

	"calbook/internal/models"
)

// DefaultMinSlotDuration is the minimum slot length when the config does not
// override it.
const DefaultMinSlotDuration = 15 * time.Minute

// Decision is the outcome of an advisory conflict check. Reason is a
// human-readable message suitable for returning to the caller verbatim.
type Decision struct {
	OK     bool
	Reason string
}

// Allow returns a positive decision.
func Allow() Decision {
	return Decision{OK: true}
}

// Deny returns a negative decision with the given reason.
func Deny(reason string) Decision {
	return Decision{OK: false, Reason: reason}
}

// Engine holds the tunable booking rules. All checks are pure functions over
// a consistent read of current state; the storage layer re-runs them inside
// the writing transaction and its constraints remain the final arbiter.
type Engine struct {
	minSlotDuration time.Duration
}

// New creates an engine. A non-positive minDuration falls back to
// DefaultMinSlotDuration.
func New(minDuration time.Duration) *Engine {
	if minDuration <= 0 {
		minDuration = DefaultMinSlotDuration
	}
	return &Engine{minSlotDuration: minDuration}
}

// CanCreateSlot checks whether a slot [start, end) may exist in the category
// alongside the given same-category slots. excludeID skips the slot being
// updated in the overlap scan; pass 0 for a brand new slot, in which case a
// start in the past is also rejected.
func (e *Engine) CanCreateSlot(start, end time.Time, excludeID int64, sameCategory []models.TimeSlot, now time.Time) Decision {
	if !start.Before(end) {
		return Deny("Start time must be before end time")
	}
	if end.Sub(start) < e.minSlotDuration {
		return Deny(fmt.Sprintf("Time slot must be at least %d minutes long", int(e.minSlotDuration.Minutes())))
	}
	if excludeID == 0 && start.Before(now) {
		return Deny("Cannot create time slots in the past")
	}
	for i := range sameCategory {
		s := &sameCategory[i]
		if s.ID == excludeID {
			continue
		}
		if s.OverlapsInterval(start, end) {
			return Deny("Time slot overlaps with existing slot in the same category")
		}
	}
	return Allow()
}

// CanBookSlot checks whether the user may book the slot. slotBooking is the
// slot's current booking if any; userBookings are the user's existing
// bookings with their slots joined. The self-overlap check runs across all
// categories.
func (e *Engine) CanBookSlot(userID int64, slot *models.TimeSlot, slotBooking *models.Booking, userBookings []models.Booking, now time.Time) Decision {
	if slot.IsPast(now) {
		return Deny("Time slot is in the past")
	}
	if slotBooking != nil {
		if slotBooking.UserID == userID {
			return Deny("You have already booked this slot")
		}
		return Deny("This slot is already booked by another user")
	}
	for i := range userBookings {
		b := &userBookings[i]
		if b.Slot == nil || b.TimeSlotID == slot.ID {
			continue
		}
		if b.Slot.Overlaps(slot) {
			return Deny("You have a conflicting booking at this time")
		}
	}
	return Allow()
}

// CanCancelBooking checks whether the actor may cancel the booking. Admins
// cancel unconditionally. Owners may cancel only while the slot start has
// not passed; there is no extra buffer before the start.
func (e *Engine) CanCancelBooking(booking *models.Booking, slot *models.TimeSlot, actorID int64, actorIsAdmin bool, now time.Time) Decision {
	if actorIsAdmin {
		return Allow()
	}
	if booking.UserID != actorID {
		return Deny("You can only cancel your own bookings")
	}
	if slot.IsPast(now) {
		return Deny("Cannot cancel a booking for a time slot that has already started")
	}
	return Allow()
}

// CanModifySlot checks a proposed update. Scheduling fields (time, category)
// are frozen once the slot carries a booking.
func (e *Engine) CanModifySlot(slot *models.TimeSlot, booked bool, newCategoryID int64, newStart, newEnd time.Time) Decision {
	if !booked {
		return Allow()
	}
	changed := newCategoryID != slot.CategoryID ||
		!newStart.Equal(slot.StartTime) ||
		!newEnd.Equal(slot.EndTime)
	if changed {
		return Deny("Cannot modify time or category of booked slot")
	}
	return Allow()
}

// CanDeleteSlot checks slot deletion; a booked slot cannot be deleted.
func (e *Engine) CanDeleteSlot(booked bool) Decision {
	if booked {
		return Deny("Cannot delete booked time slot")
	}
	return Allow()
}
