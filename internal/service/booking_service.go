package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"calbook/internal/conflict"
	"calbook/internal/database"
	"calbook/internal/events"
	"calbook/internal/metrics"
	"calbook/internal/models"
)

// BookingService creates and cancels bookings: advisory conflict check,
// transactional write with the storage constraints as the final arbiter,
// then post-commit fan-out.
type BookingService struct {
	store  Store
	engine *conflict.Engine
	bus    EventPublisher
	logger *zerolog.Logger
}

// NewBookingService wires a booking service.
func NewBookingService(store Store, engine *conflict.Engine, bus EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		store:  store,
		engine: engine,
		bus:    bus,
		logger: logger,
	}
}

// Create books the slot for the user. Domain denials come back as
// *DomainError with the denial reason.
func (s *BookingService) Create(ctx context.Context, userID, slotID int64) (*models.Booking, error) {
	now := time.Now()

	slot, err := s.store.GetSlotByID(ctx, slotID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	slotBooking, err := s.store.GetBookingForSlot(ctx, slotID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	userBookings, err := s.store.GetUserBookings(ctx, userID, "", now)
	if err != nil {
		return nil, err
	}

	// Advisory pre-check for a precise denial reason; the storage layer
	// re-checks inside the writing transaction.
	if d := s.engine.CanBookSlot(userID, slot, slotBooking, userBookings, now); !d.OK {
		metrics.IncDomainConflict("book")
		return nil, denied(d.Reason)
	}

	booking, err := s.store.CreateBooking(ctx, slotID, userID, now)
	if err != nil {
		return nil, s.translateBookingError(err)
	}

	metrics.IncBookingCreated()
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("slot_id", slotID).
		Int64("user_id", userID).
		Msg("booking created")

	s.bus.Publish(ctx, events.NewBookingCreated(booking, booking.Slot))
	metrics.IncEventPublished(events.TypeBookingCreated)

	return booking, nil
}

// Cancel deletes a booking. Regular users may only cancel their own
// bookings before the slot starts; a non-owner gets ErrNotFound so the
// response does not confirm the booking exists. Admins cancel anything.
func (s *BookingService) Cancel(ctx context.Context, bookingID, actorID int64, actorIsAdmin bool) error {
	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if !actorIsAdmin && booking.UserID != actorID {
		return ErrNotFound
	}

	if d := s.engine.CanCancelBooking(booking, booking.Slot, actorID, actorIsAdmin, time.Now()); !d.OK {
		metrics.IncDomainConflict("cancel")
		return denied(d.Reason)
	}

	// Snapshot for the event before the row goes away.
	snapshot := *booking

	if err := s.store.DeleteBooking(ctx, bookingID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	actor := "user"
	if actorIsAdmin {
		actor = "admin"
	}
	metrics.IncBookingCancelled(actor)
	s.logger.Info().
		Int64("booking_id", bookingID).
		Int64("actor_id", actorID).
		Bool("admin", actorIsAdmin).
		Msg("booking cancelled")

	s.bus.Publish(ctx, events.NewBookingCancelled(&snapshot, snapshot.Slot))
	metrics.IncEventPublished(events.TypeBookingCancelled)

	return nil
}

// translateBookingError maps storage sentinels from the transactional write
// onto the same domain reasons the advisory check would have produced, so a
// lost race never surfaces as a raw storage error.
func (s *BookingService) translateBookingError(err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, database.ErrSlotTaken):
		metrics.IncDomainConflict("book")
		return denied("This slot is already booked by another user")
	case errors.Is(err, database.ErrUserConflict):
		metrics.IncDomainConflict("book")
		return denied("You have a conflicting booking at this time")
	case errors.Is(err, database.ErrPastSlot):
		metrics.IncDomainConflict("book")
		return denied("Time slot is in the past")
	default:
		return err
	}
}
