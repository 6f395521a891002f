package service

import (
	"context"
	"errors"
	"time"

	"calbook/internal/events"
	"calbook/internal/models"
)

// ErrNotFound is returned when the target entity does not exist, or when
// its existence must be concealed from the caller.
var ErrNotFound = errors.New("not found")

// DomainError is a booking-rule denial. Reason is safe to return to the
// caller verbatim.
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string {
	return e.Reason
}

// denied wraps a conflict reason as a DomainError.
func denied(reason string) error {
	return &DomainError{Reason: reason}
}

// AsDomainError extracts a DomainError from err, if present.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Store is the storage surface the services mutate through. *database.DB
// implements it; tests substitute a mock.
type Store interface {
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)

	GetSlotByID(ctx context.Context, id int64) (*models.TimeSlot, error)
	GetSlotsByCategory(ctx context.Context, categoryID int64) ([]models.TimeSlot, error)
	CreateSlot(ctx context.Context, slot *models.TimeSlot) error
	UpdateSlot(ctx context.Context, slot *models.TimeSlot) error
	DeleteSlot(ctx context.Context, id int64) error

	CreateBooking(ctx context.Context, slotID, userID int64, now time.Time) (*models.Booking, error)
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingForSlot(ctx context.Context, slotID int64) (*models.Booking, error)
	GetUserBookings(ctx context.Context, userID int64, status string, now time.Time) ([]models.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
}

// EventPublisher fans committed changes out to subscribers, best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}
