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

// SlotService manages the slot inventory on behalf of administrators.
type SlotService struct {
	store  Store
	engine *conflict.Engine
	bus    EventPublisher
	logger *zerolog.Logger
}

// NewSlotService wires a slot service.
func NewSlotService(store Store, engine *conflict.Engine, bus EventPublisher, logger *zerolog.Logger) *SlotService {
	return &SlotService{
		store:  store,
		engine: engine,
		bus:    bus,
		logger: logger,
	}
}

// Create adds a slot to the inventory.
func (s *SlotService) Create(ctx context.Context, creatorID, categoryID int64, start, end time.Time) (*models.TimeSlot, error) {
	now := time.Now()

	category, err := s.store.GetCategoryByID(ctx, categoryID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, denied("Invalid category")
	}
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetSlotsByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	if d := s.engine.CanCreateSlot(start, end, 0, existing, now); !d.OK {
		metrics.IncDomainConflict("create_slot")
		return nil, denied(d.Reason)
	}

	slot := &models.TimeSlot{
		CategoryID:   categoryID,
		CategoryName: category.Name,
		StartTime:    start,
		EndTime:      end,
		CreatedBy:    creatorID,
	}
	if err := s.store.CreateSlot(ctx, slot); err != nil {
		return nil, s.translateSlotError(err, "create_slot")
	}

	metrics.IncSlotCreated()
	s.logger.Info().
		Int64("slot_id", slot.ID).
		Int64("category_id", categoryID).
		Time("start", start).
		Msg("slot created")

	s.bus.Publish(ctx, events.NewSlotCreated(slot))
	metrics.IncEventPublished(events.TypeSlotCreated)

	return slot, nil
}

// Update rewrites a slot. Scheduling fields are frozen once booked.
func (s *SlotService) Update(ctx context.Context, slotID, categoryID int64, start, end time.Time) (*models.TimeSlot, error) {
	slot, err := s.store.GetSlotByID(ctx, slotID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	category, err := s.store.GetCategoryByID(ctx, categoryID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, denied("Invalid category")
	}
	if err != nil {
		return nil, err
	}

	booked := true
	if _, err := s.store.GetBookingForSlot(ctx, slotID); errors.Is(err, database.ErrNotFound) {
		booked = false
	} else if err != nil {
		return nil, err
	}

	if d := s.engine.CanModifySlot(slot, booked, categoryID, start, end); !d.OK {
		metrics.IncDomainConflict("update_slot")
		return nil, denied(d.Reason)
	}

	sameCategory, err := s.store.GetSlotsByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if d := s.engine.CanCreateSlot(start, end, slotID, sameCategory, time.Now()); !d.OK {
		metrics.IncDomainConflict("update_slot")
		return nil, denied(d.Reason)
	}

	slot.CategoryID = categoryID
	slot.CategoryName = category.Name
	slot.StartTime = start
	slot.EndTime = end
	if err := s.store.UpdateSlot(ctx, slot); err != nil {
		return nil, s.translateSlotError(err, "update_slot")
	}

	s.logger.Info().Int64("slot_id", slotID).Msg("slot updated")
	return slot, nil
}

// Delete removes an unbooked slot and announces its disappearance.
func (s *SlotService) Delete(ctx context.Context, slotID int64) error {
	slot, err := s.store.GetSlotByID(ctx, slotID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	booked := true
	if _, err := s.store.GetBookingForSlot(ctx, slotID); errors.Is(err, database.ErrNotFound) {
		booked = false
	} else if err != nil {
		return err
	}

	if d := s.engine.CanDeleteSlot(booked); !d.OK {
		metrics.IncDomainConflict("delete_slot")
		return denied(d.Reason)
	}

	deletedAt := time.Now()
	if err := s.store.DeleteSlot(ctx, slotID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return s.translateSlotError(err, "delete_slot")
	}

	metrics.IncSlotDeleted()
	s.logger.Info().Int64("slot_id", slotID).Msg("slot deleted")

	s.bus.Publish(ctx, events.NewSlotDeleted(slot, deletedAt))
	metrics.IncEventPublished(events.TypeSlotDeleted)

	return nil
}

// translateSlotError maps storage sentinels racing past the advisory check
// onto the canonical domain reasons.
func (s *SlotService) translateSlotError(err error, operation string) error {
	switch {
	case errors.Is(err, database.ErrOverlap):
		metrics.IncDomainConflict(operation)
		return denied("Time slot overlaps with existing slot in the same category")
	case errors.Is(err, database.ErrSlotBooked):
		metrics.IncDomainConflict(operation)
		if operation == "delete_slot" {
			return denied("Cannot delete booked time slot")
		}
		return denied("Cannot modify time or category of booked slot")
	default:
		return err
	}
}
