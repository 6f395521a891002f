package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calbook/internal/models"
)

// SlotFilter narrows ListSlots results. Zero values mean "no filter".
type SlotFilter struct {
	Date          *time.Time // slots starting on this calendar day
	StartDate     *time.Time // inclusive range start (day granularity)
	EndDate       *time.Time // inclusive range end (day granularity)
	CategoryID    int64
	CategoryNames []string
	AvailableOnly bool
	BookedOnly    bool
}

// SlotWithBooking pairs a slot with its booking, if any.
type SlotWithBooking struct {
	Slot    models.TimeSlot
	Booking *models.Booking
}

const slotColumns = `s.id, s.category_id, c.name, s.start_time, s.end_time, s.created_by, s.created_at`

func scanSlot(scanner interface{ Scan(...any) error }) (models.TimeSlot, error) {
	var s models.TimeSlot
	err := scanner.Scan(&s.ID, &s.CategoryID, &s.CategoryName, &s.StartTime, &s.EndTime, &s.CreatedBy, &s.CreatedAt)
	return s, err
}

// GetSlotByID returns one slot with its category name resolved.
func (db *DB) GetSlotByID(ctx context.Context, id int64) (*models.TimeSlot, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots s
		JOIN categories c ON c.id = s.category_id
		WHERE s.id = ?`, id)

	s, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSlotsByCategory returns all slots in a category, for advisory overlap
// scans.
func (db *DB) GetSlotsByCategory(ctx context.Context, categoryID int64) ([]models.TimeSlot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots s
		JOIN categories c ON c.id = s.category_id
		WHERE s.category_id = ?
		ORDER BY s.start_time`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []models.TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// CreateSlot inserts a slot after re-checking the same-category overlap rule
// inside the writing transaction.
func (db *DB) CreateSlot(ctx context.Context, slot *models.TimeSlot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkCategoryOverlap(ctx, tx, slot.CategoryID, slot.StartTime, slot.EndTime, 0); err != nil {
		return err
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO time_slots (category_id, start_time, end_time, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		slot.CategoryID, slot.StartTime, slot.EndTime, slot.CreatedBy, now,
	)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slot.ID = id
	slot.CreatedAt = now
	return nil
}

// UpdateSlot rewrites a slot's scheduling fields. Fails with ErrSlotBooked
// when the slot carries a booking and the change touches time or category,
// and with ErrOverlap when the new interval collides in its category.
func (db *DB) UpdateSlot(ctx context.Context, slot *models.TimeSlot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var categoryID int64
	var start, end time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT category_id, start_time, end_time FROM time_slots WHERE id = ?`,
		slot.ID,
	).Scan(&categoryID, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load slot: %w", err)
	}

	booked, err := slotBooked(ctx, tx, slot.ID)
	if err != nil {
		return err
	}

	schedulingChanged := categoryID != slot.CategoryID ||
		!start.Equal(slot.StartTime) || !end.Equal(slot.EndTime)
	if booked && schedulingChanged {
		return ErrSlotBooked
	}

	if err := checkCategoryOverlap(ctx, tx, slot.CategoryID, slot.StartTime, slot.EndTime, slot.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE time_slots SET category_id = ?, start_time = ?, end_time = ? WHERE id = ?`,
		slot.CategoryID, slot.StartTime, slot.EndTime, slot.ID,
	)
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}

	return tx.Commit()
}

// DeleteSlot removes an unbooked slot. Returns ErrSlotBooked if a booking
// exists and ErrNotFound if the slot does not.
func (db *DB) DeleteSlot(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	booked, err := slotBooked(ctx, tx, id)
	if err != nil {
		return err
	}
	if booked {
		return ErrSlotBooked
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM time_slots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// ListSlots returns slots matching the filter, ordered by start time, each
// with its booking joined when present.
func (db *DB) ListSlots(ctx context.Context, filter SlotFilter) ([]SlotWithBooking, error) {
	query := `
		SELECT ` + slotColumns + `,
		       b.id, b.user_id, u.username, b.booked_at
		FROM time_slots s
		JOIN categories c ON c.id = s.category_id
		LEFT JOIN bookings b ON b.time_slot_id = s.id
		LEFT JOIN users u ON u.id = b.user_id
		WHERE 1=1`
	var args []any

	if filter.Date != nil {
		query += ` AND date(s.start_time) = date(?)`
		args = append(args, *filter.Date)
	}
	if filter.StartDate != nil && filter.EndDate != nil {
		query += ` AND date(s.start_time) >= date(?) AND date(s.start_time) <= date(?)`
		args = append(args, *filter.StartDate, *filter.EndDate)
	}
	if filter.CategoryID > 0 {
		query += ` AND s.category_id = ?`
		args = append(args, filter.CategoryID)
	}
	if len(filter.CategoryNames) > 0 {
		query += ` AND c.name IN (?` + repeatPlaceholder(len(filter.CategoryNames)-1) + `)`
		for _, name := range filter.CategoryNames {
			args = append(args, name)
		}
	}
	if filter.AvailableOnly {
		query += ` AND b.id IS NULL`
	}
	if filter.BookedOnly {
		query += ` AND b.id IS NOT NULL`
	}

	query += ` ORDER BY s.start_time`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotWithBooking
	for rows.Next() {
		var s models.TimeSlot
		var bookingID, bookingUserID sql.NullInt64
		var bookingUsername sql.NullString
		var bookedAt sql.NullTime
		err := rows.Scan(
			&s.ID, &s.CategoryID, &s.CategoryName, &s.StartTime, &s.EndTime,
			&s.CreatedBy, &s.CreatedAt,
			&bookingID, &bookingUserID, &bookingUsername, &bookedAt,
		)
		if err != nil {
			return nil, err
		}

		entry := SlotWithBooking{Slot: s}
		if bookingID.Valid {
			entry.Booking = &models.Booking{
				ID:         bookingID.Int64,
				TimeSlotID: s.ID,
				UserID:     bookingUserID.Int64,
				Username:   bookingUsername.String,
				BookedAt:   bookedAt.Time,
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// checkCategoryOverlap fails with ErrOverlap when another slot in the
// category intersects [start, end). Half-open comparison keeps back-to-back
// slots legal.
func checkCategoryOverlap(ctx context.Context, tx *sql.Tx, categoryID int64, start, end time.Time, excludeID int64) error {
	var count int64
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM time_slots
		WHERE category_id = ? AND id != ? AND start_time < ? AND end_time > ?`,
		categoryID, excludeID, end, start,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if count > 0 {
		return ErrOverlap
	}
	return nil
}

// slotBooked reports whether a booking row exists for the slot.
func slotBooked(ctx context.Context, tx *sql.Tx, slotID int64) (bool, error) {
	var count int64
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE time_slot_id = ?`, slotID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check booking: %w", err)
	}
	return count > 0, nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
