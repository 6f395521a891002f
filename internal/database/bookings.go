package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calbook/internal/models"
)

// BookingFilter narrows ListBookings results.
type BookingFilter struct {
	Date       *time.Time // bookings whose slot starts on this day
	Username   string     // substring match on the booking user
	CategoryID int64
	Limit      int
}

const bookingColumns = `b.id, b.time_slot_id, b.user_id, u.username, b.booked_at,
	s.id, s.category_id, c.name, s.start_time, s.end_time, s.created_by, s.created_at`

const bookingJoins = `
	FROM bookings b
	JOIN users u ON u.id = b.user_id
	JOIN time_slots s ON s.id = b.time_slot_id
	JOIN categories c ON c.id = s.category_id`

func scanBooking(scanner interface{ Scan(...any) error }) (models.Booking, error) {
	var b models.Booking
	var s models.TimeSlot
	err := scanner.Scan(
		&b.ID, &b.TimeSlotID, &b.UserID, &b.Username, &b.BookedAt,
		&s.ID, &s.CategoryID, &s.CategoryName, &s.StartTime, &s.EndTime,
		&s.CreatedBy, &s.CreatedAt,
	)
	if err != nil {
		return b, err
	}
	b.Slot = &s
	return b, nil
}

// CreateBooking books the slot for the user. The overlap rules are
// re-checked inside the writing transaction; the unique index on
// time_slot_id settles concurrent attempts, translating the constraint
// violation into ErrSlotTaken.
func (db *DB) CreateBooking(ctx context.Context, slotID, userID int64, now time.Time) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var start, end time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT start_time, end_time FROM time_slots WHERE id = ?`, slotID,
	).Scan(&start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}

	if start.Before(now) {
		return nil, ErrPastSlot
	}

	// Cross-slot self-overlap: the user may not hold another booking whose
	// slot intersects [start, end), regardless of category.
	var conflicts int64
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings b
		JOIN time_slots s ON s.id = b.time_slot_id
		WHERE b.user_id = ? AND s.id != ? AND s.start_time < ? AND s.end_time > ?`,
		userID, slotID, end, start,
	).Scan(&conflicts)
	if err != nil {
		return nil, fmt.Errorf("check user conflicts: %w", err)
	}
	if conflicts > 0 {
		return nil, ErrUserConflict
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (time_slot_id, user_id, booked_at) VALUES (?, ?, ?)`,
		slotID, userID, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return db.GetBookingByID(ctx, id)
}

// GetBookingByID returns one booking with its slot and user joined.
func (db *DB) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+bookingJoins+` WHERE b.id = ?`, id)

	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookingForSlot returns the booking holding the slot, or ErrNotFound.
func (db *DB) GetBookingForSlot(ctx context.Context, slotID int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+bookingJoins+` WHERE b.time_slot_id = ?`, slotID)

	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetUserBookings returns the user's bookings, newest first. status may be
// "upcoming" or "past" to filter on the slot start relative to now.
func (db *DB) GetUserBookings(ctx context.Context, userID int64, status string, now time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + bookingJoins + ` WHERE b.user_id = ?`
	args := []any{userID}

	switch status {
	case "upcoming":
		query += ` AND s.start_time >= ?`
		args = append(args, now)
	case "past":
		query += ` AND s.start_time < ?`
		args = append(args, now)
	}

	query += ` ORDER BY b.booked_at DESC`

	return db.queryBookings(ctx, query, args...)
}

// ListBookings returns bookings matching the admin filter, newest first.
func (db *DB) ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + bookingJoins + ` WHERE 1=1`
	var args []any

	if filter.Date != nil {
		query += ` AND date(s.start_time) = date(?)`
		args = append(args, *filter.Date)
	}
	if filter.Username != "" {
		query += ` AND u.username LIKE ?`
		args = append(args, "%"+filter.Username+"%")
	}
	if filter.CategoryID > 0 {
		query += ` AND s.category_id = ?`
		args = append(args, filter.CategoryID)
	}

	query += ` ORDER BY b.booked_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return db.queryBookings(ctx, query, args...)
}

// DeleteBooking removes a booking row. The slot becomes available again the
// moment the delete commits.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
