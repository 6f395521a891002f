package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calbook/internal/models"
)

// ErrUsernameTaken is returned when registering an existing username.
var ErrUsernameTaken = errors.New("username already taken")

// CreateUser inserts a user together with its preference row, mirroring the
// one-preference-per-user rule.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.IsAdmin, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, updated_at) VALUES (?, ?)`, id, now)
	if err != nil {
		return fmt.Errorf("insert preferences: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	return nil
}

// GetUserByID returns a user row.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByUsername returns a user row by exact username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.getUser(ctx, `WHERE username = ?`, username)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, is_admin, created_at
		FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetPreferences returns the user's preference row, creating it when the
// user predates the preferences table.
func (db *DB) GetPreferences(ctx context.Context, userID int64) (*models.UserPreference, error) {
	var p models.UserPreference
	err := db.QueryRowContext(ctx, `
		SELECT user_id, cat_1, cat_2, cat_3, updated_at
		FROM user_preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Cat1, &p.Cat2, &p.Cat3, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		now := time.Now()
		_, err = db.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_preferences (user_id, updated_at) VALUES (?, ?)`,
			userID, now)
		if err != nil {
			return nil, fmt.Errorf("create preferences: %w", err)
		}
		return &models.UserPreference{UserID: userID, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePreferences overwrites the user's category selection.
func (db *DB) UpdatePreferences(ctx context.Context, p *models.UserPreference) error {
	now := time.Now()
	result, err := db.ExecContext(ctx, `
		UPDATE user_preferences SET cat_1 = ?, cat_2 = ?, cat_3 = ?, updated_at = ?
		WHERE user_id = ?`,
		p.Cat1, p.Cat2, p.Cat3, now, p.UserID,
	)
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

	p.UpdatedAt = now
	return nil
}
