package models

import "time"

// Category is one of the fixed booking categories. The set is seeded at
// startup and never changes afterwards.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Fixed category names.
const (
	Cat1 = "Cat 1"
	Cat2 = "Cat 2"
	Cat3 = "Cat 3"
)

// CategoryNames returns the fixed category set in seed order.
func CategoryNames() []string {
	return []string{Cat1, Cat2, Cat3}
}

// User is an authenticated principal. PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserPreference stores which categories a user wants highlighted.
// One row per user, created together with the user.
type UserPreference struct {
	UserID    int64     `json:"user_id"`
	Cat1      bool      `json:"cat_1"`
	Cat2      bool      `json:"cat_2"`
	Cat3      bool      `json:"cat_3"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SelectedCategories returns the names of the enabled categories.
func (p *UserPreference) SelectedCategories() []string {
	var names []string
	if p.Cat1 {
		names = append(names, Cat1)
	}
	if p.Cat2 {
		names = append(names, Cat2)
	}
	if p.Cat3 {
		names = append(names, Cat3)
	}
	return names
}

// TimeSlot is a bookable [StartTime, EndTime) window in a category.
// Availability is derived from booking presence, not stored.
type TimeSlot struct {
	ID           int64     `json:"id"`
	CategoryID   int64     `json:"category"`
	CategoryName string    `json:"category_name,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// Duration returns the slot length.
func (s *TimeSlot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// IsPast reports whether the slot has already started at the given instant.
func (s *TimeSlot) IsPast(now time.Time) bool {
	return s.StartTime.Before(now)
}

// Overlaps checks if two slots share at least one instant.
// Half-open [start, end) semantics: back-to-back slots do not overlap.
func (s *TimeSlot) Overlaps(other *TimeSlot) bool {
	return s.StartTime.Before(other.EndTime) && other.StartTime.Before(s.EndTime)
}

// OverlapsInterval checks the slot against a raw [start, end) interval.
func (s *TimeSlot) OverlapsInterval(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

// Booking ties exactly one user to exactly one time slot. The unique
// constraint on TimeSlotID in storage is what makes a slot "booked".
type Booking struct {
	ID         int64     `json:"id"`
	TimeSlotID int64     `json:"time_slot_id"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	BookedAt   time.Time `json:"booked_at"`

	// Slot is the joined slot row when the query asked for it.
	Slot *TimeSlot `json:"time_slot,omitempty"`
}
