package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calbook/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestUser(t *testing.T, db *DB, username string, admin bool) *models.User {
	t.Helper()
	u := &models.User{Username: username, PasswordHash: "x", IsAdmin: admin}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func newTestSlot(t *testing.T, db *DB, categoryID, createdBy int64, start, end time.Time) *models.TimeSlot {
	t.Helper()
	s := &models.TimeSlot{CategoryID: categoryID, StartTime: start, EndTime: end, CreatedBy: createdBy}
	require.NoError(t, db.CreateSlot(context.Background(), s))
	return s
}

func TestSeedCategories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	categories, err := db.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 3)
	assert.Equal(t, models.Cat1, categories[0].Name)

	// Seeding again must not duplicate.
	require.NoError(t, db.SeedCategories(ctx))
	categories, err = db.GetCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 3)
}

func TestCreateSlot_OverlapRules(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := newTestUser(t, db, "admin", true)

	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	newTestSlot(t, db, 1, admin.ID, base, base.Add(time.Hour))

	t.Run("overlap in same category rejected", func(t *testing.T) {
		s := &models.TimeSlot{
			CategoryID: 1,
			StartTime:  base.Add(30 * time.Minute),
			EndTime:    base.Add(90 * time.Minute),
			CreatedBy:  admin.ID,
		}
		assert.ErrorIs(t, db.CreateSlot(ctx, s), ErrOverlap)
	})

	t.Run("same interval in another category allowed", func(t *testing.T) {
		s := &models.TimeSlot{
			CategoryID: 2,
			StartTime:  base.Add(30 * time.Minute),
			EndTime:    base.Add(90 * time.Minute),
			CreatedBy:  admin.ID,
		}
		assert.NoError(t, db.CreateSlot(ctx, s))
	})

	t.Run("back to back slot allowed", func(t *testing.T) {
		s := &models.TimeSlot{
			CategoryID: 1,
			StartTime:  base.Add(time.Hour),
			EndTime:    base.Add(2 * time.Hour),
			CreatedBy:  admin.ID,
		}
		assert.NoError(t, db.CreateSlot(ctx, s))
	})
}

func TestUpdateAndDeleteSlot_BookedFrozen(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := newTestUser(t, db, "admin", true)
	user := newTestUser(t, db, "alice", false)

	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	slot := newTestSlot(t, db, 1, admin.ID, base, base.Add(time.Hour))

	_, err := db.CreateBooking(ctx, slot.ID, user.ID, time.Now())
	require.NoError(t, err)

	t.Run("scheduling change on booked slot rejected", func(t *testing.T) {
		updated := *slot
		updated.StartTime = base.Add(30 * time.Minute)
		updated.EndTime = base.Add(90 * time.Minute)
		assert.ErrorIs(t, db.UpdateSlot(ctx, &updated), ErrSlotBooked)
	})

	t.Run("delete booked slot rejected", func(t *testing.T) {
		assert.ErrorIs(t, db.DeleteSlot(ctx, slot.ID), ErrSlotBooked)
	})

	t.Run("unchanged update on booked slot passes", func(t *testing.T) {
		loaded, err := db.GetSlotByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.NoError(t, db.UpdateSlot(ctx, loaded))
	})

	t.Run("unbooked slot can move and go away", func(t *testing.T) {
		free := newTestSlot(t, db, 2, admin.ID, base, base.Add(time.Hour))
		free.StartTime = base.Add(2 * time.Hour)
		free.EndTime = base.Add(3 * time.Hour)
		require.NoError(t, db.UpdateSlot(ctx, free))
		require.NoError(t, db.DeleteSlot(ctx, free.ID))

		_, err := db.GetSlotByID(ctx, free.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateBooking_Rules(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := newTestUser(t, db, "admin", true)
	alice := newTestUser(t, db, "alice", false)
	bob := newTestUser(t, db, "bob", false)

	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	slot := newTestSlot(t, db, 1, admin.ID, base, base.Add(time.Hour))

	t.Run("happy path", func(t *testing.T) {
		b, err := db.CreateBooking(ctx, slot.ID, alice.ID, time.Now())
		require.NoError(t, err)
		assert.Equal(t, slot.ID, b.TimeSlotID)
		assert.Equal(t, "alice", b.Username)
		require.NotNil(t, b.Slot)
		assert.Equal(t, models.Cat1, b.Slot.CategoryName)
	})

	t.Run("double booking rejected", func(t *testing.T) {
		_, err := db.CreateBooking(ctx, slot.ID, bob.ID, time.Now())
		assert.ErrorIs(t, err, ErrSlotTaken)
	})

	t.Run("cross category self overlap rejected", func(t *testing.T) {
		other := newTestSlot(t, db, 2, admin.ID, base.Add(30*time.Minute), base.Add(90*time.Minute))
		_, err := db.CreateBooking(ctx, other.ID, alice.ID, time.Now())
		assert.ErrorIs(t, err, ErrUserConflict)

		// Same interval is fine for a user without conflicts.
		_, err = db.CreateBooking(ctx, other.ID, bob.ID, time.Now())
		assert.NoError(t, err)
	})

	t.Run("missing slot", func(t *testing.T) {
		_, err := db.CreateBooking(ctx, 99999, alice.ID, time.Now())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("past slot rejected", func(t *testing.T) {
		past := &models.TimeSlot{
			CategoryID: 3,
			StartTime:  base,
			EndTime:    base.Add(time.Hour),
			CreatedBy:  admin.ID,
		}
		require.NoError(t, db.CreateSlot(ctx, past))
		_, err := db.CreateBooking(ctx, past.ID, alice.ID, base.Add(time.Minute))
		assert.ErrorIs(t, err, ErrPastSlot)
	})
}

func TestDeleteBooking_FreesSlot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := newTestUser(t, db, "admin", true)
	alice := newTestUser(t, db, "alice", false)
	bob := newTestUser(t, db, "bob", false)

	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	slot := newTestSlot(t, db, 1, admin.ID, base, base.Add(time.Hour))

	b, err := db.CreateBooking(ctx, slot.ID, alice.ID, time.Now())
	require.NoError(t, err)

	require.NoError(t, db.DeleteBooking(ctx, b.ID))
	assert.ErrorIs(t, db.DeleteBooking(ctx, b.ID), ErrNotFound)

	// Slot is immediately bookable by anyone eligible.
	_, err = db.CreateBooking(ctx, slot.ID, bob.ID, time.Now())
	assert.NoError(t, err)
}

func TestCreateBooking_ConcurrentSingleWinner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := newTestUser(t, db, "admin", true)

	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	slot := newTestSlot(t, db, 1, admin.ID, base, base.Add(time.Hour))

	const attempts = 8
	users := make([]*models.User, attempts)
	for i := range users {
		users[i] = newTestUser(t, db, "user"+string(rune('a'+i)), false)
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = db.CreateBooking(ctx, slot.ID, users[i].ID, time.Now())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			// Losers get the domain sentinel, never a raw storage error.
			assert.ErrorIs(t, err, ErrSlotTaken)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestListSlots_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := newTestUser(t, db, "admin", true)
	alice := newTestUser(t, db, "alice", false)

	day1 := time.Now().Add(24 * time.Hour).Truncate(24 * time.Hour).Add(10 * time.Hour)
	day2 := day1.Add(24 * time.Hour)

	s1 := newTestSlot(t, db, 1, admin.ID, day1, day1.Add(time.Hour))
	newTestSlot(t, db, 2, admin.ID, day1.Add(2*time.Hour), day1.Add(3*time.Hour))
	newTestSlot(t, db, 1, admin.ID, day2, day2.Add(time.Hour))

	_, err := db.CreateBooking(ctx, s1.ID, alice.ID, time.Now())
	require.NoError(t, err)

	t.Run("by date", func(t *testing.T) {
		got, err := db.ListSlots(ctx, SlotFilter{Date: &day1})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by range", func(t *testing.T) {
		got, err := db.ListSlots(ctx, SlotFilter{StartDate: &day1, EndDate: &day2})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("by category id", func(t *testing.T) {
		got, err := db.ListSlots(ctx, SlotFilter{CategoryID: 2})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("by category names", func(t *testing.T) {
		got, err := db.ListSlots(ctx, SlotFilter{CategoryNames: []string{models.Cat1}})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("available only", func(t *testing.T) {
		got, err := db.ListSlots(ctx, SlotFilter{AvailableOnly: true})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		for _, e := range got {
			assert.Nil(t, e.Booking)
		}
	})

	t.Run("booked only carries the booking", func(t *testing.T) {
		got, err := db.ListSlots(ctx, SlotFilter{BookedOnly: true})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.NotNil(t, got[0].Booking)
		assert.Equal(t, "alice", got[0].Booking.Username)
	})
}

func TestUserAndAdminBookingQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := newTestUser(t, db, "admin", true)
	alice := newTestUser(t, db, "alice", false)

	now := time.Now()
	future := now.Add(24 * time.Hour).Truncate(time.Hour)

	s1 := newTestSlot(t, db, 1, admin.ID, future, future.Add(time.Hour))
	s2 := newTestSlot(t, db, 2, admin.ID, future.Add(2*time.Hour), future.Add(3*time.Hour))

	_, err := db.CreateBooking(ctx, s1.ID, alice.ID, now)
	require.NoError(t, err)
	b2, err := db.CreateBooking(ctx, s2.ID, alice.ID, now)
	require.NoError(t, err)

	t.Run("user upcoming", func(t *testing.T) {
		got, err := db.GetUserBookings(ctx, alice.ID, "upcoming", now)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("user past after the fact", func(t *testing.T) {
		got, err := db.GetUserBookings(ctx, alice.ID, "past", future.Add(4*time.Hour))
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("admin filter by username", func(t *testing.T) {
		got, err := db.ListBookings(ctx, BookingFilter{Username: "ali"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("admin filter by category and limit", func(t *testing.T) {
		got, err := db.ListBookings(ctx, BookingFilter{CategoryID: 2})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b2.ID, got[0].ID)

		got, err = db.ListBookings(ctx, BookingFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("booking for slot", func(t *testing.T) {
		got, err := db.GetBookingForSlot(ctx, s2.ID)
		require.NoError(t, err)
		assert.Equal(t, b2.ID, got.ID)

		free := newTestSlot(t, db, 3, admin.ID, future.Add(5*time.Hour), future.Add(6*time.Hour))
		_, err = db.GetBookingForSlot(ctx, free.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUsersAndPreferences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := newTestUser(t, db, "alice", false)

	t.Run("duplicate username", func(t *testing.T) {
		err := db.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "y"})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("lookup", func(t *testing.T) {
		byName, err := db.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byName.ID)

		_, err = db.GetUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("preferences auto created and updatable", func(t *testing.T) {
		p, err := db.GetPreferences(ctx, alice.ID)
		require.NoError(t, err)
		assert.False(t, p.Cat1)

		p.Cat1 = true
		p.Cat3 = true
		require.NoError(t, db.UpdatePreferences(ctx, p))

		p, err = db.GetPreferences(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, p.Cat1)
		assert.False(t, p.Cat2)
		assert.True(t, p.Cat3)
	})
}
