package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"supperclub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBooking(id, date string) *models.BookingRecord {
	d, _ := time.Parse(models.DateLayout, date)
	return &models.BookingRecord{
		ID:             id,
		Date:           d,
		SessionType:    models.SessionDinner,
		GuestName:      "Ada Lovelace",
		ContactNumber:  "+491701234567",
		Email:          "ada@example.com",
		NumberOfGuests: 4,
		VegCount:       1,
		NonVegCount:    3,
		Addon:          models.AddonWinePairing,
		PaymentStatus:  models.PaymentPending,
		PaymentMethod:  models.MethodCard,
		Status:         models.StatusPending,
	}
}

func day(s string) time.Time {
	d, _ := time.Parse(models.DateLayout, s)
	return d
}

func ptr[T any](v T) *T { return &v }

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := testBooking("b1", "2026-11-02")
	require.NoError(t, db.CreateBooking(ctx, booking))
	assert.Equal(t, int64(1), booking.Version)
	assert.False(t, booking.CreatedAt.IsZero())

	got, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "2026-11-02", got.DateKey())
	assert.Equal(t, models.SessionDinner, got.SessionType)
	assert.Equal(t, models.AddonWinePairing, got.Addon)
	assert.Equal(t, models.MethodCard, got.PaymentMethod)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, 1, got.VegCount)
	assert.Equal(t, 3, got.NonVegCount)

	t.Run("Duplicate", func(t *testing.T) {
		err := db.CreateBooking(ctx, testBooking("b1", "2026-11-03"))
		assert.ErrorIs(t, err, ErrDuplicateBooking)
	})

	t.Run("MissingID", func(t *testing.T) {
		err := db.CreateBooking(ctx, testBooking("", "2026-11-03"))
		assert.Error(t, err)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := db.GetBooking(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestOptimisticLocking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := testBooking("b1", "2026-11-02")
	require.NoError(t, db.CreateBooking(ctx, booking))

	// Successful update
	updated, err := db.UpdateBooking(ctx, "b1", 1, models.Patch{Status: ptr(models.StatusConfirmed)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, models.StatusConfirmed, updated.Status)

	// Failed update with old version
	_, err = db.UpdateBooking(ctx, "b1", 1, models.Patch{Status: ptr(models.StatusCancelled)})
	assert.ErrorIs(t, err, ErrConcurrentModification)

	stored, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, models.StatusConfirmed, stored.Status)

	_, err = db.UpdateBooking(ctx, "missing", 1, models.Patch{Notes: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateBookingDerivesSplit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateBooking(ctx, testBooking("b1", "2026-11-02")))

	updated, err := db.UpdateBooking(ctx, "b1", 1, models.Patch{NumberOfGuests: ptr(6)})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.NumberOfGuests)
	assert.Equal(t, 1, updated.VegCount)
	assert.Equal(t, 5, updated.NonVegCount)

	stored, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, updated.VegCount, stored.VegCount)
	assert.Equal(t, updated.NonVegCount, stored.NonVegCount)
}

func TestConcurrentUpdates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateBooking(ctx, testBooking("b1", "2026-11-02")))

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := db.UpdateBooking(ctx, "b1", 1, models.Patch{Notes: ptr("writer")})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		assert.ErrorIs(t, err, ErrConcurrentModification)
	}

	// Only one writer may move version 1 forward
	assert.Equal(t, 1, successCount)
	stored, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
}

func TestGetBookingsByDateRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, b := range []*models.BookingRecord{
		testBooking("late", "2026-11-05"),
		testBooking("early", "2026-11-01"),
		testBooking("mid", "2026-11-03"),
		testBooking("outside", "2026-12-01"),
	} {
		require.NoError(t, db.CreateBooking(ctx, b))
	}

	bookings, err := db.GetBookingsByDateRange(ctx, day("2026-11-01"), day("2026-11-05"))
	require.NoError(t, err)
	require.Len(t, bookings, 3)
	assert.Equal(t, "early", bookings[0].ID)
	assert.Equal(t, "mid", bookings[1].ID)
	assert.Equal(t, "late", bookings[2].ID)

	empty, err := db.GetBookingsByDateRange(ctx, day("2027-01-01"), day("2027-01-31"))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = db.GetBookingsByDateRange(ctx, day("2026-11-05"), day("2026-11-01"))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestGetBookedGuests(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	lunch := testBooking("lunch", "2026-11-02")
	lunch.SessionType = models.SessionLunch
	lunch.NumberOfGuests, lunch.VegCount, lunch.NonVegCount = 2, 2, 0

	cancelled := testBooking("cancelled", "2026-11-02")
	cancelled.Status = models.StatusCancelled

	confirmed := testBooking("confirmed", "2026-11-02")
	confirmed.Status = models.StatusConfirmed

	for _, b := range []*models.BookingRecord{testBooking("d1", "2026-11-02"), lunch, cancelled, confirmed} {
		require.NoError(t, db.CreateBooking(ctx, b))
	}

	booked, err := db.GetBookedGuests(ctx, day("2026-11-01"), day("2026-11-30"))
	require.NoError(t, err)
	assert.Equal(t, 8, booked["2026-11-02"][models.SessionDinner])
	assert.Equal(t, 2, booked["2026-11-02"][models.SessionLunch])
	assert.Len(t, booked, 1)
}

func TestFindProfileByContact(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := testBooking("b1", "2026-11-02")
	first.CreatedAt = time.Now().Add(-48 * time.Hour)
	first.GuestName = "Ada King"
	require.NoError(t, db.CreateBooking(ctx, first))
	require.NoError(t, db.CreateBooking(ctx, testBooking("b2", "2026-11-09")))

	t.Run("ByPhone", func(t *testing.T) {
		p, err := db.FindProfileByContact(ctx, "+491701234567")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Ada Lovelace", p.GuestName)
		assert.Equal(t, 2, p.BookingsCount)
	})

	t.Run("ByEmailCaseInsensitive", func(t *testing.T) {
		p, err := db.FindProfileByContact(ctx, "ADA@example.com")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "ada@example.com", p.Email)
	})

	t.Run("NoMatch", func(t *testing.T) {
		p, err := db.FindProfileByContact(ctx, "+10000000000")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("Empty", func(t *testing.T) {
		p, err := db.FindProfileByContact(ctx, "  ")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}
