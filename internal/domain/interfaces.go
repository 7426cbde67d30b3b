package domain

import (
	"context"
	"errors"
	"time"

	"supperclub/internal/models"
)

// Repository is the booking store.
type Repository interface {
	CreateBooking(ctx context.Context, booking *models.BookingRecord) error
	GetBooking(ctx context.Context, id string) (*models.BookingRecord, error)
	UpdateBooking(ctx context.Context, id string, version int64, patch models.Patch) (*models.BookingRecord, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]models.BookingRecord, error)
	FindProfileByContact(ctx context.Context, contact string) (*models.Profile, error)
	GetBookedGuests(ctx context.Context, start, end time.Time) (map[string]map[models.SessionType]int, error)
}

// ErrStaleDraft is returned by SetDraft when the store already holds the same
// or a newer revision of the draft.
var ErrStaleDraft = errors.New("draft revision is not newer than the stored one")

// DraftRepository keeps wizard snapshots between requests.
// GetDraft returns nil, nil for an unknown draft. SetDraft only ever moves a
// draft forward in revision.
type DraftRepository interface {
	GetDraft(ctx context.Context, draftID string) (*models.WizardSnapshot, error)
	SetDraft(ctx context.Context, snapshot *models.WizardSnapshot) error
	ClearDraft(ctx context.Context, draftID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingSaver persists a completed wizard record.
type BookingSaver interface {
	Save(ctx context.Context, record models.BookingRecord) (models.BookingRecord, error)
}

// ProfileFinder looks up a returning guest by phone or e-mail.
// It returns nil, nil when nobody matches.
type ProfileFinder interface {
	FindExistingProfile(ctx context.Context, contact string) (*models.Profile, error)
}

type BookingService interface {
	BookingSaver
	Update(ctx context.Context, id string, version int64, patch models.Patch) (models.BookingRecord, error)
	Get(ctx context.Context, id string) (*models.BookingRecord, error)
	List(ctx context.Context, from, to time.Time) ([]models.BookingRecord, error)
}
