package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"supperclub/internal/aggregate"
	"supperclub/internal/config"
	"supperclub/internal/database"
	"supperclub/internal/domain"
	"supperclub/internal/events"
	"supperclub/internal/metrics"
	"supperclub/internal/models"
	"supperclub/internal/pricing"
	"supperclub/internal/wizard"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrInvalidGrouping = errors.New("invalid grouping")

var _ domain.BookingService = (*BookingService)(nil)

// GroupBy selects the bucket key for list views.
type GroupBy string

const (
	GroupByDate    GroupBy = "date"
	GroupBySession GroupBy = "session"
)

func ParseGroupBy(raw string) (GroupBy, error) {
	switch GroupBy(raw) {
	case GroupByDate, "":
		return GroupByDate, nil
	case GroupBySession:
		return GroupBySession, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGrouping, raw)
}

// RecordValidator checks a stored booking after an edit.
type RecordValidator interface {
	ValidateRecord(r models.BookingRecord, checkDate bool) wizard.ValidationResult
}

type BookingService struct {
	repo      domain.Repository
	validator RecordValidator
	eventBus  domain.EventPublisher
	sessions  config.SessionsConfig
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewBookingService(repo domain.Repository, validator RecordValidator, eventBus domain.EventPublisher, sessions config.SessionsConfig, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:      repo,
		validator: validator,
		eventBus:  eventBus,
		sessions:  sessions,
		logger:    logger,
		now:       time.Now,
	}
}

// Save persists a record coming out of the wizard under a fresh ID.
func (s *BookingService) Save(ctx context.Context, record models.BookingRecord) (models.BookingRecord, error) {
	record.ID = uuid.NewString()
	if record.Status == models.StatusUnknown {
		record.Status = models.StatusPending
	}

	start := time.Now()
	err := s.repo.CreateBooking(ctx, &record)
	metrics.ObserveSave(time.Since(start))
	if err != nil {
		s.logger.Error().Err(err).Str("session", record.SessionType.String()).Str("date", record.DateKey()).Msg("failed to save booking")
		return models.BookingRecord{}, err
	}

	metrics.IncBookingSubmitted(record.SessionType.String())
	s.publishEvent(events.EventBookingSubmitted, record, "", "guest")
	s.logger.Info().Str("booking_id", record.ID).Str("date", record.DateKey()).Int("guests", record.NumberOfGuests).Msg("booking saved")
	return record, nil
}

// Update applies a patch to a stored booking at the given version. The
// patched record must pass the same field rules as a wizard submission,
// otherwise a *wizard.ValidationError is returned and nothing is written.
// The date window is checked only when the patch moves the date.
func (s *BookingService) Update(ctx context.Context, id string, version int64, patch models.Patch) (models.BookingRecord, error) {
	current, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return models.BookingRecord{}, err
	}
	// Проверяем ту же версию, к которой применится патч
	if current.Version != version {
		return models.BookingRecord{}, database.ErrConcurrentModification
	}

	if res := s.validator.ValidateRecord(wizard.Apply(*current, patch), patch.Date != nil); !res.Valid {
		s.logger.Debug().Str("booking_id", id).Int("errors", len(res.Errors)).Msg("booking update rejected")
		return models.BookingRecord{}, &wizard.ValidationError{Result: res}
	}

	updated, err := s.repo.UpdateBooking(ctx, id, version, patch)
	if err != nil {
		return models.BookingRecord{}, err
	}

	s.publishEvent(events.EventBookingUpdated, *updated, "", "manager")
	if updated.Status != current.Status {
		s.publishEvent(events.EventBookingStatusChanged, *updated, current.Status.String(), "manager")
	}
	return *updated, nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.BookingRecord, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) List(ctx context.Context, from, to time.Time) ([]models.BookingRecord, error) {
	return s.repo.GetBookingsByDateRange(ctx, from, to)
}

// Grouped lists bookings bucketed by date or session.
func (s *BookingService) Grouped(ctx context.Context, from, to time.Time, by GroupBy) (aggregate.Groups[string, models.BookingRecord], error) {
	var keyFn func(models.BookingRecord) string
	switch by {
	case GroupByDate:
		keyFn = aggregate.ByDate
	case GroupBySession:
		keyFn = aggregate.BySession
	default:
		return aggregate.Groups[string, models.BookingRecord]{}, fmt.Errorf("%w: %q", ErrInvalidGrouping, by)
	}

	records, err := s.List(ctx, from, to)
	if err != nil {
		return aggregate.Groups[string, models.BookingRecord]{}, err
	}
	return aggregate.GroupByKey(records, keyFn), nil
}

// Summary computes the dashboard tiles for the range. Utilization counts
// every configured session on every day of the range as available seats.
func (s *BookingService) Summary(ctx context.Context, from, to time.Time) (aggregate.Summary, error) {
	records, err := s.List(ctx, from, to)
	if err != nil {
		return aggregate.Summary{}, err
	}
	summary := aggregate.Summarize(records)

	booked, err := s.repo.GetBookedGuests(ctx, from, to)
	if err != nil {
		return aggregate.Summary{}, err
	}
	summary.Utilization = aggregate.UtilizationRate(s.Capacity(from, to, booked))
	return summary, nil
}

// Capacity expands booked guests into per-day, per-session slots for the
// sessions that have a configured capacity.
func (s *BookingService) Capacity(from, to time.Time, booked map[string]map[models.SessionType]int) []models.SessionCapacity {
	var slots []models.SessionCapacity
	last := to.Format(models.DateLayout)
	for d := from; d.Format(models.DateLayout) <= last; d = d.AddDate(0, 0, 1) {
		key := d.Format(models.DateLayout)
		for _, session := range models.SessionTypes {
			capacity := s.sessions.CapacityFor(session)
			if capacity <= 0 {
				continue
			}
			slots = append(slots, models.SessionCapacity{
				Date:        key,
				SessionType: session,
				Booked:      booked[key][session],
				Capacity:    capacity,
			})
		}
	}
	return slots
}

func (s *BookingService) publishEvent(eventType string, booking models.BookingRecord, previousStatus, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:      booking.ID,
		GuestName:      booking.GuestName,
		SessionType:    booking.SessionType.String(),
		Date:           booking.DateKey(),
		NumberOfGuests: booking.NumberOfGuests,
		Status:         booking.Status.String(),
		PreviousStatus: previousStatus,
		Total:          pricing.ForRecord(booking).Total,
		Version:        booking.Version,
		ChangedBy:      changedBy,
		OccurredAt:     s.now(),
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
