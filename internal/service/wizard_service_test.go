package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"supperclub/internal/config"
	"supperclub/internal/domain"
	"supperclub/internal/events"
	"supperclub/internal/models"
	"supperclub/internal/repository"
	"supperclub/internal/validation"
	"supperclub/internal/wizard"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type wizardFixture struct {
	svc    *WizardService
	repo   *mockRepo
	pub    *mockPublisher
	drafts domain.DraftRepository
	cfg    config.WizardConfig
}

func newWizardFixture(t *testing.T, cfg config.WizardConfig) *wizardFixture {
	t.Helper()
	ttl := time.Hour
	if cfg.DraftTTL > 0 {
		ttl = cfg.DraftTTL
	}
	f := &wizardFixture{
		repo:   new(mockRepo),
		pub:    new(mockPublisher),
		drafts: repository.NewMemoryDraftRepository(ttl),
		cfg:    cfg,
	}
	f.pub.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = f.build()
	return f
}

// build creates a fresh service over the same collaborators, as a second
// process instance would.
func (f *wizardFixture) build() *WizardService {
	logger := zerolog.Nop()
	validator := wizard.NewValidator(wizard.DefaultRules, validation.MustDefault(),
		wizard.WithClock(func() time.Time { return fixedNow }))
	bookings := NewBookingService(f.repo, validator, f.pub, config.SessionsConfig{}, &logger)
	profiles := NewProfileService(f.repo, &logger)
	return NewWizardService(validator, bookings, profiles, f.drafts, f.pub, f.cfg, &logger)
}

func sessionPatch() models.Patch {
	return models.Patch{
		Date:        ptr(time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)),
		SessionType: ptr(models.SessionDinner),
	}
}

func guestPatch() models.Patch {
	return models.Patch{
		GuestName:      ptr("Ada Lovelace"),
		ContactNumber:  ptr("+49 170 1234567"),
		Email:          ptr("ada@example.com"),
		NumberOfGuests: ptr(4),
		VegCount:       ptr(1),
	}
}

func paymentPatch() models.Patch {
	return models.Patch{
		PaymentStatus: ptr(models.PaymentPending),
		PaymentMethod: ptr(models.MethodCard),
	}
}

func TestWizardService_FullFlow(t *testing.T) {
	ctx := context.Background()
	f := newWizardFixture(t, config.WizardConfig{})
	f.repo.On("CreateBooking", ctx, mock.AnythingOfType("*models.BookingRecord")).Return(nil)

	view, err := f.svc.Start(ctx, "client", sessionPatch())
	require.NoError(t, err)
	assert.Equal(t, 0, view.Step)
	assert.Equal(t, models.StepSession, view.StepKey)
	assert.Len(t, view.Steps, 4)
	id := view.DraftID

	_, err = f.svc.Next(ctx, id)
	require.NoError(t, err)

	view, err = f.svc.Update(ctx, id, guestPatch())
	require.NoError(t, err)
	assert.Equal(t, "+491701234567", view.Record.ContactNumber)
	assert.Equal(t, 3, view.Record.NonVegCount)

	_, err = f.svc.Next(ctx, id)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, id, paymentPatch())
	require.NoError(t, err)
	view, err = f.svc.Next(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepReview, view.StepKey)
	assert.Positive(t, view.Price.Total)

	view, err = f.svc.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.WizardSubmitted, view.Status)
	assert.NotEmpty(t, view.Record.ID)
	assert.Equal(t, models.StatusPending, view.Record.Status)
	f.repo.AssertNumberOfCalls(t, "CreateBooking", 1)

	_, live := f.svc.live.Load(id)
	assert.False(t, live, "submitted wizard should leave the live set")

	t.Run("SecondSubmitRejected", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, id)
		assert.ErrorIs(t, err, wizard.ErrAlreadySubmitted)
		f.repo.AssertNumberOfCalls(t, "CreateBooking", 1)
	})
}

func TestWizardService_ValidationKeepsStep(t *testing.T) {
	ctx := context.Background()
	f := newWizardFixture(t, config.WizardConfig{})

	view, err := f.svc.Start(ctx, "client", models.Patch{})
	require.NoError(t, err)

	view, err = f.svc.Next(ctx, view.DraftID)
	assert.ErrorIs(t, err, wizard.ErrValidation)
	assert.Equal(t, 0, view.Step)
	require.Len(t, view.Errors, 2)
	assert.Equal(t, models.FieldDate, view.Errors[0].Field)
}

func TestWizardService_UnknownDraft(t *testing.T) {
	f := newWizardFixture(t, config.WizardConfig{})

	_, err := f.svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestWizardService_RestoresFromDrafts(t *testing.T) {
	ctx := context.Background()
	f := newWizardFixture(t, config.WizardConfig{})

	view, err := f.svc.Start(ctx, "client", sessionPatch())
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, view.DraftID)
	require.NoError(t, err)

	other := f.build()
	restored, err := other.Get(ctx, view.DraftID)
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Step)
	assert.Equal(t, models.SessionDinner, restored.Record.SessionType)
}

func TestWizardService_Close(t *testing.T) {
	ctx := context.Background()
	f := newWizardFixture(t, config.WizardConfig{})

	view, err := f.svc.Start(ctx, "client", models.Patch{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Close(ctx, view.DraftID))
	f.pub.AssertCalled(t, "PublishJSON", events.EventDraftClosed, mock.Anything)

	_, err = f.svc.Get(ctx, view.DraftID)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	stored, err := f.drafts.GetDraft(ctx, view.DraftID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestWizardService_RateLimit(t *testing.T) {
	ctx := context.Background()
	f := newWizardFixture(t, config.WizardConfig{RateLimit: 2, RateLimitWindow: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := f.svc.Start(ctx, "client", models.Patch{})
		require.NoError(t, err)
	}
	_, err := f.svc.Start(ctx, "client", models.Patch{})
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = f.svc.Start(ctx, "other", models.Patch{})
	assert.NoError(t, err)
}

func TestWizardService_Lookup(t *testing.T) {
	ctx := context.Background()
	f := newWizardFixture(t, config.WizardConfig{LookupTimeout: time.Second})
	f.repo.On("FindProfileByContact", mock.Anything, "+491701234567").Return(&models.Profile{
		GuestName:     "Ada Lovelace",
		Email:         "ada@example.com",
		BookingsCount: 3,
	}, nil)

	view, err := f.svc.Start(ctx, "client", models.Patch{ContactNumber: ptr("+49-170-1234567")})
	require.NoError(t, err)

	view, profile, err := f.svc.Lookup(ctx, view.DraftID, "+49 170 1234567")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, 3, profile.BookingsCount)
	assert.Equal(t, "Ada Lovelace", view.Record.GuestName)
	assert.Equal(t, "ada@example.com", view.Record.Email)
}

// gatedDrafts holds the first SetDraft after arm until release is closed.
type gatedDrafts struct {
	*repository.MemoryDraftRepository
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedDrafts) SetDraft(ctx context.Context, snapshot *models.WizardSnapshot) error {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.MemoryDraftRepository.SetDraft(ctx, snapshot)
}

func TestWizardService_ConcurrentPersist(t *testing.T) {
	ctx := context.Background()
	f := newWizardFixture(t, config.WizardConfig{})
	gated := &gatedDrafts{
		MemoryDraftRepository: repository.NewMemoryDraftRepository(time.Hour),
		entered:               make(chan struct{}),
		release:               make(chan struct{}),
	}
	f.drafts = gated
	f.svc = f.build()

	view, err := f.svc.Start(ctx, "client", models.Patch{})
	require.NoError(t, err)
	id := view.DraftID

	gated.armed.Store(true)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.svc.Update(ctx, id, models.Patch{GuestName: ptr("First")})
		assert.NoError(t, err)
	}()
	<-gated.entered

	latest, err := f.svc.Update(ctx, id, models.Patch{GuestName: ptr("Second")})
	require.NoError(t, err)
	close(gated.release)
	wg.Wait()

	stored, err := f.drafts.GetDraft(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, latest.Revision, stored.Revision)
	assert.Equal(t, "Second", stored.Record.GuestName)

	restored, err := f.build().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Second", restored.Record.GuestName)
}

func TestWizardService_DraftTTL(t *testing.T) {
	ctx := context.Background()

	t.Run("ExpiredDraftNotServed", func(t *testing.T) {
		f := newWizardFixture(t, config.WizardConfig{DraftTTL: 10 * time.Millisecond})

		view, err := f.svc.Start(ctx, "client", sessionPatch())
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)

		_, err = f.svc.Get(ctx, view.DraftID)
		assert.ErrorIs(t, err, ErrDraftNotFound)
		_, err = f.svc.Update(ctx, view.DraftID, guestPatch())
		assert.ErrorIs(t, err, ErrDraftNotFound)
	})

	t.Run("ActiveDraftKept", func(t *testing.T) {
		f := newWizardFixture(t, config.WizardConfig{DraftTTL: time.Minute})
		now := fixedNow
		f.svc.now = func() time.Time { return now }

		view, err := f.svc.Start(ctx, "client", sessionPatch())
		require.NoError(t, err)

		now = now.Add(50 * time.Second)
		_, err = f.svc.Update(ctx, view.DraftID, guestPatch())
		require.NoError(t, err)

		now = now.Add(50 * time.Second)
		assert.Zero(t, f.svc.Sweep())
		_, err = f.svc.Get(ctx, view.DraftID)
		assert.NoError(t, err)
	})

	t.Run("SweepEvictsIdleControllers", func(t *testing.T) {
		f := newWizardFixture(t, config.WizardConfig{DraftTTL: time.Minute})
		now := fixedNow
		f.svc.now = func() time.Time { return now }

		for i := 0; i < 3; i++ {
			_, err := f.svc.Start(ctx, "client", models.Patch{})
			require.NoError(t, err)
		}
		now = now.Add(2 * time.Minute)
		assert.Equal(t, 3, f.svc.Sweep())
		assert.Zero(t, f.svc.Sweep())
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "invalid", outcome(&wizard.ValidationError{}))
	assert.Equal(t, "locked", outcome(wizard.ErrClosed))
	assert.Equal(t, "stale", outcome(wizard.ErrStaleLookup))
	assert.Equal(t, "error", outcome(&wizard.PersistenceError{Err: assert.AnError}))
}
