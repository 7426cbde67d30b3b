package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"supperclub/internal/config"
	"supperclub/internal/domain"
	"supperclub/internal/events"
	"supperclub/internal/metrics"
	"supperclub/internal/models"
	"supperclub/internal/wizard"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrDraftNotFound = errors.New("draft not found")
	ErrRateLimited   = errors.New("too many wizard starts")
)

// WizardView is what clients see of a wizard after each call.
type WizardView struct {
	DraftID  string                `json:"draft_id"`
	Step     int                   `json:"step"`
	StepKey  string                `json:"step_key"`
	Steps    []models.WizardStep   `json:"steps"`
	Status   models.WizardStatus   `json:"status"`
	Revision uint64                `json:"revision"`
	Record   models.BookingRecord  `json:"record"`
	Price    models.PriceBreakdown `json:"price"`
	Errors   []wizard.FieldError   `json:"errors,omitempty"`
}

// WizardService keeps live wizard controllers by draft ID and mirrors their
// state into the draft repository, so a draft survives a process restart.
type WizardService struct {
	validator *wizard.Validator
	saver     domain.BookingSaver
	profiles  domain.ProfileFinder
	drafts    domain.DraftRepository
	eventBus  domain.EventPublisher
	cfg       config.WizardConfig
	logger    *zerolog.Logger
	now       func() time.Time

	live sync.Map // draft id -> *wizard.Controller
}

func NewWizardService(
	validator *wizard.Validator,
	saver domain.BookingSaver,
	profiles domain.ProfileFinder,
	drafts domain.DraftRepository,
	eventBus domain.EventPublisher,
	cfg config.WizardConfig,
	logger *zerolog.Logger,
) *WizardService {
	return &WizardService{
		validator: validator,
		saver:     saver,
		profiles:  profiles,
		drafts:    drafts,
		eventBus:  eventBus,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Start opens a new draft, optionally seeded with a patch. clientKey is the
// rate-limit bucket (API key or remote address).
func (s *WizardService) Start(ctx context.Context, clientKey string, seed models.Patch) (WizardView, error) {
	if s.cfg.RateLimit > 0 {
		allowed, err := s.drafts.CheckRateLimit(ctx, "wizard_start:"+clientKey, s.cfg.RateLimit, s.cfg.RateLimitWindow)
		if err != nil {
			s.logger.Warn().Err(err).Str("client", clientKey).Msg("rate limit check failed")
		} else if !allowed {
			metrics.IncWizardTransition("start", "limited")
			return WizardView{}, ErrRateLimited
		}
	}

	draftID := uuid.NewString()
	ctrl := s.newController(draftID, nil)
	if !seed.Empty() {
		if _, err := ctrl.Update(seed); err != nil {
			return WizardView{}, err
		}
	}
	s.live.Store(draftID, ctrl)
	s.persist(ctx, ctrl)

	metrics.IncWizardTransition("start", "ok")
	s.logger.Info().Str("draft_id", draftID).Msg("wizard started")
	return s.view(ctrl), nil
}

func (s *WizardService) Get(ctx context.Context, draftID string) (WizardView, error) {
	ctrl, err := s.controller(ctx, draftID)
	if err != nil {
		return WizardView{}, err
	}
	return s.view(ctrl), nil
}

func (s *WizardService) Update(ctx context.Context, draftID string, patch models.Patch) (WizardView, error) {
	return s.do(ctx, draftID, "update", func(c *wizard.Controller) error {
		_, err := c.Update(patch)
		return err
	})
}

func (s *WizardService) Next(ctx context.Context, draftID string) (WizardView, error) {
	return s.do(ctx, draftID, "next", func(c *wizard.Controller) error { return c.Next() })
}

func (s *WizardService) Previous(ctx context.Context, draftID string) (WizardView, error) {
	return s.do(ctx, draftID, "previous", func(c *wizard.Controller) error { return c.Previous() })
}

func (s *WizardService) JumpTo(ctx context.Context, draftID string, step int) (WizardView, error) {
	return s.do(ctx, draftID, "jump", func(c *wizard.Controller) error { return c.JumpTo(step) })
}

// Submit saves the draft's record. The view carries the saved booking.
func (s *WizardService) Submit(ctx context.Context, draftID string) (WizardView, error) {
	var ctrl *wizard.Controller
	view, err := s.do(ctx, draftID, "submit", func(c *wizard.Controller) error {
		ctrl = c
		_, err := c.Submit(ctx)
		return err
	})
	if err == nil && view.Status == models.WizardSubmitted && s.persisted(ctx, ctrl) {
		// Отправленный черновик читается из хранилища по запросу
		s.live.CompareAndDelete(draftID, ctrl)
	}
	return view, err
}

// Lookup searches for a returning guest and fills empty contact details.
// The call is bounded by the configured lookup timeout.
func (s *WizardService) Lookup(ctx context.Context, draftID, contact string) (WizardView, *models.Profile, error) {
	var profile *models.Profile
	view, err := s.do(ctx, draftID, "lookup", func(c *wizard.Controller) error {
		lookupCtx := ctx
		if s.cfg.LookupTimeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(ctx, s.cfg.LookupTimeout)
			defer cancel()
		}
		var err error
		profile, err = c.LookupProfile(lookupCtx, contact)
		return err
	})
	return view, profile, err
}

// Close abandons the draft and removes it from storage.
func (s *WizardService) Close(ctx context.Context, draftID string) error {
	ctrl, err := s.controller(ctx, draftID)
	if err != nil {
		return err
	}
	if err := ctrl.Close(); err != nil {
		metrics.IncWizardTransition("close", outcome(err))
		return err
	}

	s.live.Delete(draftID)
	if err := s.drafts.ClearDraft(ctx, draftID); err != nil {
		s.logger.Warn().Err(err).Str("draft_id", draftID).Msg("failed to clear draft")
	}
	metrics.IncWizardTransition("close", "ok")

	if s.eventBus != nil {
		payload := events.BookingEventPayload{DraftID: draftID, Status: string(models.WizardClosed)}
		if err := s.eventBus.PublishJSON(events.EventDraftClosed, payload); err != nil {
			s.logger.Error().Err(err).Str("draft_id", draftID).Msg("publish event error")
		}
	}
	return nil
}

func (s *WizardService) do(ctx context.Context, draftID, action string, fn func(*wizard.Controller) error) (WizardView, error) {
	ctrl, err := s.controller(ctx, draftID)
	if err != nil {
		return WizardView{}, err
	}

	err = fn(ctrl)
	metrics.IncWizardTransition(action, outcome(err))
	if err == nil || errors.Is(err, wizard.ErrValidation) || errors.Is(err, wizard.ErrPersistence) {
		// Ошибки валидации и сохранения тоже меняют видимое состояние мастера
		s.persist(ctx, ctrl)
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("draft_id", draftID).Str("action", action).Msg("wizard action rejected")
	}
	return s.view(ctrl), err
}

// controller returns the live controller for a draft, restoring it from the
// draft repository when this process has not seen it yet. A live controller
// idle for longer than the draft TTL is dropped and the repository decides
// whether the draft still exists.
func (s *WizardService) controller(ctx context.Context, draftID string) (*wizard.Controller, error) {
	if v, ok := s.live.Load(draftID); ok {
		ctrl := v.(*wizard.Controller)
		if !s.expired(ctrl, s.now()) {
			return ctrl, nil
		}
		s.live.CompareAndDelete(draftID, ctrl)
		s.logger.Debug().Str("draft_id", draftID).Msg("expired wizard evicted")
	}

	snapshot, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, ErrDraftNotFound
	}

	ctrl := s.newController(draftID, snapshot)
	actual, _ := s.live.LoadOrStore(draftID, ctrl)
	return actual.(*wizard.Controller), nil
}

func (s *WizardService) newController(draftID string, snapshot *models.WizardSnapshot) *wizard.Controller {
	opts := []wizard.Option{
		wizard.WithDraftID(draftID),
		wizard.WithLogger(s.logger),
		wizard.WithNow(s.now),
	}
	if s.profiles != nil {
		opts = append(opts, wizard.WithProfileFinder(s.profiles))
	}
	if s.cfg.ReviewNavigation {
		opts = append(opts, wizard.WithReviewNavigation())
	}

	ctrl := wizard.NewController(s.validator, s.saver, opts...)
	if snapshot != nil {
		// Restore fails only while submitting, which a fresh controller never is
		_ = ctrl.Restore(*snapshot)
	}
	return ctrl
}

func (s *WizardService) persist(ctx context.Context, ctrl *wizard.Controller) {
	snapshot := ctrl.Snapshot()
	err := s.drafts.SetDraft(ctx, &snapshot)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrStaleDraft):
		// Более новая ревизия уже записана параллельным вызовом
		s.logger.Debug().Str("draft_id", snapshot.DraftID).Uint64("revision", snapshot.Revision).Msg("newer draft revision already stored")
	default:
		s.logger.Warn().Err(err).Str("draft_id", snapshot.DraftID).Msg("failed to persist draft")
	}
}

// persisted reports whether the repository holds the controller's current
// revision or a newer one.
func (s *WizardService) persisted(ctx context.Context, ctrl *wizard.Controller) bool {
	snapshot := ctrl.Snapshot()
	stored, err := s.drafts.GetDraft(ctx, snapshot.DraftID)
	if err != nil || stored == nil {
		return false
	}
	return stored.Revision >= snapshot.Revision
}

func (s *WizardService) expired(ctrl *wizard.Controller, now time.Time) bool {
	if s.cfg.DraftTTL <= 0 {
		return false
	}
	snapshot := ctrl.Snapshot()
	if snapshot.Status == models.WizardSubmitting {
		return false
	}
	return now.After(snapshot.UpdatedAt.Add(s.cfg.DraftTTL))
}

// Sweep drops live controllers idle for longer than the draft TTL and
// returns how many were removed.
func (s *WizardService) Sweep() int {
	now := s.now()
	removed := 0
	s.live.Range(func(key, value any) bool {
		if s.expired(value.(*wizard.Controller), now) && s.live.CompareAndDelete(key, value) {
			removed++
		}
		return true
	})
	return removed
}

// StartCleanup runs Sweep every interval until ctx is done.
func (s *WizardService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug().Int("removed", n).Msg("expired wizards evicted")
			}
		}
	}
}

func (s *WizardService) view(ctrl *wizard.Controller) WizardView {
	snapshot := ctrl.Snapshot()
	steps := ctrl.Steps()
	v := WizardView{
		DraftID:  snapshot.DraftID,
		Step:     snapshot.Step,
		Steps:    steps,
		Status:   snapshot.Status,
		Revision: snapshot.Revision,
		Record:   snapshot.Record,
		Price:    ctrl.Price(),
		Errors:   ctrl.Errors(),
	}
	if snapshot.Step < len(steps) {
		v.StepKey = steps[snapshot.Step].Key
	}
	return v
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, wizard.ErrValidation):
		return "invalid"
	case errors.Is(err, wizard.ErrStepLocked),
		errors.Is(err, wizard.ErrNotOnLastStep),
		errors.Is(err, wizard.ErrSubmitInProgress),
		errors.Is(err, wizard.ErrAlreadySubmitted),
		errors.Is(err, wizard.ErrClosed):
		return "locked"
	case errors.Is(err, wizard.ErrStaleLookup):
		return "stale"
	}
	return "error"
}
