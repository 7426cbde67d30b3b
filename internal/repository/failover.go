package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"supperclub/internal/domain"
	"supperclub/internal/models"

	"github.com/rs/zerolog"
)

// recoveryInterval is how long the primary stays bypassed after a failure.
const recoveryInterval = time.Minute

// FailoverDraftRepository serves drafts from the primary store and switches
// to the fallback when the primary errors. The primary is retried once the
// recovery interval has passed.
type FailoverDraftRepository struct {
	primary   domain.DraftRepository
	fallback  domain.DraftRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverDraftRepository(primary, fallback domain.DraftRepository, logger *zerolog.Logger) *FailoverDraftRepository {
	return &FailoverDraftRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// Degraded reports whether requests currently bypass the primary.
func (r *FailoverDraftRepository) Degraded() bool {
	return r.isDown.Load()
}

func (r *FailoverDraftRepository) GetDraft(ctx context.Context, draftID string) (*models.WizardSnapshot, error) {
	return withFailover(r, "get_draft",
		func() (*models.WizardSnapshot, error) { return r.primary.GetDraft(ctx, draftID) },
		func() (*models.WizardSnapshot, error) { return r.fallback.GetDraft(ctx, draftID) },
	)
}

func (r *FailoverDraftRepository) SetDraft(ctx context.Context, snapshot *models.WizardSnapshot) error {
	_, err := withFailover(r, "set_draft",
		func() (struct{}, error) { return struct{}{}, r.primary.SetDraft(ctx, snapshot) },
		func() (struct{}, error) { return struct{}{}, r.fallback.SetDraft(ctx, snapshot) },
	)
	return err
}

func (r *FailoverDraftRepository) ClearDraft(ctx context.Context, draftID string) error {
	_, err := withFailover(r, "clear_draft",
		func() (struct{}, error) { return struct{}{}, r.primary.ClearDraft(ctx, draftID) },
		func() (struct{}, error) { return struct{}{}, r.fallback.ClearDraft(ctx, draftID) },
	)
	return err
}

func (r *FailoverDraftRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return withFailover(r, "rate_limit",
		func() (bool, error) { return r.primary.CheckRateLimit(ctx, key, limit, window) },
		func() (bool, error) { return r.fallback.CheckRateLimit(ctx, key, limit, window) },
	)
}

func withFailover[T any](r *FailoverDraftRepository, op string, primary, fallback func() (T, error)) (T, error) {
	if r.isDown.Load() {
		// Try to recover after recoveryInterval
		if r.now().Sub(time.Unix(0, r.lastCheck.Load())) <= recoveryInterval {
			return fallback()
		}
		r.lastCheck.Store(r.now().UnixNano())
	}

	val, err := primary()
	if errors.Is(err, domain.ErrStaleDraft) {
		// Отказ по ревизии: хранилище исправно
		return val, err
	}
	if err == nil {
		if r.isDown.CompareAndSwap(true, false) {
			r.logger.Info().Str("op", op).Msg("Primary draft repository recovered")
		}
		return val, nil
	}

	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Str("op", op).Msg("Primary draft repository failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
	return fallback()
}
