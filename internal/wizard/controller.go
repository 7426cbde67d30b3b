// Package wizard implements the booking wizard: an ordered step machine that
// gates forward moves on validation, keeps the dietary split consistent and
// submits the finished record exactly once.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"supperclub/internal/domain"
	"supperclub/internal/models"
	"supperclub/internal/pricing"
	"supperclub/internal/validation"

	"github.com/rs/zerolog"
)

type Option func(*Controller)

// WithReviewNavigation lets JumpTo reach any step up to the highest one
// already reached, not only steps behind the current one.
func WithReviewNavigation() Option {
	return func(c *Controller) { c.reviewNav = true }
}

func WithProfileFinder(f domain.ProfileFinder) Option {
	return func(c *Controller) { c.profiles = f }
}

func WithDraftID(id string) Option {
	return func(c *Controller) { c.draftID = id }
}

// WithInitialRecord seeds the record. The dietary split is normalized.
func WithInitialRecord(r models.BookingRecord) Option {
	return func(c *Controller) { c.record = Normalize(r) }
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller drives one wizard instance. Every method is safe for concurrent
// use; the mutex is never held across a collaborator call.
type Controller struct {
	mu sync.Mutex

	validator *Validator
	saver     domain.BookingSaver
	profiles  domain.ProfileFinder
	reviewNav bool
	logger    *zerolog.Logger
	now       func() time.Time

	draftID   string
	current   int
	highest   int
	status    models.WizardStatus
	record    models.BookingRecord
	revision  uint64
	errors    []FieldError
	updatedAt time.Time

	lookupSeq    uint64
	lookupCancel context.CancelFunc
}

func NewController(v *Validator, saver domain.BookingSaver, opts ...Option) *Controller {
	nop := zerolog.Nop()
	c := &Controller{
		validator: v,
		saver:     saver,
		logger:    &nop,
		now:       time.Now,
		status:    models.WizardEditing,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.updatedAt = c.now()
	return c
}

func (c *Controller) DraftID() string { return c.draftID }

// Steps returns the step sequence.
func (c *Controller) Steps() []models.WizardStep { return c.validator.Steps() }

func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) Status() models.WizardStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Record returns a copy of the record under edit.
func (c *Controller) Record() models.BookingRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

// Errors returns the field errors of the last rejected Next or Submit.
func (c *Controller) Errors() []FieldError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]FieldError(nil), c.errors...)
}

// Next validates the current step and advances on success. On failure the
// step is unchanged and the errors are kept for Errors.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}

	res := c.validator.ValidateStep(c.current, c.record)
	if !res.Valid {
		c.errors = res.Errors
		c.logger.Debug().Str("draft_id", c.draftID).Int("step", c.current).Int("errors", len(res.Errors)).Msg("wizard step rejected")
		return &ValidationError{Result: res}
	}

	c.errors = nil
	if c.current < c.lastStep() {
		c.current++
	}
	if c.current > c.highest {
		c.highest = c.current
	}
	c.touchLocked()
	return nil
}

// Previous steps back without validating. Entered data is kept.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	if c.current > 0 {
		c.current--
		c.touchLocked()
	}
	c.errors = nil
	return nil
}

// JumpTo moves to step k. Only steps up to the current one are reachable,
// or up to the highest reached one with review navigation.
func (c *Controller) JumpTo(k int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}

	limit := c.current
	if c.reviewNav {
		limit = c.highest
	}
	if k < 0 || k > limit {
		return fmt.Errorf("%w: step %d (reachable up to %d)", ErrStepLocked, k, limit)
	}
	if k != c.current {
		c.current = k
		c.touchLocked()
	}
	c.errors = nil
	return nil
}

// Update applies a patch to the record, re-deriving the dietary split when
// guest counts change.
func (c *Controller) Update(p models.Patch) (models.BookingRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return c.record, err
	}
	if p.Empty() {
		return c.record, nil
	}
	c.record = Apply(c.record, p)
	c.errors = nil
	c.touchLocked()
	return c.record, nil
}

// Submit validates every step and hands the record to the saver. It is only
// allowed on the last step. While the save is outstanding every other
// transition fails with ErrSubmitInProgress. A failed save leaves the wizard
// on the last step with its data intact.
func (c *Controller) Submit(ctx context.Context) (models.BookingRecord, error) {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return models.BookingRecord{}, err
	}
	if c.current != c.lastStep() {
		c.mu.Unlock()
		return models.BookingRecord{}, ErrNotOnLastStep
	}
	res := c.validator.ValidateAll(c.record)
	if !res.Valid {
		c.errors = res.Errors
		c.mu.Unlock()
		return models.BookingRecord{}, &ValidationError{Result: res}
	}

	record := c.record
	if record.Status == models.StatusUnknown {
		record.Status = models.StatusPending
	}
	c.status = models.WizardSubmitting
	c.errors = nil
	c.mu.Unlock()

	saved, err := c.saver.Save(ctx, record)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.status = models.WizardEditing
		c.logger.Warn().Err(err).Str("draft_id", c.draftID).Msg("wizard submit failed")
		return models.BookingRecord{}, &PersistenceError{Err: err}
	}

	c.status = models.WizardSubmitted
	c.record = saved
	c.touchLocked()
	c.logger.Info().Str("draft_id", c.draftID).Str("booking_id", saved.ID).Msg("wizard submitted")
	return saved, nil
}

// Close ends the wizard and cancels any in-flight lookup. A closed wizard
// never reaches the saver. Closing twice is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case models.WizardSubmitting:
		return ErrSubmitInProgress
	case models.WizardClosed:
		return nil
	}

	c.lookupSeq++
	if c.lookupCancel != nil {
		c.lookupCancel()
		c.lookupCancel = nil
	}
	c.status = models.WizardClosed
	c.touchLocked()
	return nil
}

// LookupProfile searches for a returning guest by phone or e-mail. A newer
// call supersedes an older one. The result is applied only if this is still
// the latest lookup, the wizard is still editing and the record still holds
// the same contact; otherwise ErrStaleLookup is returned and nothing changes.
// Applying fills guest name and e-mail only where they are empty.
func (c *Controller) LookupProfile(ctx context.Context, contact string) (*models.Profile, error) {
	contact = normalizeContact(contact)

	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.profiles == nil {
		c.mu.Unlock()
		return nil, ErrLookupUnavailable
	}
	c.lookupSeq++
	seq := c.lookupSeq
	if c.lookupCancel != nil {
		c.lookupCancel()
	}
	lookupCtx, cancel := context.WithCancel(ctx)
	c.lookupCancel = cancel
	c.mu.Unlock()

	profile, err := c.profiles.FindExistingProfile(lookupCtx, contact)

	c.mu.Lock()
	defer c.mu.Unlock()
	cancel()
	if seq == c.lookupSeq {
		c.lookupCancel = nil
	}

	if seq != c.lookupSeq || c.status != models.WizardEditing || !holdsContact(c.record, contact) {
		c.logger.Debug().Str("draft_id", c.draftID).Uint64("seq", seq).Msg("stale profile lookup discarded")
		return nil, ErrStaleLookup
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil, ErrStaleLookup
		}
		return nil, fmt.Errorf("wizard: lookup profile: %w", err)
	}
	if profile == nil {
		return nil, nil
	}

	changed := false
	if c.record.GuestName == "" && profile.GuestName != "" {
		c.record.GuestName = profile.GuestName
		changed = true
	}
	if c.record.Email == "" && profile.Email != "" {
		c.record.Email = profile.Email
		changed = true
	}
	if changed {
		c.touchLocked()
	}
	return profile, nil
}

// Price returns the breakdown for the current record.
func (c *Controller) Price() models.PriceBreakdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pricing.ForRecord(c.record)
}

// Snapshot captures the wizard state for draft storage.
func (c *Controller) Snapshot() models.WizardSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.WizardSnapshot{
		DraftID:   c.draftID,
		Step:      c.current,
		Highest:   c.highest,
		Status:    c.status,
		Revision:  c.revision,
		Record:    c.record,
		UpdatedAt: c.updatedAt,
	}
}

// Restore replaces the wizard state with a stored snapshot. A snapshot taken
// mid-submit comes back as editing, since the save outcome is unknown.
func (c *Controller) Restore(s models.WizardSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == models.WizardSubmitting {
		return ErrSubmitInProgress
	}

	last := c.lastStep()
	c.current = clampRange(s.Step, 0, last)
	c.highest = clampRange(s.Highest, c.current, last)
	c.record = Normalize(s.Record)
	c.revision = s.Revision
	c.updatedAt = s.UpdatedAt
	c.errors = nil
	if s.DraftID != "" {
		c.draftID = s.DraftID
	}

	switch s.Status {
	case models.WizardSubmitted, models.WizardClosed:
		c.status = s.Status
	default:
		c.status = models.WizardEditing
	}
	return nil
}

func (c *Controller) editableLocked() error {
	switch c.status {
	case models.WizardSubmitting:
		return ErrSubmitInProgress
	case models.WizardSubmitted:
		return ErrAlreadySubmitted
	case models.WizardClosed:
		return ErrClosed
	}
	return nil
}

func (c *Controller) touchLocked() {
	c.revision++
	c.updatedAt = c.now()
}

func (c *Controller) lastStep() int {
	if n := c.validator.StepCount(); n > 0 {
		return n - 1
	}
	return 0
}

func clampRange(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func normalizeContact(contact string) string {
	contact = strings.TrimSpace(contact)
	if strings.Contains(contact, "@") {
		return strings.ToLower(contact)
	}
	return validation.NormalizePhone(contact)
}

func holdsContact(r models.BookingRecord, contact string) bool {
	if contact == "" {
		return false
	}
	if strings.Contains(contact, "@") {
		return strings.EqualFold(r.Email, contact)
	}
	return r.ContactNumber == contact
}
