package repository

import (
	"context"
	"sync"
	"time"

	"supperclub/internal/domain"
	"supperclub/internal/models"
)

type MemoryDraftRepository struct {
	drafts     sync.Map // draft id -> *draftEntry
	rateLimits sync.Map // key -> *rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

type draftEntry struct {
	snapshot  models.WizardSnapshot
	expiresAt time.Time
}

func (e *draftEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func NewMemoryDraftRepository(ttl time.Duration) *MemoryDraftRepository {
	return &MemoryDraftRepository{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemoryDraftRepository) GetDraft(ctx context.Context, draftID string) (*models.WizardSnapshot, error) {
	val, ok := r.drafts.Load(draftID)
	if !ok {
		return nil, nil
	}
	entry := val.(*draftEntry)
	if entry.expired(r.now()) {
		r.drafts.CompareAndDelete(draftID, val)
		return nil, nil
	}
	// копия, чтобы вызывающий не менял сохраненный черновик
	snapshot := entry.snapshot
	return &snapshot, nil
}

// SetDraft stores the snapshot unless a live one with the same or a newer
// revision is already there, in which case domain.ErrStaleDraft is returned.
func (r *MemoryDraftRepository) SetDraft(ctx context.Context, snapshot *models.WizardSnapshot) error {
	entry := &draftEntry{snapshot: *snapshot}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}

	for {
		val, loaded := r.drafts.LoadOrStore(snapshot.DraftID, entry)
		if !loaded {
			return nil
		}
		current := val.(*draftEntry)
		if !current.expired(r.now()) && current.snapshot.Revision >= snapshot.Revision {
			return domain.ErrStaleDraft
		}
		if r.drafts.CompareAndSwap(snapshot.DraftID, val, entry) {
			return nil
		}
	}
}

func (r *MemoryDraftRepository) ClearDraft(ctx context.Context, draftID string) error {
	r.drafts.Delete(draftID)
	return nil
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemoryDraftRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.now()
	val, _ := r.rateLimits.LoadOrStore(key, &rateLimitEntry{})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.count == 0 || now.After(entry.expiresAt) {
		entry.count = 1
		entry.expiresAt = now.Add(window)
	} else {
		entry.count++
	}

	return entry.count <= limit, nil
}

// Sweep drops expired drafts and rate-limit windows and returns how many
// entries were removed.
func (r *MemoryDraftRepository) Sweep() int {
	now := r.now()
	removed := 0

	r.drafts.Range(func(key, val any) bool {
		if val.(*draftEntry).expired(now) && r.drafts.CompareAndDelete(key, val) {
			removed++
		}
		return true
	})

	r.rateLimits.Range(func(key, val any) bool {
		entry := val.(*rateLimitEntry)
		entry.mu.Lock()
		stale := now.After(entry.expiresAt)
		entry.mu.Unlock()
		if stale && r.rateLimits.CompareAndDelete(key, val) {
			removed++
		}
		return true
	})
	return removed
}

// StartCleanup runs Sweep every interval until ctx is done.
func (r *MemoryDraftRepository) StartCleanup(ctx context.Context, interval time.Duration) {
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
			r.Sweep()
		}
	}
}
