package repository

import (
	"context"
	"testing"
	"time"

	"supperclub/internal/config"
	"supperclub/internal/domain"
	"supperclub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDraftRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	repo := NewRedisDraftRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetDraft", func(t *testing.T) {
		snap := &models.WizardSnapshot{
			DraftID:  "d-1",
			Step:     1,
			Highest:  1,
			Status:   models.WizardEditing,
			Revision: 7,
			Record: models.BookingRecord{
				Date:           time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
				SessionType:    models.SessionDinner,
				GuestName:      "Ada",
				NumberOfGuests: 4,
				NonVegCount:    4,
			},
		}

		require.NoError(t, repo.SetDraft(ctx, snap))
		assert.True(t, s.Exists("draft:d-1"))
		assert.Equal(t, time.Hour, s.TTL("draft:d-1"))

		got, err := repo.GetDraft(ctx, "d-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, snap.Step, got.Step)
		assert.Equal(t, snap.Revision, got.Revision)
		assert.Equal(t, models.SessionDinner, got.Record.SessionType)
		assert.True(t, snap.Record.Date.Equal(got.Record.Date))
	})

	t.Run("GetMissingDraft", func(t *testing.T) {
		got, err := repo.GetDraft(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptDraft", func(t *testing.T) {
		require.NoError(t, s.Set("draft:bad", "{not json"))
		_, err := repo.GetDraft(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("ClearDraft", func(t *testing.T) {
		require.NoError(t, repo.SetDraft(ctx, &models.WizardSnapshot{DraftID: "d-2"}))
		require.NoError(t, repo.ClearDraft(ctx, "d-2"))

		got, _ := repo.GetDraft(ctx, "d-2")
		assert.Nil(t, got)
	})

	t.Run("OlderRevisionRejected", func(t *testing.T) {
		newer := &models.WizardSnapshot{DraftID: "d-4", Revision: 2, Status: models.WizardSubmitted}
		require.NoError(t, repo.SetDraft(ctx, newer))

		err := repo.SetDraft(ctx, &models.WizardSnapshot{DraftID: "d-4", Revision: 1, Status: models.WizardEditing})
		assert.ErrorIs(t, err, domain.ErrStaleDraft)

		got, err := repo.GetDraft(ctx, "d-4")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), got.Revision)
		assert.Equal(t, models.WizardSubmitted, got.Status)

		require.NoError(t, repo.SetDraft(ctx, &models.WizardSnapshot{DraftID: "d-4", Revision: 3}))
	})

	t.Run("CorruptDraftOverwritten", func(t *testing.T) {
		require.NoError(t, s.Set("draft:bad-2", "{not json"))
		require.NoError(t, repo.SetDraft(ctx, &models.WizardSnapshot{DraftID: "bad-2", Revision: 1}))

		got, err := repo.GetDraft(ctx, "bad-2")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.Revision)
	})

	t.Run("DraftExpires", func(t *testing.T) {
		require.NoError(t, repo.SetDraft(ctx, &models.WizardSnapshot{DraftID: "d-3"}))
		s.FastForward(time.Hour + time.Second)

		got, err := repo.GetDraft(ctx, "d-3")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, "key-1", limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, "key-1", limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, "key-1", limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, "key-1", limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisDraftRepository(nil, time.Hour)
		_, err := repo.GetDraft(ctx, "d-1")
		assert.ErrorIs(t, err, ErrNilClient)
		assert.ErrorIs(t, repo.SetDraft(ctx, &models.WizardSnapshot{}), ErrNilClient)
		assert.ErrorIs(t, Ping(ctx, nil), ErrNilClient)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("ServerDown", func(t *testing.T) {
		down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer down.Close()
		repo := NewRedisDraftRepository(down, time.Hour)

		_, err := repo.GetDraft(ctx, "d-1")
		assert.Error(t, err)
	})
}
