package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"supperclub/internal/config"
	"supperclub/internal/domain"
	"supperclub/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	draftKeyPrefix     = "draft:"
	rateLimitKeyPrefix = "rate_limit:"

	// maxWatchRetries bounds optimistic SetDraft attempts under contention.
	maxWatchRetries = 5
)

var ErrNilClient = errors.New("redis client is nil")

type RedisDraftRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisDraftRepository(client *redis.Client, ttl time.Duration) *RedisDraftRepository {
	return &RedisDraftRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisDraftRepository) GetDraft(ctx context.Context, draftID string) (*models.WizardSnapshot, error) {
	if r.client == nil {
		return nil, ErrNilClient
	}
	val, err := r.client.Get(ctx, draftKeyPrefix+draftID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft from redis: %w", err)
	}

	return models.DecodeSnapshot(val)
}

// SetDraft writes the snapshot under WATCH so that an older revision never
// replaces a newer one written by another request or instance.
func (r *RedisDraftRepository) SetDraft(ctx context.Context, snapshot *models.WizardSnapshot) error {
	if r.client == nil {
		return ErrNilClient
	}
	data, err := snapshot.Encode()
	if err != nil {
		return err
	}
	key := draftKeyPrefix + snapshot.DraftID

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			// Битый черновик перезаписываем
			if stored, decodeErr := models.DecodeSnapshot(current); decodeErr == nil && stored.Revision >= snapshot.Revision {
				return domain.ErrStaleDraft
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrStaleDraft):
			return err
		default:
			return fmt.Errorf("failed to set draft in redis: %w", err)
		}
	}
	return fmt.Errorf("failed to set draft in redis: %w", err)
}

func (r *RedisDraftRepository) ClearDraft(ctx context.Context, draftID string) error {
	if r.client == nil {
		return ErrNilClient
	}
	if err := r.client.Del(ctx, draftKeyPrefix+draftID).Err(); err != nil {
		return fmt.Errorf("failed to delete draft from redis: %w", err)
	}
	return nil
}

func (r *RedisDraftRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, ErrNilClient
	}
	key = rateLimitKeyPrefix + key
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return ErrNilClient
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
