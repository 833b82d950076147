package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guard-relay/shared/interfaces"
	"guard-relay/shared/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check to ensure redisNotificationStore implements NotificationStore
var _ interfaces.NotificationStore = (*redisNotificationStore)(nil)

const notificationKeyPrefix = "shown_notification:"

type redisNotificationStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisNotificationStore creates a Redis-backed NotificationStore.
// Each notification is stored as JSON under shown_notification:{ID} with the given TTL.
func NewRedisNotificationStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) interfaces.NotificationStore {
	return &redisNotificationStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisNotificationStore"),
	}
}

func notificationKey(id string) string {
	return notificationKeyPrefix + id
}

// Save stores the notification, overwriting any previous value and resetting the TTL.
func (r *redisNotificationStore) Save(ctx context.Context, n models.ShownNotification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal shown notification %s: %w", n.ID, err)
	}

	key := notificationKey(n.ID)
	r.logger.Debug("Saving shown notification", zap.String("key", key), zap.Duration("ttl", r.ttl))
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save shown notification", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("failed to save shown notification in redis: %w", err)
	}
	return nil
}

// Get returns models.ErrNotFound when the key is missing or expired.
func (r *redisNotificationStore) Get(ctx context.Context, id string) (*models.ShownNotification, error) {
	key := notificationKey(id)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Shown notification not found", zap.String("key", key))
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get shown notification", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("failed to get shown notification from redis: %w", err)
	}

	var n models.ShownNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		// Данные в Redis повреждены
		r.logger.Error("Corrupted shown notification in redis", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("corrupted shown notification %s in redis: %w", id, err)
	}
	return &n, nil
}

// Delete removes the notification; a missing key is not an error.
func (r *redisNotificationStore) Delete(ctx context.Context, id string) error {
	key := notificationKey(id)
	deleted, err := r.client.Del(ctx, key).Result()
	if err != nil {
		r.logger.Error("Failed to delete shown notification", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("failed to delete shown notification from redis: %w", err)
	}
	r.logger.Debug("Shown notification deleted", zap.String("key", key), zap.Int64("deletedCount", deleted))
	return nil
}
