package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

type redisEventLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEventLedger keeps event ids under idem:webhook:<id> for ttl, which
// should exceed Stripe's redelivery window (three days).
func NewRedisEventLedger(client *redis.Client, ttl time.Duration) EventLedger {
	return &redisEventLedger{client: client, ttl: ttl}
}

func (l *redisEventLedger) key(eventID string) string {
	return "idem:webhook:" + eventID
}

func (l *redisEventLedger) Lookup(ctx context.Context, eventID string) (*models.WebhookEventRecord, error) {
	data, err := l.client.Get(ctx, l.key(eventID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec models.WebhookEventRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *redisEventLedger) Record(ctx context.Context, rec *models.WebhookEventRecord) error {
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return l.client.SetNX(ctx, l.key(rec.EventID), data, l.ttl).Err()
}
