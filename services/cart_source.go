package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

// CartSource loads a cart the storefront keeps server-side.
type CartSource interface {
	// LoadCart returns nil items when the user has no cart.
	LoadCart(ctx context.Context, userID string) ([]models.CartItem, error)
}

type storedCart struct {
	UserID    string            `json:"user_id"`
	Items     []models.CartItem `json:"items"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// RedisCartSource reads carts stored under cart:user:<id>.
type RedisCartSource struct {
	client *redis.Client
}

func NewRedisCartSource(client *redis.Client) *RedisCartSource {
	return &RedisCartSource{client: client}
}

func (r *RedisCartSource) getKey(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

func (r *RedisCartSource) LoadCart(ctx context.Context, userID string) ([]models.CartItem, error) {
	data, err := r.client.Get(ctx, r.getKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cart storedCart
	if err := json.Unmarshal([]byte(data), &cart); err != nil {
		return nil, fmt.Errorf("decode cart for user %s: %w", userID, err)
	}
	return cart.Items, nil
}
