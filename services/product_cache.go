package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kingjethro999/the-ecommerce-api/models"
	"github.com/redis/go-redis/v9"
)

const activeProductsCacheKey = "stripe:products:active"

// ProductCache holds the gateway's active product list between checkouts.
type ProductCache interface {
	Get(ctx context.Context) ([]models.GatewayProduct, bool)
	Set(ctx context.Context, products []models.GatewayProduct) error
	Invalidate(ctx context.Context) error
}

type RedisProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProductCache(client *redis.Client, ttl time.Duration) *RedisProductCache {
	return &RedisProductCache{client: client, ttl: ttl}
}

// Get reports a miss on any Redis or decoding error.
func (c *RedisProductCache) Get(ctx context.Context) ([]models.GatewayProduct, bool) {
	data, err := c.client.Get(ctx, activeProductsCacheKey).Result()
	if err != nil {
		return nil, false
	}
	var products []models.GatewayProduct
	if err := json.Unmarshal([]byte(data), &products); err != nil {
		return nil, false
	}
	return products, true
}

func (c *RedisProductCache) Set(ctx context.Context, products []models.GatewayProduct) error {
	data, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, activeProductsCacheKey, data, c.ttl).Err()
}

func (c *RedisProductCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, activeProductsCacheKey).Err()
}
