package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/tablepos/pkg/config"
	"github.com/go-redis/redis/v8"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

// Client exposes the underlying client for pub/sub.
func (r *RedisRepository) Client() *redis.Client {
	return r.client
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// CachedGuest is the cached result of a guest lookup by phone number.
type CachedGuest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// GuestCache is the part of the cache the user repository needs.
type GuestCache interface {
	CacheGuest(ctx context.Context, guest *CachedGuest) error
	GetGuestCache(ctx context.Context, phone string) (*CachedGuest, error)
	InvalidateGuest(ctx context.Context, phone string) error
}

func guestKey(phone string) string {
	return fmt.Sprintf("guest:%s", phone)
}

func (r *RedisRepository) CacheGuest(ctx context.Context, guest *CachedGuest) error {
	ttl := r.config.GuestTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return r.SetJSON(ctx, guestKey(guest.Phone), guest, ttl)
}

func (r *RedisRepository) GetGuestCache(ctx context.Context, phone string) (*CachedGuest, error) {
	var guest CachedGuest
	if err := r.GetJSON(ctx, guestKey(phone), &guest); err != nil {
		return nil, err
	}
	return &guest, nil
}

func (r *RedisRepository) InvalidateGuest(ctx context.Context, phone string) error {
	return r.Del(ctx, guestKey(phone))
}
