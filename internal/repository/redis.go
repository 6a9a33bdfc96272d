package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leihlokal/internal/config"
	"leihlokal/internal/domain"
	"leihlokal/internal/models"

	"github.com/redis/go-redis/v9"
)

const keyspace = "leih:"

var errNoRedis = errors.New("redis client is nil")

func dragKey(sessionID string) string { return keyspace + "drag:" + sessionID }
func rateKey(key string) string       { return keyspace + "rate:" + key }

// RedisStateRepository keeps drag sessions and rate counters in Redis so that
// several API replicas can share a gesture.
type RedisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.StateRepository = (*RedisStateRepository)(nil)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStateRepository(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{client: client, ttl: ttl}
}

func (r *RedisStateRepository) GetDragState(ctx context.Context, sessionID string) (*models.DragState, error) {
	if r.client == nil {
		return nil, errNoRedis
	}
	raw, err := r.client.Get(ctx, dragKey(sessionID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis get drag %s: %w", sessionID, err)
	}

	state := new(models.DragState)
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode drag %s: %w", sessionID, err)
	}
	return state, nil
}

// SetDragState writes the session and restarts its expiry.
func (r *RedisStateRepository) SetDragState(ctx context.Context, state *models.DragState) error {
	if r.client == nil {
		return errNoRedis
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode drag %s: %w", state.SessionID, err)
	}
	if err := r.client.Set(ctx, dragKey(state.SessionID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set drag %s: %w", state.SessionID, err)
	}
	return nil
}

func (r *RedisStateRepository) ClearDragState(ctx context.Context, sessionID string) error {
	if r.client == nil {
		return errNoRedis
	}
	if err := r.client.Del(ctx, dragKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del drag %s: %w", sessionID, err)
	}
	return nil
}

// CheckRateLimit counts hits in a fixed window. The window starts with the
// first hit: SETNX creates the counter with its expiry, INCR keeps the TTL.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNoRedis
	}
	k := rateKey(key)

	var hits *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, k, 0, window)
		hits = p.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis rate %s: %w", key, err)
	}
	return hits.Val() <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
