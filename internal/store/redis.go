package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"drawflow/internal/scene"
)

// RedisStore keeps room records in redis, one string value per key.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to the given address. The connection is verified lazily:
// a relay must come up even while redis is down, so no ping happens here.
func NewRedis(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewRedisFromURL accepts a redis:// URL.
func NewRedisFromURL(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStore) LoadShapes(ctx context.Context, roomID string) ([]scene.Shape, error) {
	data, err := s.client.Get(ctx, shapesKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var shapes []scene.Shape
	if err := json.Unmarshal(data, &shapes); err != nil {
		return nil, fmt.Errorf("parse shapes for room %s: %w", roomID, err)
	}
	return shapes, nil
}

func (s *RedisStore) SaveShapes(ctx context.Context, roomID string, shapes []scene.Shape) error {
	if shapes == nil {
		shapes = []scene.Shape{}
	}
	data, err := json.Marshal(shapes)
	if err != nil {
		return fmt.Errorf("marshal shapes: %w", err)
	}
	if err := s.client.Set(ctx, shapesKey(roomID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) LoadSettings(ctx context.Context, roomID string) (*scene.RoomSettings, error) {
	data, err := s.client.Get(ctx, settingsKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var settings scene.RoomSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse settings for room %s: %w", roomID, err)
	}
	return &settings, nil
}

func (s *RedisStore) SaveSettings(ctx context.Context, roomID string, settings *scene.RoomSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.client.Set(ctx, settingsKey(roomID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, shapesKey(roomID), settingsKey(roomID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
