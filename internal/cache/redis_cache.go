package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/goods-transport/internal/models"
)

// RedisCache implements Cache on a shared redis instance. Ban markers are
// plain strings; locations and user details are JSON blobs. TTLs are enforced
// by redis itself so a crashed process never leaves stale gates behind.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{client: c}
}

func (r *RedisCache) Ban(ctx context.Context, userID, reason string, ttl time.Duration) error {
	return r.client.Set(ctx, banKey(userID), reason, ttl).Err()
}

func (r *RedisCache) BanReason(ctx context.Context, userID string) (string, bool, error) {
	v, err := r.client.Get(ctx, banKey(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisCache) SetLocation(ctx context.Context, kind, subjectID string, loc models.Location, ttl time.Duration) error {
	b, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, kind+":"+subjectID, b, ttl).Err()
}

func (r *RedisCache) Location(ctx context.Context, kind, subjectID string) (models.Location, bool, error) {
	v, err := r.client.Get(ctx, kind+":"+subjectID).Bytes()
	if err == redis.Nil {
		return models.Location{}, false, nil
	}
	if err != nil {
		return models.Location{}, false, err
	}
	var loc models.Location
	if err := json.Unmarshal(v, &loc); err != nil {
		return models.Location{}, false, err
	}
	return loc, true, nil
}

func (r *RedisCache) SetUser(ctx context.Context, u models.User, ttl time.Duration) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, userKey(u.ID), b, ttl).Err()
}

func (r *RedisCache) User(ctx context.Context, userID string) (models.User, bool, error) {
	v, err := r.client.Get(ctx, userKey(userID)).Bytes()
	if err == redis.Nil {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	var u models.User
	if err := json.Unmarshal(v, &u); err != nil {
		return models.User{}, false, err
	}
	return u, true, nil
}

func (r *RedisCache) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisCache) Close() error { return r.client.Close() }
