// Package cache keeps read-mostly user data in Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lunareading/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	userCacheKeyPrefix   = "user:info:"
	userVersionKeyPrefix = "user:version:"
)

// UserCache caches user profiles in Redis.
//
// Every Delete bumps a per-user version. An entry is only served while the version it
// was written with is still current, so a profile loaded from the database before a
// concurrent invalidation can never shadow the newer row.
type UserCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// cachedUser is the stored form of a cache entry
type cachedUser struct {
	Version int64        `json:"version"`
	User    *models.User `json:"user"`
}

// NewUserCache creates a new user cache with the given entry lifetime
func NewUserCache(client redis.Cmdable, ttl time.Duration) *UserCache {
	return &UserCache{
		client: client,
		ttl:    ttl,
	}
}

func userKey(userID int) string {
	return userCacheKeyPrefix + strconv.Itoa(userID)
}

func versionKey(userID int) string {
	return userVersionKeyPrefix + strconv.Itoa(userID)
}

// Version returns the current invalidation version of the user.
// Read it before loading the user from the database and pass it to Set.
func (c *UserCache) Version(ctx context.Context, userID int) (int64, error) {
	version, err := c.client.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache version: %w", err)
	}
	return version, nil
}

// Get returns the cached user, or (nil, nil) if not found or invalidated since it was stored
func (c *UserCache) Get(ctx context.Context, userID int) (*models.User, error) {
	values, err := c.client.MGet(ctx, userKey(userID), versionKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached user: %w", err)
	}
	raw, ok := values[0].(string)
	if !ok {
		return nil, nil
	}

	var current int64
	if v, ok := values[1].(string); ok {
		current, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cache version: %w", err)
		}
	}

	var entry cachedUser
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	if entry.User == nil || entry.Version != current {
		return nil, nil
	}
	return entry.User, nil
}

// Set stores the user in cache, tagged with the version read before the user was loaded
func (c *UserCache) Set(ctx context.Context, user *models.User, version int64) error {
	data, err := json.Marshal(cachedUser{Version: version, User: user})
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := c.client.Set(ctx, userKey(user.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache user: %w", err)
	}
	return nil
}

// Delete drops the cached user and bumps its version
func (c *UserCache) Delete(ctx context.Context, userID int) error {
	if err := c.client.Incr(ctx, versionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached user: %w", err)
	}
	// The version outlives every entry written against it
	if err := c.client.Expire(ctx, versionKey(userID), 2*c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached user: %w", err)
	}
	if err := c.client.Del(ctx, userKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached user: %w", err)
	}
	return nil
}
