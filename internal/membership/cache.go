package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/devcollab/server/internal/domain"
)

// RoleCache is the TTL cache in front of the membership store.
// Implementations must treat their own failures as misses: the cache can
// only ever cost an extra store read, never a wrong answer.
type RoleCache interface {
	Get(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.Role, bool)
	Set(ctx context.Context, room domain.RoomID, user domain.UserID, role domain.Role, ttl time.Duration)
	Invalidate(ctx context.Context, room domain.RoomID, user domain.UserID)
	InvalidateRoom(ctx context.Context, room domain.RoomID)
}

func roleKey(room domain.RoomID, user domain.UserID) string {
	return fmt.Sprintf("devcollab:cache:workspace:%s:user:%s:role", room, user)
}

type RedisRoleCache struct {
	rdb *redis.Client
}

func NewRedisRoleCache(rdb *redis.Client) *RedisRoleCache {
	return &RedisRoleCache{rdb: rdb}
}

func (c *RedisRoleCache) Get(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.Role, bool) {
	val, err := c.rdb.Get(ctx, roleKey(room, user)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("module", "membership.cache").Msg("cache get failed")
		}
		return "", false
	}
	role := domain.Role(val)
	if !role.Valid() {
		return "", false
	}
	return role, true
}

func (c *RedisRoleCache) Set(ctx context.Context, room domain.RoomID, user domain.UserID, role domain.Role, ttl time.Duration) {
	if err := c.rdb.Set(ctx, roleKey(room, user), string(role), ttl).Err(); err != nil {
		log.Warn().Err(err).Str("module", "membership.cache").Msg("cache set failed")
	}
}

func (c *RedisRoleCache) Invalidate(ctx context.Context, room domain.RoomID, user domain.UserID) {
	if err := c.rdb.Del(ctx, roleKey(room, user)).Err(); err != nil {
		log.Warn().Err(err).Str("module", "membership.cache").Msg("cache invalidate failed")
	}
}

// InvalidateRoom drops every cached role for the room. SCAN rather than
// KEYS so a large keyspace does not stall redis.
func (c *RedisRoleCache) InvalidateRoom(ctx context.Context, room domain.RoomID) {
	pattern := fmt.Sprintf("devcollab:cache:workspace:%s:user:*:role", room)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			log.Warn().Err(err).Str("module", "membership.cache").Str("key", iter.Val()).Msg("cache invalidate failed")
		}
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Str("module", "membership.cache").Msg("cache scan failed")
	}
}

// noopCache disables caching when redis is not configured; every read
// goes to the store. Single-instance deployments lose nothing but latency.
type noopCache struct{}

func NewNoopCache() RoleCache { return noopCache{} }

func (noopCache) Get(context.Context, domain.RoomID, domain.UserID) (domain.Role, bool) {
	return "", false
}
func (noopCache) Set(context.Context, domain.RoomID, domain.UserID, domain.Role, time.Duration) {}
func (noopCache) Invalidate(context.Context, domain.RoomID, domain.UserID)                      {}
func (noopCache) InvalidateRoom(context.Context, domain.RoomID)                                 {}
