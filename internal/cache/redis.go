package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sengunthar/matrimony/internal/config"
)

// RedisCache holds coordination state only: the reaper lease and the
// warning de-dup markers. Entity state is never cached.
type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// Lease is a held lock. Release it when the guarded work finishes; if the
// holder dies the TTL frees it.
type Lease struct {
	key   string
	token string
	c     *RedisCache
}

// releaseScript deletes the key only if it still holds our token, so an
// expired lease never removes a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLease takes key for ttl. It returns (nil, nil) when another holder
// already owns it.
func (c *RedisCache) AcquireLease(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()
	ok, err := c.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{key: key, token: token, c: c}, nil
}

func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.c.Client, []string{l.key}, l.token).Err()
}

// KeyForWarning identifies one inactivity period of a user. A fresh login
// changes lastLogin and so starts a new period.
func (c *RedisCache) KeyForWarning(userID uint64, lastLogin time.Time) string {
	return fmt.Sprintf("reaper:warned:%d:%d", userID, lastLogin.UnixMilli())
}

// MarkWarned records that the user was warned for this inactivity period.
// It returns false if the marker already existed.
func (c *RedisCache) MarkWarned(ctx context.Context, userID uint64, lastLogin time.Time, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, c.KeyForWarning(userID, lastLogin), 1, ttl).Result()
}

// ForgetWarning drops the marker so a failed warning is retried next run.
func (c *RedisCache) ForgetWarning(ctx context.Context, userID uint64, lastLogin time.Time) error {
	return c.Client.Del(ctx, c.KeyForWarning(userID, lastLogin)).Err()
}
