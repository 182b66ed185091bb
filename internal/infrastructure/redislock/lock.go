package redislock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"FriendReminder/internal/ports"
)

const (
	defaultKey = "friendreminder:tick"
	defaultTTL = 5 * time.Minute
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock serializes ticks across replicas with a single Redis key.
// The TTL bounds how long a crashed holder can block other replicas.
type Lock struct {
	rdb   goredis.UniversalClient
	key   string
	ttl   time.Duration
	token string
}

var _ ports.TickGuard = (*Lock)(nil)

// New returns a lock backed by rdb.
func New(rdb goredis.UniversalClient, key string, ttl time.Duration) *Lock {
	if strings.TrimSpace(key) == "" {
		key = defaultKey
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Lock{rdb: rdb, key: key, ttl: ttl, token: uuid.NewString()}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*goredis.Client, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// TryAcquire sets the key if absent. It returns false when another holder owns it.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	return ok, nil
}

// Release drops the key if it is still ours; an expired or stolen lock is left alone.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
