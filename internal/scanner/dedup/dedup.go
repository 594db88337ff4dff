package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Guard suppresses repeated scans of the same code from the same device
// inside a short window. Acquire reports true for the first scan.
type Guard interface {
	Acquire(ctx context.Context, deviceID, code string) (bool, error)
}

func key(deviceID, code string) string {
	return fmt.Sprintf("scan_dedup:%s:%s", deviceID, code)
}

// RedisGuard shares the window across service replicas.
type RedisGuard struct {
	Client *redis.Client
	Window time.Duration
}

func NewRedisGuard(client *redis.Client, window time.Duration) *RedisGuard {
	return &RedisGuard{Client: client, Window: window}
}

func (g *RedisGuard) Acquire(ctx context.Context, deviceID, code string) (bool, error) {
	if g.Window <= 0 {
		return true, nil
	}
	ok, err := g.Client.SetNX(ctx, key(deviceID, code), time.Now().UnixNano(), g.Window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: %w", err)
	}
	return ok, nil
}

// MemoryGuard is the single-process fallback.
type MemoryGuard struct {
	mu      sync.Mutex
	window  time.Duration
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryGuard(window time.Duration) *MemoryGuard {
	return &MemoryGuard{
		window:  window,
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, deviceID, code string) (bool, error) {
	if g.window <= 0 {
		return true, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	k := key(deviceID, code)
	if exp, ok := g.expires[k]; ok && now.Before(exp) {
		return false, nil
	}
	g.expires[k] = now.Add(g.window)

	// sweep so the map stays bounded by scans in the last window
	if len(g.expires) > 1024 {
		for k, exp := range g.expires {
			if !now.Before(exp) {
				delete(g.expires, k)
			}
		}
	}
	return true, nil
}
