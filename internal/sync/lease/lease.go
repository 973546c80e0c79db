// Package lease provides the per-entity-type exclusive lease the sync
// orchestrator acquires before running a job, so that at most one sync job
// per entity type runs concurrently (spec §4.4/§5). Two backends are
// provided: an in-memory Local lease for single-instance deployments, and a
// Redis-backed lease using SETNX+TTL for multi-instance deployments.
package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by TryAcquire when another holder already owns the
// lease for entityType.
var ErrHeld = errors.New("lease: already held")

// Manager acquires and releases per-entity-type leases.
type Manager interface {
	// TryAcquire attempts to take the lease for entityType. It returns
	// ErrHeld if another holder already has it. The returned release func
	// must be called exactly once to give the lease back up.
	TryAcquire(ctx context.Context, entityType string, ttl time.Duration) (release func(), err error)
}

// Local is an in-memory Manager backed by a mutex map, suitable for a
// single-instance deployment.
type Local struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocal() *Local {
	return &Local{held: make(map[string]bool)}
}

func (l *Local) TryAcquire(_ context.Context, entityType string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[entityType] {
		return nil, ErrHeld
	}
	l.held[entityType] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, entityType)
			l.mu.Unlock()
		})
	}
	return release, nil
}

// Redis is a cross-instance Manager backed by SETNX with a TTL, so a crashed
// holder's lease eventually expires instead of wedging the entity type
// forever.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "analytics-sync:lease:"}
}

func (r *Redis) TryAcquire(ctx context.Context, entityType string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	key := r.prefix + entityType

	ok, err := r.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			r.client.Del(releaseCtx, key)
		})
	}
	return release, nil
}
