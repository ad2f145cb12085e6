package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventStore remembers processed webhook event ids. MarkSeen reports true
// only for the first caller within ttl.
type EventStore interface {
	MarkSeen(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, id string) error
}

type RedisEventStore struct {
	rdb *redis.Client
}

func NewRedisEventStore(rdb *redis.Client) *RedisEventStore {
	return &RedisEventStore{rdb: rdb}
}

func (s *RedisEventStore) MarkSeen(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, eventKey(id), time.Now().Unix(), ttl).Result()
}

func (s *RedisEventStore) Forget(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, eventKey(id)).Err()
}

func eventKey(id string) string {
	return "stripe:event:" + id
}

// sweepInterval bounds how often MarkSeen scans for expired ids.
const sweepInterval = time.Minute

type InMemoryEventStore struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	now       func() time.Time
	lastSweep time.Time
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *InMemoryEventStore) MarkSeen(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
	}
	if exp, ok := s.seen[id]; ok && now.Before(exp) {
		return false, nil
	}
	s.seen[id] = now.Add(ttl)
	return true, nil
}

func (s *InMemoryEventStore) sweep(now time.Time) {
	for id, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, id)
		}
	}
	s.lastSweep = now
}

func (s *InMemoryEventStore) Forget(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, id)
	return nil
}
