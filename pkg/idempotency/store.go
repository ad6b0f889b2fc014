package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store tracks processed identifiers in Redis so at-least-once consumers
// can skip redeliveries. Entries expire after ttl, which bounds the set;
// the broker's retention makes redelivery of very old messages moot.
type Store struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
}

func NewStore(rdb *redis.Client, namespace string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, namespace: namespace, ttl: ttl}
}

// Seen atomically marks id as processed and reports whether it had been
// marked before. The first caller for an id gets false and owns the
// processing; everyone after gets true.
func (s *Store) Seen(ctx context.Context, id string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.key(id), "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forget releases the mark for id so a redelivery can claim it again.
// Called when processing fails after the mark was taken.
func (s *Store) Forget(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}

func (s *Store) key(id string) string {
	return s.namespace + ":" + id
}
