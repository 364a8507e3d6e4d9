// Package lock implements a best-effort distributed mutex over a key prefix
// in the object store. Correctness depends on the store's LastModified
// granularity: it is appropriate for coalescing concurrent writers from the
// same process or closely-collaborating workers, not for Byzantine-safe
// mutual exclusion.
package lock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"caseflow/internal/objectstore"
)

const staleGrace = 1 * time.Second

type lease struct {
	OwnerID   string  `json:"owner_id"`
	Token     string  `json:"token"`
	CreatedAt float64 `json:"created_at"`
	TTL       float64 `json:"ttl"`
}

// Locker acquires best-effort locks scoped under a single key prefix
// (normally <operator>/<user>/locks/).
type Locker struct {
	store   objectstore.Backend
	prefix  string
	timeout time.Duration
	poll    time.Duration
	ttl     time.Duration
	ownerID string
}

// Lock is a held, scoped acquisition; call Release exactly once, typically
// via defer, to guarantee release on every exit path.
type Lock struct {
	locker *Locker
	key    string
}

func New(store objectstore.Backend, prefix string, timeout, poll, ttl time.Duration) *Locker {
	hostname, _ := os.Hostname()
	return &Locker{
		store:   store,
		prefix:  prefix,
		timeout: timeout,
		poll:    poll,
		ttl:     ttl,
		ownerID: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
	}
}

// Acquire writes our lease, then repeatedly lists the prefix until our own
// key is the earliest non-stale entry, or the timeout elapses.
func (l *Locker) Acquire(ctx context.Context) (*Lock, error) {
	token := fmt.Sprintf("%s-%s", l.ownerID, uuid.NewString())
	key := fmt.Sprintf("%s/%s.json", l.prefix, token)

	now := time.Now()
	if err := l.store.PutJSON(ctx, key, lease{
		OwnerID:   l.ownerID,
		Token:     token,
		CreatedAt: float64(now.Unix()),
		TTL:       l.ttl.Seconds(),
	}); err != nil {
		return nil, fmt.Errorf("writing lease: %w", err)
	}

	deadline := time.Now().Add(l.timeout)
	for {
		objects, err := l.store.ListObjects(ctx, l.prefix)
		if err != nil {
			return nil, fmt.Errorf("listing lock prefix: %w", err)
		}
		if len(objects) > 0 {
			winner := earliest(objects)
			age := time.Since(time.Unix(int64(winner.LastModifiedUnix), 0))
			if age > l.ttl+staleGrace {
				if err := l.store.Delete(ctx, winner.Key); err != nil {
					log.Warn().Err(err).Str("key", winner.Key).Msg("failed to evict stale lock, ignoring")
				}
				continue
			}
			if winner.Key == key {
				return &Lock{locker: l, key: key}, nil
			}
		}
		if time.Now().After(deadline) {
			_ = l.store.Delete(ctx, key)
			return nil, fmt.Errorf("timed out acquiring lock on %s", l.prefix)
		}
		select {
		case <-ctx.Done():
			_ = l.store.Delete(ctx, key)
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// Release deletes our own lease key, best-effort.
func (lk *Lock) Release(ctx context.Context) {
	if err := lk.locker.store.Delete(ctx, lk.key); err != nil {
		log.Warn().Err(err).Str("key", lk.key).Msg("failed to release lock, ignoring")
	}
}

func earliest(objects []objectstore.Object) objectstore.Object {
	winner := objects[0]
	for _, obj := range objects[1:] {
		if obj.LastModifiedUnix < winner.LastModifiedUnix {
			winner = obj
		}
	}
	return winner
}
