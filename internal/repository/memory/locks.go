package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// keyedLocks hands out exclusive locks per key. Waiters block on the
// holder's channel, which is closed on release.
type keyedLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{held: make(map[string]chan struct{})}
}

// acquire waits for key until ctx is done or timeout elapses. A timeout
// yields domain.ErrConcurrencyConflict.
func (k *keyedLocks) acquire(ctx context.Context, key string, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		k.mu.Lock()
		wait, busy := k.held[key]
		if !busy {
			k.held[key] = make(chan struct{})
			k.mu.Unlock()
			return nil
		}
		k.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return fmt.Errorf("acquire %s: %w", key, ctx.Err())
		case <-expired:
			return fmt.Errorf("%w: timed out waiting for %s", domain.ErrConcurrencyConflict, key)
		}
	}
}

func (k *keyedLocks) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if ch, ok := k.held[key]; ok {
		delete(k.held, key)
		close(ch)
	}
}
