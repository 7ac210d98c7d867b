package appointment

import (
	"context"
	"sort"
	"sync"
)

// MutexLocker is the in-process Locker for tests and single-node
// deployments. Keys are acquired in sorted order so two callers locking
// overlapping key sets cannot deadlock.
type MutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MutexLocker) lockFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

func (l *MutexLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	ordered := append([]string(nil), keys...)
	sort.Strings(ordered)

	acquired := make([]*sync.Mutex, 0, len(ordered))
	for _, key := range ordered {
		m := l.lockFor(key)
		m.Lock()
		acquired = append(acquired, m)
	}
	defer func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
