package businessflow

import "sync"

// badgeLocks serializes resolution per badge. Concurrent rebuilds of different
// badges proceed independently; a second rebuild of the same badge is rejected
// instead of queued.
type badgeLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newBadgeLocks() *badgeLocks {
	return &badgeLocks{locks: make(map[uint]*sync.Mutex)}
}

func (b *badgeLocks) get(badgeID uint) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.locks[badgeID]
	if !ok {
		m = &sync.Mutex{}
		b.locks[badgeID] = m
	}
	return m
}

// TryLock acquires the badge's resolution lock without blocking
func (b *badgeLocks) TryLock(badgeID uint) bool {
	return b.get(badgeID).TryLock()
}

// Unlock releases the badge's resolution lock
func (b *badgeLocks) Unlock(badgeID uint) {
	b.get(badgeID).Unlock()
}
