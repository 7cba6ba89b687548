package chat

import (
	"sync"

	"github.com/google/uuid"
)

// conversationLocks serializes turns per conversation. A turn holds its
// conversation's lock for the whole pipeline so concurrent requests against
// the same conversation cannot interleave their commits, while turns on
// different conversations proceed independently.
//
// Entries are refcounted and removed when the last holder releases, so the
// map does not grow with the number of conversations ever seen.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[uuid.UUID]*lockEntry)}
}

// acquire blocks until the lock for id is held and returns the release
// function. The release function must be called exactly once.
func (c *conversationLocks) acquire(id uuid.UUID) func() {
	c.mu.Lock()
	entry, ok := c.locks[id]
	if !ok {
		entry = &lockEntry{}
		c.locks[id] = entry
	}
	entry.refs++
	c.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		c.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(c.locks, id)
		}
		c.mu.Unlock()
	}
}
