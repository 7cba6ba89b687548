package chat

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestConversationLocks_MutualExclusion tests that one id admits one holder
func TestConversationLocks_MutualExclusion(t *testing.T) {
	t.Parallel()

	locks := newConversationLocks()
	id := uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire(id)
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

// TestConversationLocks_IndependentIDs tests that distinct ids do not block each other
func TestConversationLocks_IndependentIDs(t *testing.T) {
	t.Parallel()

	locks := newConversationLocks()
	a, b := uuid.New(), uuid.New()

	releaseA := locks.acquire(a)
	done := make(chan struct{})
	go func() {
		releaseB := locks.acquire(b)
		releaseB()
		close(done)
	}()

	<-done // must complete while a is still held
	releaseA()
}

// TestConversationLocks_EntryReclaimed tests refcounted map cleanup
func TestConversationLocks_EntryReclaimed(t *testing.T) {
	t.Parallel()

	locks := newConversationLocks()
	id := uuid.New()

	release := locks.acquire(id)
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks, "released entries must not leak")
}
