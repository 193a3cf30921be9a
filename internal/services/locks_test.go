package services

import (
	"sync"
	"testing"
)

func TestConversationLocksSerializeSameConversation(t *testing.T) {
	locks := NewConversationLocks()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(7)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 serialized increments, got %d", counter)
	}
}

func TestConversationLocksAreIndependentAcrossConversations(t *testing.T) {
	locks := NewConversationLocks()

	unlockA := locks.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock(2)
		unlockB()
		close(done)
	}()

	// A held lock on one conversation must not block another.
	<-done
}

func TestConversationLocksReleaseEntries(t *testing.T) {
	locks := NewConversationLocks()

	unlock := locks.Lock(42)
	unlock()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.entries) != 0 {
		t.Fatalf("expected entry map drained after release, got %d entries", len(locks.entries))
	}
}
