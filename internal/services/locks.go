package services

import "sync"

// ConversationLocks serializes mutating work per conversation. Sends, rejoins
// with their incremental sweep, and global-sweep teardown all take the same
// conversation's lock; different conversations proceed in parallel.
type ConversationLocks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewConversationLocks() *ConversationLocks {
	return &ConversationLocks{entries: make(map[int64]*lockEntry)}
}

// Lock blocks until the conversation's critical section is free and returns
// the matching unlock. Entries are dropped once the last holder releases.
func (l *ConversationLocks) Lock(conversationID int64) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.entries[conversationID]
	if !ok {
		entry = &lockEntry{}
		l.entries[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, conversationID)
		}
		l.mu.Unlock()
	}
}
