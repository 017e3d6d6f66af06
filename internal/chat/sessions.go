// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package chat

import (
	"sync"
)

// SessionSet is the global set of active sessions. Add and remove run
// concurrently with broadcast iteration; Snapshot hands iterators a
// stable copy so a concurrent removal never fails or double-delivers.
type SessionSet struct {
	mu      sync.RWMutex
	members map[*Session]struct{}
}

// NewSessionSet creates an empty session set.
func NewSessionSet() *SessionSet {
	return &SessionSet{members: make(map[*Session]struct{})}
}

// Add inserts a session into the set.
func (set *SessionSet) Add(s *Session) {
	set.mu.Lock()
	defer set.mu.Unlock()
	set.members[s] = struct{}{}
}

// Remove deletes a session from the set. Removing an absent session is
// a no-op.
func (set *SessionSet) Remove(s *Session) {
	set.mu.Lock()
	defer set.mu.Unlock()
	delete(set.members, s)
}

// Snapshot returns a copy of the current membership.
func (set *SessionSet) Snapshot() []*Session {
	set.mu.RLock()
	defer set.mu.RUnlock()

	out := make([]*Session, 0, len(set.members))
	for s := range set.members {
		out = append(out, s)
	}
	return out
}

// FindByName returns the first active session with the given display
// name. Names are unique only by convention, not enforced.
func (set *SessionSet) FindByName(name string) (*Session, bool) {
	set.mu.RLock()
	defer set.mu.RUnlock()

	for s := range set.members {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Len returns the current number of active sessions.
func (set *SessionSet) Len() int {
	set.mu.RLock()
	defer set.mu.RUnlock()
	return len(set.members)
}
