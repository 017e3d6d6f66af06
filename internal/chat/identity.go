// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package chat

import (
	"sync"
)

// IdentityMemory remembers the last display name used from each
// connection origin so a returning client can be offered a default.
// A convenience hint only, not authentication: any client claiming the
// same origin inherits the suggestion.
type IdentityMemory struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewIdentityMemory creates an empty identity memory.
func NewIdentityMemory() *IdentityMemory {
	return &IdentityMemory{names: make(map[string]string)}
}

// Remember records the name most recently used from origin.
func (im *IdentityMemory) Remember(origin, name string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.names[origin] = name
}

// LastName returns the name last used from origin, if any.
func (im *IdentityMemory) LastName(origin string) (string, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	name, ok := im.names[origin]
	return name, ok
}
