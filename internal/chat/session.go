// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

// Package chat implements the line-oriented chat service: sessions,
// offline mailboxes, identity memory, the message router, and the TCP
// server that ties them together.
package chat

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Session is one connected participant. The connection's handler owns
// the session for mutation; the router only references it for delivery.
type Session struct {
	ID     ulid.ULID
	Name   string
	Origin string

	writeMu sync.Mutex
	w       io.Writer

	prefMu    sync.RWMutex
	blacklist map[string]struct{}
	favorites map[string]struct{}
}

// NewSession creates a session writing outbound lines to w.
func NewSession(name, origin string, w io.Writer) *Session {
	return &Session{
		ID:        ulid.Make(),
		Name:      name,
		Origin:    origin,
		w:         w,
		blacklist: make(map[string]struct{}),
		favorites: make(map[string]struct{}),
	}
}

// Send writes one line to the session's transport. Writes are
// serialized so concurrent broadcasts keep per-recipient ordering.
func (s *Session) Send(line string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := fmt.Fprintln(s.w, line); err != nil {
		slog.Debug("session write failed", "session", s.Name, "error", err)
	}
}

// Block adds a sender name to the session's blacklist.
func (s *Session) Block(name string) {
	s.prefMu.Lock()
	defer s.prefMu.Unlock()
	s.blacklist[name] = struct{}{}
}

// Favorite adds a sender name to the session's favorites.
func (s *Session) Favorite(name string) {
	s.prefMu.Lock()
	defer s.prefMu.Unlock()
	s.favorites[name] = struct{}{}
}

// IsBlocked reports whether broadcasts from name are suppressed.
func (s *Session) IsBlocked(name string) bool {
	s.prefMu.RLock()
	defer s.prefMu.RUnlock()
	_, ok := s.blacklist[name]
	return ok
}

// IsFavorite reports whether broadcasts from name are highlighted.
func (s *Session) IsFavorite(name string) bool {
	s.prefMu.RLock()
	defer s.prefMu.RUnlock()
	_, ok := s.favorites[name]
	return ok
}
