// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/forgechat/forgechat/internal/observability"
)

// Server accepts chat connections and runs one handler goroutine per
// connection.
type Server struct {
	addr      string
	router    *Router
	sessions  *SessionSet
	mailboxes *MailboxStore
	identity  *IdentityMemory

	mu       sync.RWMutex
	listener net.Listener
}

// NewServer creates a chat server over the shared stores.
func NewServer(addr string, router *Router, sessions *SessionSet, mailboxes *MailboxStore, identity *IdentityMemory) *Server {
	return &Server{
		addr:      addr,
		router:    router,
		sessions:  sessions,
		mailboxes: mailboxes,
		identity:  identity,
	}
}

// Addr returns the server's listen address, or "" before Run.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("chat server started", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			slog.Debug("error closing listener", "error", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		observability.RecordConnection()
		handler := newConnHandler(conn, s.router, s.sessions, s.mailboxes, s.identity)
		go handler.Handle(ctx)
	}
}
