// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

// Package admin provides the administrative HTTP surface: submitting
// plugin source for compilation, listing artifacts, and managing the
// plugin lifecycle.
package admin

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/forgechat/forgechat/internal/build"
	"github.com/forgechat/forgechat/internal/plugin"
)

// PluginService exposes the lifecycle operations the admin surface
// drives.
type PluginService interface {
	Register(ctx context.Context, originalPath string) (*plugin.Record, error)
	Unload(command string) error
	Delete(file, command string) (plugin.DeleteOutcome, error)
	List() ([]plugin.Info, error)
}

// Builder compiles submitted plugin source into an artifact.
type Builder interface {
	Compile(ctx context.Context, name, source string) (*build.Result, error)
}

// Server serves the administrative HTTP endpoints.
type Server struct {
	addr       string
	pluginsDir string
	plugins    PluginService
	builder    Builder

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an admin server over the given services.
// pluginsDir is where managed artifacts live on disk.
func NewServer(addr, pluginsDir string, plugins PluginService, builder Builder) *Server {
	return &Server{
		addr:       addr,
		pluginsDir: pluginsDir,
		plugins:    plugins,
		builder:    builder,
	}
}

// Start begins serving. It returns an error channel that receives any
// error from the HTTP server after startup; the channel is closed on
// graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("admin server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("admin server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("admin server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Handler builds the admin route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/compile", s.handleCompile)
	mux.HandleFunc("/list", s.handleList)
	mux.HandleFunc("/manage", s.handleManage)
	mux.HandleFunc("/", s.handleFrontend)
	return mux
}

// Stop gracefully shuts down the admin server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_admin_server").Wrap(err)
		}
	}

	slog.Info("admin server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if not
// running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
