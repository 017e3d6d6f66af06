// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"strings"
)

// connHandler drives one connection through the session state machine:
// Connecting -> Naming -> Active -> Closed.
type connHandler struct {
	conn      net.Conn
	reader    *bufio.Reader
	router    *Router
	sessions  *SessionSet
	mailboxes *MailboxStore
	identity  *IdentityMemory

	session *Session
}

func newConnHandler(conn net.Conn, router *Router, sessions *SessionSet, mailboxes *MailboxStore, identity *IdentityMemory) *connHandler {
	return &connHandler{
		conn:      conn,
		reader:    bufio.NewReader(conn),
		router:    router,
		sessions:  sessions,
		mailboxes: mailboxes,
		identity:  identity,
	}
}

// Handle processes the connection until it closes. A new connection
// under a previously used name is an entirely new session.
func (h *connHandler) Handle(ctx context.Context) {
	defer func() {
		if err := h.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Debug("error closing connection", "error", err)
		}
		if h.session != nil {
			h.sessions.Remove(h.session)
			h.router.BroadcastSystem(h.session.Name + " left.")
		}
	}()

	origin := originFromAddr(h.conn.RemoteAddr())
	remembered, _ := h.identity.LastName(origin)
	fmt.Fprintln(h.conn, namingPrompt(remembered))

	lineCh := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		for {
			line, err := h.reader.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			lineCh <- strings.TrimRight(line, "\r\n")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-errCh:
			if !errors.Is(err, io.EOF) {
				slog.Debug("connection read error", "origin", origin, "error", err)
			}
			return

		case line := <-lineCh:
			if h.session == nil {
				h.enterActive(resolveName(line, remembered), origin)
				continue
			}
			if line != "" {
				h.router.Dispatch(h.session, line)
			}
		}
	}
}

// enterActive transitions the connection into the Active state: join
// the session set, announce the arrival, send help, drain the mailbox.
func (h *connHandler) enterActive(name, origin string) {
	h.identity.Remember(origin, name)
	h.session = NewSession(name, origin, h.conn)
	h.sessions.Add(h.session)

	h.router.BroadcastSystem(name + " joined.")
	h.router.SendHelp(h.session)

	if mail := h.mailboxes.Drain(name); len(mail) > 0 {
		h.session.Send(HeaderLine(fmt.Sprintf("You have %d new offline messages:", len(mail))))
		for _, m := range mail {
			h.session.Send(m)
		}
	}

	slog.Info("session active", "name", name, "origin", origin, "session_id", h.session.ID.String())
}

// namingPrompt builds the connect-time prompt, parenthesizing the
// remembered default when one exists.
func namingPrompt(remembered string) string {
	prompt := "Enter name"
	if remembered != "" {
		prompt += " (Press ENTER to use '" + remembered + "')"
	}
	return prompt + ":"
}

// resolveName applies the naming rules: an empty reply accepts the
// remembered default; an empty reply with no default gets a generated
// placeholder.
func resolveName(input, remembered string) string {
	name := strings.TrimSpace(input)
	if name != "" {
		return name
	}
	if remembered != "" {
		return remembered
	}
	return fmt.Sprintf("User_%d", rand.IntN(1000))
}

// originFromAddr extracts the host part of a remote address for
// identity memory.
func originFromAddr(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
