// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package chat

import (
	"sync"
)

// MailboxCapacity bounds pending messages per recipient. The attempt
// that would exceed it fails back to the sender, never the owner.
const MailboxCapacity = 10

// MailboxStore holds pending private messages for recipients who are
// not connected. One mutex guards every box, so the capacity check
// never races a concurrent append and drain-on-login is atomic.
type MailboxStore struct {
	mu    sync.Mutex
	boxes map[string][]string
}

// NewMailboxStore creates an empty mailbox store.
func NewMailboxStore() *MailboxStore {
	return &MailboxStore{boxes: make(map[string][]string)}
}

// Append stores one formatted line for the recipient. Returns a
// CAPACITY_EXCEEDED error when the box already holds MailboxCapacity
// entries, leaving the box unchanged.
func (m *MailboxStore) Append(recipient, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	box := m.boxes[recipient]
	if len(box) >= MailboxCapacity {
		return ErrMailboxFull(recipient)
	}
	m.boxes[recipient] = append(box, line)
	return nil
}

// Drain removes and returns the recipient's pending messages in arrival
// order. The box ceases to exist; no message is visible both before and
// after a login.
func (m *MailboxStore) Drain(recipient string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	box := m.boxes[recipient]
	delete(m.boxes, recipient)
	return box
}

// Pending returns the number of messages waiting for the recipient.
func (m *MailboxStore) Pending(recipient string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.boxes[recipient])
}
