// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package chat

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

// safeBuffer is a goroutine-safe bytes.Buffer for capturing session output.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *safeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func newTestSession(name string) (*Session, *safeBuffer) {
	buf := &safeBuffer{}
	return NewSession(name, "127.0.0.1", buf), buf
}

func TestSessionSet_AddRemoveFind(t *testing.T) {
	set := NewSessionSet()
	alice, _ := newTestSession("alice")
	bob, _ := newTestSession("bob")

	set.Add(alice)
	set.Add(bob)
	assert.Equal(t, 2, set.Len())

	found, ok := set.FindByName("bob")
	assert.True(t, ok)
	assert.Same(t, bob, found)

	set.Remove(bob)
	_, ok = set.FindByName("bob")
	assert.False(t, ok)

	// Removing twice is a no-op.
	set.Remove(bob)
	assert.Equal(t, 1, set.Len())
}

func TestSessionSet_SnapshotStableUnderRemoval(t *testing.T) {
	set := NewSessionSet()
	alice, _ := newTestSession("alice")
	bob, _ := newTestSession("bob")
	set.Add(alice)
	set.Add(bob)

	snap := set.Snapshot()
	set.Remove(alice)

	// Iteration over an earlier snapshot is unaffected by the removal.
	assert.Len(t, snap, 2)
	assert.Equal(t, 1, set.Len())
}

func TestSessionSet_ConcurrentChurn(t *testing.T) {
	defer goleak.VerifyNone(t)

	set := NewSessionSet()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s, _ := newTestSession(fmt.Sprintf("user%d", n))
			set.Add(s)
			for _, member := range set.Snapshot() {
				member.Send("churn")
			}
			set.Remove(s)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, set.Len())
}

func TestSession_BlockAndFavorite(t *testing.T) {
	s, _ := newTestSession("bob")

	assert.False(t, s.IsBlocked("alice"))
	s.Block("alice")
	assert.True(t, s.IsBlocked("alice"))

	assert.False(t, s.IsFavorite("carol"))
	s.Favorite("carol")
	assert.True(t, s.IsFavorite("carol"))
}

func TestSession_SendWritesLine(t *testing.T) {
	s, buf := newTestSession("bob")
	s.Send("hello")
	assert.Equal(t, "hello\n", buf.String())
}
