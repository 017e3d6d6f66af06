// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeImage satisfies Image with an in-memory symbol table.
type fakeImage struct {
	symbols map[string]any
	closed  atomic.Bool
}

func (f *fakeImage) Lookup(name string) (any, error) {
	sym, ok := f.symbols[name]
	if !ok {
		return nil, fmt.Errorf("symbol %q not found", name)
	}
	return sym, nil
}

func (f *fakeImage) Close() error {
	f.closed.Store(true)
	return nil
}

func newFakeImage(name, desc string, handler func(string, string) string) *fakeImage {
	if handler == nil {
		handler = func(sender, text string) string {
			return fmt.Sprintf("%s said %q", sender, text)
		}
	}
	return &fakeImage{symbols: map[string]any{
		SymbolName:          func() string { return name },
		SymbolDescription:   func() string { return desc },
		SymbolHandleMessage: handler,
	}}
}

// staticOpener always returns the same image.
func staticOpener(img Image) ImageOpener {
	return func(string) (Image, error) { return img, nil }
}

// scriptedOpener returns the given images in order, repeating the last
// one once the script is exhausted.
func scriptedOpener(images ...Image) ImageOpener {
	var mu sync.Mutex
	idx := 0
	return func(string) (Image, error) {
		mu.Lock()
		defer mu.Unlock()
		img := images[idx]
		if idx < len(images)-1 {
			idx++
		}
		return img, nil
	}
}

// factoryOpener mints a fresh fake image per open.
func factoryOpener(name, desc string) ImageOpener {
	return func(string) (Image, error) {
		return newFakeImage(name, desc, nil), nil
	}
}

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("not a real library"), 0o755))
	return path
}

func shadowFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ShadowPrefix+"*"))
	require.NoError(t, err)
	return matches
}

// recordingNotifier captures lifecycle notices for assertions.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (n *recordingNotifier) SystemNotice(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, text)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notices...)
}
