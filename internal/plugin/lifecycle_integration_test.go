// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

//go:build integration

package plugin_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/forgechat/forgechat/internal/plugin"
)

// stubImage backs the lifecycle specs with an in-memory symbol table so
// the suite runs without compiling real shared objects.
type stubImage struct {
	name, desc string
	reply      string
	closed     atomic.Bool
}

func (s *stubImage) Lookup(symbol string) (any, error) {
	switch symbol {
	case plugin.SymbolName:
		return func() string { return s.name }, nil
	case plugin.SymbolDescription:
		return func() string { return s.desc }, nil
	case plugin.SymbolHandleMessage:
		return func(sender, text string) string { return s.reply }, nil
	}
	return nil, fmt.Errorf("symbol %q not found", symbol)
}

func (s *stubImage) Close() error {
	s.closed.Store(true)
	return nil
}

var _ = Describe("Plugin Lifecycle", func() {
	var (
		dir     string
		manager *plugin.Manager
		opened  []*stubImage
		mu      sync.Mutex
	)

	writeArtifact := func(name string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte("artifact bytes"), 0o755)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		opened = nil
		opener := func(path string) (plugin.Image, error) {
			mu.Lock()
			defer mu.Unlock()
			img := &stubImage{name: "hi", desc: "greets", reply: fmt.Sprintf("v%d", len(opened)+1)}
			opened = append(opened, img)
			return img, nil
		}
		manager = plugin.NewManager(dir, plugin.NewLoader(opener))
	})

	AfterEach(func() {
		manager.Close()
	})

	Describe("register and invoke", func() {
		It("serves the command after registration", func() {
			artifact := writeArtifact("greet.so")

			rec, err := manager.Register(context.Background(), artifact)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Command).To(Equal("hi"))

			out, err := manager.Invoke("hi", "alice", "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("v1"))
		})

		It("leaves the author-facing artifact unlocked", func() {
			artifact := writeArtifact("greet.so")

			_, err := manager.Register(context.Background(), artifact)
			Expect(err).NotTo(HaveOccurred())

			Expect(os.WriteFile(artifact, []byte("recompiled"), 0o755)).To(Succeed())
			Expect(os.Remove(artifact)).To(Succeed())
		})
	})

	Describe("hot swap", func() {
		It("replaces the handler without a visible gap", func() {
			artifact := writeArtifact("greet.so")

			_, err := manager.Register(context.Background(), artifact)
			Expect(err).NotTo(HaveOccurred())

			stop := make(chan struct{})
			failures := make(chan error, 64)
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					if _, err := manager.Invoke("hi", "carol", "ping"); err != nil {
						select {
						case failures <- err:
						default:
						}
					}
				}
			}()

			_, err = manager.Register(context.Background(), artifact)
			Expect(err).NotTo(HaveOccurred())

			close(stop)
			wg.Wait()
			Expect(failures).NotTo(Receive())

			out, err := manager.Invoke("hi", "alice", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("v2"))

			Expect(opened[0].closed.Load()).To(BeTrue())
			shadows, globErr := filepath.Glob(filepath.Join(dir, plugin.ShadowPrefix+"*"))
			Expect(globErr).NotTo(HaveOccurred())
			Expect(shadows).To(HaveLen(1))
		})
	})

	Describe("delete", func() {
		It("removes the artifact, sidecar, and registration", func() {
			artifact := writeArtifact("greet.so")

			_, err := manager.Register(context.Background(), artifact)
			Expect(err).NotTo(HaveOccurred())

			outcome, err := manager.Delete("greet.so", "hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(plugin.DeleteComplete))

			Expect(artifact).NotTo(BeAnExistingFile())
			Expect(artifact + plugin.SidecarSuffix).NotTo(BeAnExistingFile())

			_, err = manager.Invoke("hi", "alice", "")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("startup sweep", func() {
		It("clears leftovers and restores the registry from disk", func() {
			writeArtifact("greet.so")
			junk := filepath.Join(dir, plugin.ShadowPrefix+"stale_greet.so")
			Expect(os.WriteFile(junk, []byte("stale"), 0o644)).To(Succeed())

			Expect(manager.Sweep(context.Background())).To(Succeed())

			Expect(junk).NotTo(BeAnExistingFile())
			_, ok := manager.Lookup("hi")
			Expect(ok).To(BeTrue())
		})
	})
})
