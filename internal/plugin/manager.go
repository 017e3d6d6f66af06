// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package plugin

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/lo"
	"github.com/samber/oops"

	"github.com/forgechat/forgechat/internal/observability"
	"github.com/forgechat/forgechat/pkg/errutil"
)

// Record is one registered command. The image handle is exclusively
// owned by the record and released only when the record leaves the
// registry.
type Record struct {
	Command     string
	Description string
	SourceFile  string // author-facing artifact name on disk
	ShadowPath  string // private copy currently mapped into the process

	image   Image
	handler HandlerFunc
}

// Status reports whether an artifact is currently mapped and serving.
type Status string

// Artifact statuses reported by List.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Info describes one artifact on disk, merged with registry state.
type Info struct {
	File        string
	Command     string
	Name        string
	Description string
	Status      Status
}

// DeleteOutcome distinguishes a fully completed delete from one whose
// file removal was deferred by platform locking.
type DeleteOutcome string

// Delete outcomes.
const (
	DeleteComplete DeleteOutcome = "deleted"
	DeleteDeferred DeleteOutcome = "deferred"
)

// Notifier receives lifecycle notices for broadcast as system messages.
type Notifier interface {
	SystemNotice(text string)
}

// Manager orchestrates the plugin lifecycle: copy-before-load
// registration, hot-swapping, deferred deletion of locked shadows, and
// the active-command registry. Lookup and Invoke are safe for any
// number of concurrent dispatching workers while lifecycle operations
// run elsewhere; a swap is a single atomic map replace, never an
// in-place mutation visible mid-update.
type Manager struct {
	dir    string
	loader *Loader

	mu      sync.RWMutex
	records map[string]*Record

	notifyMu sync.RWMutex
	notifier Notifier
}

// NewManager creates a lifecycle manager over the given plugin directory.
func NewManager(dir string, loader *Loader) *Manager {
	return &Manager{
		dir:     dir,
		loader:  loader,
		records: make(map[string]*Record),
	}
}

// SetNotifier installs the sink for lifecycle notices. May be nil.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.notifier = n
}

func (m *Manager) notify(text string) {
	m.notifyMu.RLock()
	n := m.notifier
	m.notifyMu.RUnlock()
	if n != nil {
		n.SystemNotice(text)
	}
}

// Register loads the artifact at originalPath through the shadow-copy
// loader and installs the result in the registry, replacing any prior
// record under the same command name. The new image is fully loaded and
// contract-checked before the swap, so concurrent lookups never observe
// a window with zero valid entries; the old record's shadow is released
// only after the replacement is visible, letting in-flight invocations
// finish on the old handle.
func (m *Manager) Register(ctx context.Context, originalPath string) (*Record, error) {
	loaded, err := m.loader.Load(ctx, originalPath)
	if err != nil {
		observability.RecordPluginLoad("error")
		return nil, err
	}

	rec := &Record{
		Command:     loaded.Name,
		Description: loaded.Description,
		SourceFile:  filepath.Base(originalPath),
		ShadowPath:  loaded.ShadowPath,
		image:       loaded.image,
		handler:     loaded.handler,
	}

	if err := WriteSidecar(originalPath, rec.Command, rec.Description); err != nil {
		slog.Warn("could not write sidecar metadata",
			"artifact", rec.SourceFile,
			"error", err,
		)
	}

	m.mu.Lock()
	old := m.records[rec.Command]
	m.records[rec.Command] = rec
	m.mu.Unlock()

	if old != nil {
		m.releaseShadow(old)
	}

	observability.RecordPluginLoad("ok")
	m.notify("Plugin #" + rec.Command + " loaded.")
	return rec, nil
}

// Unload removes the command from the registry and discards its shadow
// image. Returns an UNKNOWN_COMMAND error if the command is not active.
func (m *Manager) Unload(command string) error {
	m.mu.Lock()
	rec, ok := m.records[command]
	if ok {
		delete(m.records, command)
	}
	m.mu.Unlock()

	if !ok {
		return ErrUnknownCommand(command)
	}

	m.releaseShadow(rec)
	observability.RecordPluginUnload()
	m.notify("Plugin #" + command + " unloaded.")
	return nil
}

// Delete unloads the command if active, then removes the author-facing
// artifact and its sidecar. The intermediate "unloaded" notice is
// suppressed; only the final "deleted" notice is broadcast. A refused
// artifact deletion degrades to a trash marker and reports
// DeleteDeferred so callers can show an accurate status.
func (m *Manager) Delete(file, command string) (DeleteOutcome, error) {
	unloaded := false
	if command != "" {
		m.mu.Lock()
		rec, ok := m.records[command]
		if ok {
			delete(m.records, command)
		}
		m.mu.Unlock()
		if ok {
			m.releaseShadow(rec)
			observability.RecordPluginUnload()
			unloaded = true
		}
	}

	artifact := filepath.Join(m.dir, file)
	outcome := DeleteComplete
	switch err := os.Remove(artifact); {
	case err == nil:
	case os.IsNotExist(err):
		if !unloaded {
			return "", ErrArtifactNotFound(artifact)
		}
	default:
		if renameErr := os.Rename(artifact, artifact+TrashSuffix); renameErr != nil {
			return "", oops.Code(CodeLockedResource).
				With("artifact", artifact).
				Wrapf(err, "could not delete or trash artifact")
		}
		outcome = DeleteDeferred
	}

	if err := os.Remove(artifact + SidecarSuffix); err != nil && !os.IsNotExist(err) {
		slog.Debug("could not remove sidecar", "artifact", file, "error", err)
	}

	display := file
	if command != "" {
		display = "#" + command
	}
	m.notify("Plugin " + display + " permanently deleted.")
	return outcome, nil
}

// junkPatterns match leftovers a prior process may have stranded:
// deferred trash markers, stale shadow copies, and interrupted build
// intermediates.
var junkPatterns = []glob.Glob{
	glob.MustCompile("*" + TrashSuffix),
	glob.MustCompile(ShadowPrefix + "*"),
	glob.MustCompile("temp_*.go"),
}

// CleanDirectory deletes discard-pending markers, orphaned shadow
// copies, and interrupted build intermediates. Safe to run repeatedly.
func (m *Manager) CleanDirectory() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return oops.With("dir", m.dir).Wrapf(err, "read plugin directory")
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		junk := lo.SomeBy(junkPatterns, func(g glob.Glob) bool { return g.Match(name) })
		if !junk {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
			slog.Warn("could not remove stale file", "file", name, "error", err)
			continue
		}
		slog.Info("removed stale file", "file", name)
	}
	return nil
}

// Sweep cleans the plugin directory and then registers every eligible
// artifact found in it. Individual load failures are logged and
// skipped so one broken artifact does not block startup.
func (m *Manager) Sweep(ctx context.Context) error {
	if err := m.CleanDirectory(); err != nil {
		return err
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return oops.With("dir", m.dir).Wrapf(err, "read plugin directory")
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isArtifactName(name) {
			continue
		}
		if _, err := m.Register(ctx, filepath.Join(m.dir, name)); err != nil {
			errutil.LogWarn(slog.Default(), "skipping artifact during sweep", err)
		}
	}
	return nil
}

// List enumerates every artifact on disk merged with the registry.
// Artifacts not currently loaded are reported inactive, described from
// their sidecar when one exists.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, oops.With("dir", m.dir).Wrapf(err, "read plugin directory")
	}

	m.mu.RLock()
	byFile := make(map[string]*Record, len(m.records))
	for _, rec := range m.records {
		byFile[rec.SourceFile] = rec
	}
	m.mu.RUnlock()

	files := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return !e.IsDir() && isArtifactName(e.Name())
	})

	infos := make([]Info, 0, len(files))
	for _, e := range files {
		file := e.Name()
		if rec, ok := byFile[file]; ok {
			infos = append(infos, Info{
				File:        file,
				Command:     rec.Command,
				Name:        rec.Command,
				Description: rec.Description,
				Status:      StatusActive,
			})
			continue
		}

		name, desc, err := ReadSidecar(filepath.Join(m.dir, file))
		if err != nil {
			infos = append(infos, Info{
				File:        file,
				Name:        "Unknown (unloaded)",
				Description: "Load the plugin to refresh its description.",
				Status:      StatusInactive,
			})
			continue
		}
		infos = append(infos, Info{
			File:        file,
			Command:     name,
			Name:        name,
			Description: desc,
			Status:      StatusInactive,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].File < infos[j].File })
	return infos, nil
}

// Lookup returns the active record for a command, if any.
func (m *Manager) Lookup(command string) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[command]
	return rec, ok
}

// Commands returns a snapshot of all active records, sorted by command.
func (m *Manager) Commands() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// Invoke runs the command's message handler synchronously on the
// calling goroutine. A fault inside the plugin is returned as a typed
// PLUGIN_FAULT error; the command stays registered.
func (m *Manager) Invoke(command, sender, argument string) (string, error) {
	m.mu.RLock()
	rec, ok := m.records[command]
	m.mu.RUnlock()

	if !ok {
		return "", ErrUnknownCommand(command)
	}
	return callHandler(rec.handler, command, sender, argument)
}

// Close releases every registered record and its shadow file.
// Best-effort shutdown cleanup; deletion failures degrade to trash
// markers exactly as during unload.
func (m *Manager) Close() {
	m.mu.Lock()
	records := m.records
	m.records = make(map[string]*Record)
	m.mu.Unlock()

	for _, rec := range records {
		m.releaseShadow(rec)
	}
}

// releaseShadow closes the image handle and removes its shadow file.
// A shadow the platform refuses to delete is renamed to a trash marker
// for the next startup sweep; callers never block or retry.
func (m *Manager) releaseShadow(rec *Record) {
	if err := rec.image.Close(); err != nil {
		slog.Debug("error closing image handle", "command", rec.Command, "error", err)
	}
	if rec.ShadowPath == "" {
		return
	}
	if err := os.Remove(rec.ShadowPath); err != nil && !os.IsNotExist(err) {
		trash := rec.ShadowPath + TrashSuffix
		if renameErr := os.Rename(rec.ShadowPath, trash); renameErr != nil {
			errutil.LogWarn(slog.Default(), "could not discard shadow image",
				oops.Code(CodeLockedResource).
					With("shadow", rec.ShadowPath).
					Wrap(renameErr))
			return
		}
		slog.Warn("shadow image locked, deferred to next sweep", "trash", filepath.Base(trash))
	}
}

// isArtifactName reports whether a directory entry is an author-facing
// compiled artifact (not a shadow copy, sidecar, or build leftover).
func isArtifactName(name string) bool {
	return strings.HasSuffix(name, LibExt()) && !strings.HasPrefix(name, ShadowPrefix)
}
