// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package plugin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ShadowPrefix marks a process-private copy of an artifact. Files with
// this prefix are never treated as author-facing artifacts and are
// removed by the startup sweep.
const ShadowPrefix = "loaded_copy_"

// TrashSuffix marks a shadow or artifact whose deletion was refused by
// the platform while the image was still mapped. Swept at next startup.
const TrashSuffix = ".trash"

// Image is a loaded shared-library handle. The native backend keeps the
// image mapped until process exit, so Close may be a no-op; fakes used
// in tests release eagerly.
type Image interface {
	Lookup(name string) (any, error)
	Close() error
}

// ImageOpener maps an artifact path to a loaded Image.
type ImageOpener func(path string) (Image, error)

// Loaded is the result of a successful load: a shadow-backed image with
// its self-reported identity resolved against the plugin contract.
type Loaded struct {
	Name        string
	Description string
	ShadowPath  string

	image   Image
	handler HandlerFunc
}

// Close releases the underlying image handle.
func (l *Loaded) Close() error {
	return l.image.Close() //nolint:wrapcheck // capability passthrough
}

// Loader produces loaded plugin instances from filesystem artifacts.
//
// The loader never maps the author-facing artifact directly: the
// artifact is first copied to a uniquely named shadow file and the
// shadow is what gets mapped. On platforms where a mapped image locks
// its backing file, this keeps the original free for the compiler to
// overwrite at any time.
type Loader struct {
	opener ImageOpener
}

// NewLoader creates a loader backed by the given image opener.
func NewLoader(opener ImageOpener) *Loader {
	return &Loader{opener: opener}
}

// Load copies the artifact at originalPath to a shadow file, maps the
// shadow, and verifies the plugin contract. On any failure the partial
// handle is released and the shadow removed.
func (l *Loader) Load(ctx context.Context, originalPath string) (*Loaded, error) {
	if _, err := os.Stat(originalPath); err != nil {
		return nil, ErrArtifactNotFound(originalPath)
	}

	shadow := shadowPathFor(originalPath)

	// The compiler may be rewriting the artifact at this very moment;
	// a short constant backoff rides out the overlap.
	backoff := retry.WithMaxRetries(4, retry.NewConstant(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		if copyErr := copyFile(originalPath, shadow); copyErr != nil {
			return retry.RetryableError(copyErr)
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code(CodeLockedResource).
			With("artifact", originalPath).
			With("shadow", shadow).
			Wrapf(err, "could not copy artifact to shadow")
	}

	img, err := l.opener(shadow)
	if err != nil {
		removeShadow(shadow)
		return nil, ErrContractViolation(originalPath, err)
	}

	loaded, err := resolveContract(img, shadow)
	if err != nil {
		if closeErr := img.Close(); closeErr != nil {
			slog.Debug("error closing rejected image", "shadow", shadow, "error", closeErr)
		}
		removeShadow(shadow)
		return nil, ErrContractViolation(originalPath, err)
	}

	slog.Info("plugin image loaded",
		"command", loaded.Name,
		"artifact", filepath.Base(originalPath),
		"shadow", filepath.Base(shadow),
	)
	return loaded, nil
}

// resolveContract looks up the three required entry points and reads
// the plugin's self-reported identity.
func resolveContract(img Image, shadow string) (*Loaded, error) {
	nameFn, err := lookupString(img, SymbolName)
	if err != nil {
		return nil, err
	}
	descFn, err := lookupString(img, SymbolDescription)
	if err != nil {
		return nil, err
	}

	sym, err := img.Lookup(SymbolHandleMessage)
	if err != nil {
		return nil, fmt.Errorf("missing entry point %s: %w", SymbolHandleMessage, err)
	}
	handler, ok := sym.(func(string, string) string)
	if !ok {
		return nil, fmt.Errorf("entry point %s has wrong signature %T", SymbolHandleMessage, sym)
	}

	name, err := callString(nameFn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SymbolName, err)
	}
	if name == "" {
		return nil, fmt.Errorf("%s returned an empty command name", SymbolName)
	}
	description, err := callString(descFn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SymbolDescription, err)
	}

	return &Loaded{
		Name:        name,
		Description: description,
		ShadowPath:  shadow,
		image:       img,
		handler:     HandlerFunc(handler),
	}, nil
}

func lookupString(img Image, symbol string) (func() string, error) {
	sym, err := img.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("missing entry point %s: %w", symbol, err)
	}
	fn, ok := sym.(func() string)
	if !ok {
		return nil, fmt.Errorf("entry point %s has wrong signature %T", symbol, sym)
	}
	return fn, nil
}

// shadowPathFor builds a process-unique sibling name for the artifact.
// The ULID stamp encodes the load time, so concurrent loads of the same
// artifact never collide.
func shadowPathFor(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	return filepath.Join(dir, ShadowPrefix+ulid.Make().String()+"_"+base)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create shadow: %w", err)
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("close shadow: %w", err)
	}
	return nil
}

func removeShadow(shadow string) {
	if err := os.Remove(shadow); err != nil && !os.IsNotExist(err) {
		slog.Debug("could not remove shadow file", "shadow", shadow, "error", err)
	}
}
