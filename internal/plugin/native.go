// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package plugin

import (
	goplugin "plugin"
	"runtime"
)

// LibExt returns the shared-library filename extension for the host platform.
func LibExt() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	default:
		return ".so"
	}
}

// OpenNativeImage opens a compiled artifact with the runtime's native
// plugin loader. Close is a no-op because the runtime keeps a loaded
// image mapped for the life of the process; that locking behavior is
// the reason the loader only ever maps shadow copies.
func OpenNativeImage(path string) (Image, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // loader wraps with artifact context
	}
	return nativeImage{p: p}, nil
}

type nativeImage struct {
	p *goplugin.Plugin
}

func (n nativeImage) Lookup(name string) (any, error) {
	sym, err := n.p.Lookup(name)
	if err != nil {
		return nil, err //nolint:wrapcheck // loader wraps with symbol context
	}
	return sym, nil
}

func (nativeImage) Close() error {
	return nil
}
