// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

// Package plugin provides the native command-plugin contract, the
// copy-before-load image loader, and the lifecycle manager that keeps
// the active-command registry consistent under concurrent dispatch.
package plugin

import (
	"fmt"
)

// A compiled command plugin must export exactly three symbols:
//
//	GetName() string                       // the chat command token, without '#'
//	GetDescription() string                // one-line help text
//	HandleMessage(sender, text string) string
//
// The symbols are looked up as plain function values so plugins need no
// shared SDK package and no type identity with the host.
const (
	SymbolName          = "GetName"
	SymbolDescription   = "GetDescription"
	SymbolHandleMessage = "HandleMessage"
)

// HandlerFunc is the message entry point of a loaded plugin.
type HandlerFunc func(sender, text string) string

// callString invokes a metadata getter, converting a panic inside the
// plugin into an error instead of crashing the host.
func callString(fn func() string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin entry point panicked: %v", r)
		}
	}()
	return fn(), nil
}

// callHandler invokes a message handler, converting a panic into a
// typed fault. A single bad call does not unregister the plugin.
func callHandler(fn HandlerFunc, command, sender, text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = ErrFault(command, r)
		}
	}()
	return fn(sender, text), nil
}
