// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package plugin

import (
	"github.com/samber/oops"
)

// Error codes for plugin lifecycle failures.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeLockedResource    = "LOCKED_RESOURCE"
	CodeFault             = "PLUGIN_FAULT"
	CodeUnknownCommand    = "UNKNOWN_COMMAND"
)

// ErrArtifactNotFound creates an error for a missing artifact or command file.
func ErrArtifactNotFound(path string) error {
	return oops.Code(CodeNotFound).
		With("artifact", path).
		Errorf("artifact not found: %s", path)
}

// ErrContractViolation creates an error for an artifact that loaded but
// does not satisfy the plugin contract.
func ErrContractViolation(path string, cause error) error {
	builder := oops.Code(CodeContractViolation).With("artifact", path)
	if cause != nil {
		return builder.Wrapf(cause, "invalid plugin")
	}
	return builder.Errorf("invalid plugin")
}

// ErrFault creates an error for a plugin invocation that panicked.
func ErrFault(command string, value any) error {
	return oops.Code(CodeFault).
		With("command", command).
		Errorf("plugin #%s faulted: %v", command, value)
}

// ErrUnknownCommand creates an error for a command with no registered plugin.
func ErrUnknownCommand(command string) error {
	return oops.Code(CodeUnknownCommand).
		With("command", command).
		Errorf("unknown command: %s", command)
}
