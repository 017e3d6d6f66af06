// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package chat

import (
	"github.com/samber/oops"

	"github.com/forgechat/forgechat/internal/plugin"
)

// Error codes for chat dispatch failures.
const (
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeInvalidArgs      = "INVALID_ARGS"
)

// ErrMailboxFull creates an error for a mailbox at capacity.
func ErrMailboxFull(recipient string) error {
	return oops.Code(CodeCapacityExceeded).
		With("recipient", recipient).
		Errorf("mailbox for %s is full", recipient)
}

// ErrUsage creates an error for a malformed chat line.
func ErrUsage(usage string) error {
	return oops.Code(CodeInvalidArgs).
		With("usage", usage).
		Errorf("invalid arguments")
}

// PlayerMessage extracts a chat-facing message from an error. The
// resulting line is sent only to the offending sender, never broadcast.
func PlayerMessage(err error) string {
	if err == nil {
		return "Something went wrong. Try again."
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "Something went wrong. Try again."
	}

	switch oopsErr.Code() {
	case CodeCapacityExceeded:
		return "Mailbox full."
	case CodeInvalidArgs:
		if usage, ok := oopsErr.Context()["usage"].(string); ok && usage != "" {
			return "Usage: " + usage
		}
		return "Invalid arguments."
	case plugin.CodeUnknownCommand:
		return "Unknown command. Try #help."
	case plugin.CodeFault:
		return "Plugin error: " + err.Error()
	default:
		return "Something went wrong. Try again."
	}
}
