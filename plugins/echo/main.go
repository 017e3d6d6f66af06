// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

// Package main implements the echo example plugin for forgechat.
// It answers `#echo <text>` by repeating the text back to the room.
//
// Build as a shared artifact:
//
//	go build -buildmode=plugin -o plugins/echo.so ./plugins/echo
//
// A plugin must export GetName, GetDescription, and HandleMessage as
// plain package-level functions.
package main

import "fmt"

// GetName returns the chat command token, without the '#'.
func GetName() string {
	return "echo"
}

// GetDescription returns the one-line help text.
func GetDescription() string {
	return "repeats your text back to the room"
}

// HandleMessage is invoked once per command use; the return value is
// broadcast as a system message.
func HandleMessage(sender, text string) string {
	if text == "" {
		return fmt.Sprintf("%s says nothing at all.", sender)
	}
	return fmt.Sprintf("%s echoes: %s", sender, text)
}

func main() {}
