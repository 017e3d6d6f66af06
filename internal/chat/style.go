// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package chat

import (
	"github.com/gookit/color"
)

// Every server-originated line is one self-contained display unit;
// clients that do not understand escape sequences may strip them.
var (
	systemStyle   = color.New(color.FgGreen)
	privateStyle  = color.New(color.FgMagenta)
	favoriteStyle = color.New(color.FgYellow)
	headerStyle   = color.New(color.FgCyan)
)

func init() {
	// Output goes over the wire, not to a local terminal, so terminal
	// detection must not strip the escape sequences.
	color.ForceOpenColor()
}

// SystemLine tags a lifecycle or router notice.
func SystemLine(text string) string {
	return systemStyle.Render("[SYSTEM] " + text)
}

// PrivateLine formats a direct message delivered to an online recipient.
func PrivateLine(sender, text string) string {
	return privateStyle.Render("(Private) " + sender + ": " + text)
}

// OfflineLine formats a direct message stored for a disconnected
// recipient. The stored line is delivered verbatim on login.
func OfflineLine(sender, text string) string {
	return privateStyle.Render("(Offline) " + sender + ": " + text)
}

// FavoriteLine marks a broadcast from a sender on the recipient's
// favorites list.
func FavoriteLine(text string) string {
	return favoriteStyle.Render("⭐ " + text)
}

// HeaderLine formats help and mailbox section headers.
func HeaderLine(text string) string {
	return headerStyle.Render(text)
}
