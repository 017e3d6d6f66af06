// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package chat

import (
	"strings"

	"github.com/forgechat/forgechat/internal/observability"
)

// CommandInfo describes one pluggable command for the help listing.
type CommandInfo struct {
	Command     string
	Description string
}

// CommandSource resolves and invokes pluggable chat commands.
type CommandSource interface {
	Invoke(command, sender, argument string) (string, error)
	Commands() []CommandInfo
}

// Router dispatches inbound chat lines by prefix: `@name text` for
// private delivery, `#word rest` for commands, anything else as a plain
// broadcast. Usage errors reply to the sender only.
type Router struct {
	sessions  *SessionSet
	mailboxes *MailboxStore
	commands  CommandSource
}

// NewRouter creates a router over the shared session set and mailbox
// store. commands may be nil; every `#` word then resolves to the
// reserved built-ins or an unknown-command reply.
func NewRouter(sessions *SessionSet, mailboxes *MailboxStore, commands CommandSource) *Router {
	return &Router{
		sessions:  sessions,
		mailboxes: mailboxes,
		commands:  commands,
	}
}

// Dispatch routes one inbound line from an active session.
func (r *Router) Dispatch(sender *Session, line string) {
	switch {
	case strings.HasPrefix(line, "@"):
		r.dispatchPrivate(sender, line[1:])
	case strings.HasPrefix(line, "#"):
		r.dispatchCommand(sender, line[1:])
	default:
		r.Broadcast(sender.Name, sender.Name+": "+line)
	}
}

// dispatchPrivate delivers `@name text` to an active session, or stores
// it in the recipient's mailbox when no such session exists.
func (r *Router) dispatchPrivate(sender *Session, rest string) {
	target, text, ok := strings.Cut(rest, " ")
	if !ok || target == "" {
		sender.Send(PlayerMessage(ErrUsage("@user message")))
		return
	}

	if recipient, online := r.sessions.FindByName(target); online {
		recipient.Send(PrivateLine(sender.Name, text))
		observability.RecordMessage("private")
		return
	}

	if err := r.mailboxes.Append(target, OfflineLine(sender.Name, text)); err != nil {
		sender.Send(PlayerMessage(err))
		return
	}
	observability.RecordMessage("offline")
	sender.Send("Saved offline.")
}

// dispatchCommand handles `#word rest`. The reserved words are handled
// directly; anything else goes to the command source.
func (r *Router) dispatchCommand(sender *Session, rest string) {
	word, arg, _ := strings.Cut(rest, " ")
	arg = strings.TrimSpace(arg)
	if word == "" {
		sender.Send(PlayerMessage(ErrUsage("#command [text]")))
		return
	}

	switch word {
	case "help":
		r.SendHelp(sender)
	case "block":
		if arg == "" {
			sender.Send(PlayerMessage(ErrUsage("#block user")))
			return
		}
		sender.Block(arg)
		sender.Send("You will no longer see messages from " + arg + ".")
	case "fav":
		if arg == "" {
			sender.Send(PlayerMessage(ErrUsage("#fav user")))
			return
		}
		sender.Favorite(arg)
		sender.Send(arg + " added to favorites.")
	case "mass":
		r.dispatchMass(sender, arg)
	default:
		r.dispatchPlugin(sender, word, arg)
	}
}

// dispatchMass sends a private-formatted copy of the text to every
// active session that has not blacklisted the sender.
func (r *Router) dispatchMass(sender *Session, text string) {
	if text == "" {
		sender.Send(PlayerMessage(ErrUsage("#mass text")))
		return
	}

	line := PrivateLine(sender.Name, text)
	for _, s := range r.sessions.Snapshot() {
		if s.IsBlocked(sender.Name) {
			continue
		}
		s.Send(line)
	}
	observability.RecordMessage("private")
	sender.Send("Mass message sent.")
}

func (r *Router) dispatchPlugin(sender *Session, word, arg string) {
	if r.commands == nil {
		sender.Send("Unknown command. Try #help.")
		return
	}
	out, err := r.commands.Invoke(word, sender.Name, arg)
	if err != nil {
		sender.Send(PlayerMessage(err))
		return
	}
	observability.RecordMessage("plugin")
	r.BroadcastSystem(out)
}

// Broadcast delivers a plain chat line to every active session, except
// recipients whose blacklist contains the sender; favoriting recipients
// receive the highlighted form instead.
func (r *Router) Broadcast(senderName, text string) {
	for _, s := range r.sessions.Snapshot() {
		if s.IsBlocked(senderName) {
			continue
		}
		if s.IsFavorite(senderName) {
			s.Send(FavoriteLine(text))
			continue
		}
		s.Send(text)
	}
	observability.RecordMessage("broadcast")
}

// BroadcastSystem delivers a system notice to every active session,
// bypassing blacklist and favorite filtering.
func (r *Router) BroadcastSystem(text string) {
	line := SystemLine(text)
	for _, s := range r.sessions.Snapshot() {
		s.Send(line)
	}
	observability.RecordMessage("system")
}

// SystemNotice lets the plugin lifecycle manager broadcast load, unload,
// and delete notices through the router.
func (r *Router) SystemNotice(text string) {
	r.BroadcastSystem(text)
}

// SendHelp sends the built-in command listing plus every registered
// plugin command to one session.
func (r *Router) SendHelp(s *Session) {
	var sb strings.Builder
	sb.WriteString(HeaderLine("=== HELP ===") + "\n")
	sb.WriteString("@user msg   - private message (stored offline if away)\n")
	sb.WriteString("#mass msg   - private message to everyone\n")
	sb.WriteString("#block user - hide messages from a user\n")
	sb.WriteString("#fav user   - highlight messages from a user")

	if r.commands != nil {
		if infos := r.commands.Commands(); len(infos) > 0 {
			sb.WriteString("\n" + HeaderLine("--- Plugins ---"))
			for _, info := range infos {
				sb.WriteString("\n#" + info.Command + " -> " + info.Description)
			}
		}
	}
	s.Send(sb.String())
}
