// Package chat holds the relay's message hygiene: escaping, truncation
// and the inline /rename command. Fan-out itself happens in the
// dispatcher so chat shares the room's broadcast ordering.
package chat

import (
	"html"
	"strings"
)

const (
	maxMessageLen = 500
	maxNameLen    = 32

	renamePrefix = "/rename "
)

// Sanitize HTML-escapes both fields and truncates the message to the
// broadcast cap. Truncation happens before escaping so an entity cannot
// be cut in half.
func Sanitize(sender, message string) (string, string) {
	if len(message) > maxMessageLen {
		message = message[:maxMessageLen]
	}
	return html.EscapeString(sender), html.EscapeString(message)
}

// ParseRename recognizes the /rename command. ok reports that the message
// is the command, malformed or not, since command text must never be
// relayed as chat; name is empty when the command carries no usable name.
// "/renameX" is ordinary chat, only the spaced form is the command.
func ParseRename(message string) (name string, ok bool) {
	if strings.TrimSpace(message) == strings.TrimSpace(renamePrefix) {
		return "", true
	}
	if !strings.HasPrefix(message, renamePrefix) {
		return "", false
	}
	name = strings.TrimSpace(strings.TrimPrefix(message, renamePrefix))
	if len(name) > maxNameLen {
		return "", true
	}
	return name, true
}

// RenameNotice is the system-authored broadcast after a rename.
func RenameNotice(oldName, newName string) string {
	return html.EscapeString(oldName) + " is now known as " + html.EscapeString(newName)
}
