package events

import "regexp"

// MaxChatLen is the longest chat message that will be relayed; longer input
// is cut, not rejected.
const MaxChatLen = 30

// chatAllowed matches everything outside the chat character allow-list.
// Disallowed runes are replaced with a placeholder glyph.
var chatAllowed = regexp.MustCompile(`(?i)[^a-z0-9äöüß?! .,_-]`)

// SanitizeChat truncates msg to MaxChatLen characters and masks disallowed
// characters.
func SanitizeChat(msg string) string {
	if runes := []rune(msg); len(runes) > MaxChatLen {
		msg = string(runes[:MaxChatLen])
	}
	return chatAllowed.ReplaceAllString(msg, "*")
}
