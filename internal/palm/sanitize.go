package palm

import (
	"regexp"
	"strings"
)

// MaxNotesLength is the number of characters of user notes forwarded to the model.
const MaxNotesLength = 500

// Letters, digits, spaces, tabs, newlines and basic punctuation survive.
var disallowedNoteChars = regexp.MustCompile(`[^\p{L}\p{N}\p{Zs}\t\n.,!?;:'"()\-–—]`)

// SanitizeNotes truncates free-text notes and strips everything that could
// restructure the prompt they are embedded in.
func SanitizeNotes(raw string) string {
	if raw == "" {
		return ""
	}
	runes := []rune(raw)
	if len(runes) > MaxNotesLength {
		runes = runes[:MaxNotesLength]
	}
	return strings.TrimSpace(disallowedNoteChars.ReplaceAllString(string(runes), ""))
}
