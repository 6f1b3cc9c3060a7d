package palm

import (
	"regexp"
	"strings"
)

var (
	jsonFence  = regexp.MustCompile("(?s)```json\\n?(.*?)\\n?```")
	plainFence = regexp.MustCompile("(?s)```\\n?(.*?)\\n?```")
)

// ExtractJSON returns the JSON candidate inside a model answer. A ```json fence
// wins over a bare ``` fence; without any fence the whole answer is used.
func ExtractJSON(answer string) string {
	if m := jsonFence.FindStringSubmatch(answer); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := plainFence.FindStringSubmatch(answer); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(answer)
}
