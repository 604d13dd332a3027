package analyzer

import (
	"strings"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

// MaxContextChars bounds the rendered context. The cut is a hard rune cut.
const MaxContextChars = 400000

// DefaultContextReplies is how many replies go into the prompt context.
const DefaultContextReplies = 10

// BuildContext renders item as prompt text: title, body, then the first
// maxReplies replies under "Top Comments:" when there are any.
func BuildContext(item types.DiscussionItem, maxReplies int) string {
	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(item.Title)
	sb.WriteString("\n\nBody: ")
	sb.WriteString(item.Body)
	sb.WriteString("\n\n")

	replies := item.Replies
	if maxReplies >= 0 && len(replies) > maxReplies {
		replies = replies[:maxReplies]
	}
	if len(replies) > 0 {
		sb.WriteString("Top Comments:\n")
		sb.WriteString(strings.Join(replies, "\n"))
	}

	return truncateRunes(sb.String(), MaxContextChars)
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
