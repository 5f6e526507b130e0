package generate

import (
	"fmt"
	"strings"

	"github.com/hrygo/socialbot/bot/prefs"
)

// GenerationRequest is the ephemeral input for one generation. It is built
// per invocation and discarded after use, never persisted.
type GenerationRequest struct {
	Scope         prefs.Scope
	ContextText   string
	ThreadHistory []string
	Preferences   *prefs.Resolved
}

// BuildPrompt constructs the backend prompt from the request. It is pure:
// the same request always yields the same prompt, byte for byte, even though
// the downstream completion is not deterministic.
func BuildPrompt(req GenerationRequest) string {
	p := req.Preferences

	var b strings.Builder
	switch req.Scope {
	case prefs.ScopeComment:
		b.WriteString("Write a comment on the following post.\n")
	case prefs.ScopeReply:
		b.WriteString("Write a reply to the following comment.\n")
	default:
		b.WriteString("Write a social media post based on the following caption.\n")
	}

	fmt.Fprintf(&b, "Tone: %s. Style: %s. Category: %s. Audience: %s. Language: %s.\n",
		p.Tone, p.ResponseStyle, p.Category, p.Audience, p.Language)
	fmt.Fprintf(&b, "Content tone: %s.\n", p.ContentTone)

	if len(req.ThreadHistory) > 0 {
		b.WriteString("Thread so far:\n")
		for _, msg := range req.ThreadHistory {
			fmt.Fprintf(&b, "- %s\n", msg)
		}
	}

	fmt.Fprintf(&b, "Content: %s", req.ContextText)

	return b.String()
}
