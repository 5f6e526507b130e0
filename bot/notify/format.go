package notify

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/hrygo/socialbot/store"
)

// FormatSummary renders an outcome summary for a batch of action results.
// The plain body is markdown; the HTML body is the same markdown rendered,
// so both variants carry equivalent content.
func FormatSummary(results []*store.ActionResult) (subject, plainBody, htmlBody string, err error) {
	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}

	switch {
	case len(results) == 1 && succeeded == 1:
		subject = fmt.Sprintf("socialbot: %s on %s succeeded", results[0].Action, results[0].Platform)
	case len(results) == 1:
		subject = fmt.Sprintf("socialbot: %s on %s failed", results[0].Action, results[0].Platform)
	default:
		subject = fmt.Sprintf("socialbot: %d/%d actions succeeded", succeeded, len(results))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Action summary\n\n%d of %d actions succeeded.\n\n", succeeded, len(results))
	for _, r := range results {
		if r.Succeeded() {
			fmt.Fprintf(&b, "- **%s** on %s: success (target `%s`)\n", r.Action, r.Platform, r.TargetID)
		} else {
			fmt.Fprintf(&b, "- **%s** on %s: failure: %s\n", r.Action, r.Platform, r.Error)
		}
		if r.GeneratedText != "" {
			fmt.Fprintf(&b, "  > %s\n", truncate(r.GeneratedText, 200))
		}
	}
	plainBody = b.String()

	var htmlBuf bytes.Buffer
	if err = goldmark.Convert([]byte(plainBody), &htmlBuf); err != nil {
		return "", "", "", err
	}
	htmlBody = htmlBuf.String()

	return subject, plainBody, htmlBody, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
