package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/socialbot/bot/prefs"
	"github.com/hrygo/socialbot/store"
)

func TestFormatSummary_SingleSuccess(t *testing.T) {
	subject, plainBody, htmlBody, err := FormatSummary([]*store.ActionResult{
		{
			Action:        store.ActionPost,
			Platform:      "instagram",
			TargetID:      "post-1",
			Status:        store.ActionStatusSuccess,
			GeneratedText: "What a view!",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "socialbot: post on instagram succeeded", subject)
	assert.Contains(t, plainBody, "1 of 1 actions succeeded")
	assert.Contains(t, plainBody, "post-1")
	assert.Contains(t, plainBody, "What a view!")

	// The HTML body is the rendered markdown and carries the same content.
	assert.Contains(t, htmlBody, "<h1>")
	assert.Contains(t, htmlBody, "What a view!")
	assert.Contains(t, htmlBody, "post-1")
}

func TestFormatSummary_MixedBatch(t *testing.T) {
	subject, plainBody, _, err := FormatSummary([]*store.ActionResult{
		{Action: store.ActionReply, Platform: "twitter", TargetID: "r1", Status: store.ActionStatusSuccess},
		{Action: store.ActionReply, Platform: "twitter", Status: store.ActionStatusFailure, Error: "rate limited"},
		{Action: store.ActionReply, Platform: "twitter", TargetID: "r3", Status: store.ActionStatusSuccess},
	})
	require.NoError(t, err)

	assert.Equal(t, "socialbot: 2/3 actions succeeded", subject)
	assert.Contains(t, plainBody, "2 of 3 actions succeeded")
	assert.Contains(t, plainBody, "rate limited")
}

func TestFormatSummary_TruncatesGeneratedText(t *testing.T) {
	_, plainBody, _, err := FormatSummary([]*store.ActionResult{
		{
			Action:        store.ActionPost,
			Platform:      "instagram",
			Status:        store.ActionStatusSuccess,
			GeneratedText: strings.Repeat("x", 500),
		},
	})
	require.NoError(t, err)

	assert.Contains(t, plainBody, strings.Repeat("x", 200)+"...")
	assert.NotContains(t, plainBody, strings.Repeat("x", 201))
}

func TestRecipientFromPreferences_EmailDefault(t *testing.T) {
	resolved := prefs.Defaults()
	resolved.Email = "user@example.com"

	r := RecipientFromPreferences(&resolved, "operator@example.com")
	assert.Equal(t, store.NotificationMethodEmail, r.Method)
	assert.Equal(t, "user@example.com", r.Address)
	assert.True(t, r.Enabled)
}

func TestRecipientFromPreferences_Telegram(t *testing.T) {
	resolved := prefs.Defaults()
	resolved.NotificationMethod = store.NotificationMethodTelegram
	resolved.TelegramChatID = 123456

	r := RecipientFromPreferences(&resolved, "operator@example.com")
	assert.Equal(t, store.NotificationMethodTelegram, r.Method)
	assert.Equal(t, "123456", r.Address)
}

// A user without any address falls back to the operator's email.
func TestRecipientFromPreferences_Fallback(t *testing.T) {
	resolved := prefs.Defaults()
	resolved.NotificationMethod = store.NotificationMethodTelegram

	r := RecipientFromPreferences(&resolved, "operator@example.com")
	assert.Equal(t, store.NotificationMethodEmail, r.Method)
	assert.Equal(t, "operator@example.com", r.Address)
}
