package generate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/socialbot/bot/prefs"
)

// mockBackend returns a scripted response or error.
type mockBackend struct {
	response string
	err      error
	calls    int
}

func (m *mockBackend) Complete(_ context.Context, _ string, _ int, _ float32) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func testRequest() GenerationRequest {
	resolved := prefs.Defaults()
	return GenerationRequest{
		Scope:       prefs.ScopePost,
		ContextText: "sunset over the bay",
		Preferences: &resolved,
	}
}

func TestGenerate_Success(t *testing.T) {
	backend := &mockBackend{response: "  What a view!  "}
	g := NewGenerator(backend, Config{})

	text, err := g.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "What a view!", text)
	assert.Equal(t, 1, backend.calls)
}

func TestGenerate_BackendErrorWrapped(t *testing.T) {
	backend := &mockBackend{err: assert.AnError}
	g := NewGenerator(backend, Config{})

	_, err := g.Generate(context.Background(), testRequest())
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGenerate_EmptyResponseFails(t *testing.T) {
	backend := &mockBackend{response: "   \n  "}
	g := NewGenerator(backend, Config{})

	_, err := g.Generate(context.Background(), testRequest())

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Reason, "empty")
}

func TestGenerate_OverlongResponseFails(t *testing.T) {
	backend := &mockBackend{response: strings.Repeat("a", 100)}
	g := NewGenerator(backend, Config{MaxChars: 50})

	_, err := g.Generate(context.Background(), testRequest())

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Reason, "exceeds limit")
}

// The prompt must be a pure function of the request.
func TestBuildPrompt_Deterministic(t *testing.T) {
	req := testRequest()
	req.ThreadHistory = []string{"first comment", "second comment"}

	first := BuildPrompt(req)
	second := BuildPrompt(req)
	assert.Equal(t, first, second)
}

func TestBuildPrompt_ScopeLeadLines(t *testing.T) {
	req := testRequest()

	req.Scope = prefs.ScopePost
	assert.True(t, strings.HasPrefix(BuildPrompt(req), "Write a social media post"))

	req.Scope = prefs.ScopeComment
	assert.True(t, strings.HasPrefix(BuildPrompt(req), "Write a comment"))

	req.Scope = prefs.ScopeReply
	assert.True(t, strings.HasPrefix(BuildPrompt(req), "Write a reply"))
}

func TestBuildPrompt_CarriesPreferencesAndHistory(t *testing.T) {
	resolved := prefs.Defaults()
	resolved.Tone = "witty"
	resolved.ResponseStyle = "formal"
	resolved.Language = "fr"

	prompt := BuildPrompt(GenerationRequest{
		Scope:         prefs.ScopeReply,
		ContextText:   "nice shot!",
		ThreadHistory: []string{"nice shot!"},
		Preferences:   &resolved,
	})

	assert.Contains(t, prompt, "Tone: witty.")
	assert.Contains(t, prompt, "Style: formal.")
	assert.Contains(t, prompt, "Language: fr.")
	assert.Contains(t, prompt, "Thread so far:\n- nice shot!\n")
	assert.Contains(t, prompt, "Content: nice shot!")
}
