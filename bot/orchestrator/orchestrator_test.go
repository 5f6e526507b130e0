package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/socialbot/bot/dispatch"
	"github.com/hrygo/socialbot/bot/eventbus"
	"github.com/hrygo/socialbot/bot/generate"
	"github.com/hrygo/socialbot/bot/notify"
	"github.com/hrygo/socialbot/bot/platform"
	"github.com/hrygo/socialbot/bot/prefs"
	"github.com/hrygo/socialbot/internal/profile"
	"github.com/hrygo/socialbot/store"
)

// mockDriver is an in-memory store driver.
type mockDriver struct {
	mu        sync.Mutex
	captions  []*store.Caption
	prefs     map[int32]*store.UserPreferences
	results   []*store.ActionResult
	prefCalls int
}

func newMockDriver() *mockDriver {
	return &mockDriver{prefs: make(map[int32]*store.UserPreferences)}
}

func (m *mockDriver) GetDB() *sql.DB                  { return nil }
func (m *mockDriver) Close() error                    { return nil }
func (m *mockDriver) Migrate(_ context.Context) error { return nil }

func (m *mockDriver) CreateCaption(_ context.Context, create *store.CreateCaption) (*store.Caption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	caption := &store.Caption{ID: int32(len(m.captions) + 1), Text: create.Text, Category: create.Category}
	m.captions = append(m.captions, caption)
	return caption, nil
}

func (m *mockDriver) ListCaptions(_ context.Context, find *store.FindCaption) ([]*store.Caption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []*store.Caption{}
	for _, c := range m.captions {
		if find.Category != nil && c.Category != *find.Category {
			continue
		}
		matched = append(matched, c)
	}
	if find.Limit != nil && len(matched) > *find.Limit {
		matched = matched[:*find.Limit]
	}
	return matched, nil
}

func (m *mockDriver) UpdateCaptionEngagement(_ context.Context, _ *store.UpdateCaptionEngagement) error {
	return nil
}

func (m *mockDriver) GetUserPreferences(_ context.Context, find *store.FindUserPreferences) (*store.UserPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefCalls++
	if find.UserID == nil {
		return nil, store.ErrNotFound
	}
	p, ok := m.prefs[*find.UserID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *mockDriver) UpsertUserPreferences(_ context.Context, upsert *store.UpsertUserPreferences) (*store.UserPreferences, error) {
	p := &store.UserPreferences{UserID: upsert.UserID}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[upsert.UserID] = p
	return p, nil
}

func (m *mockDriver) CreateActionResult(_ context.Context, create *store.ActionResult) (*store.ActionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, create)
	return create, nil
}

func (m *mockDriver) ListActionResults(_ context.Context, _ *store.FindActionResult) ([]*store.ActionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results, nil
}

// mockBackend scripts completion outcomes per call and records prompts.
type mockBackend struct {
	mu        sync.Mutex
	responses []string
	failures  int
	calls     int
	prompts   []string
}

func (m *mockBackend) Complete(_ context.Context, prompt string, _ int, _ float32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.failures > 0 {
		m.failures--
		return "", fmt.Errorf("backend unavailable")
	}
	if len(m.responses) > 0 {
		resp := m.responses[0]
		if len(m.responses) > 1 {
			m.responses = m.responses[1:]
		}
		return resp, nil
	}
	return "generated text", nil
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockBackend) prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[i]
}

// mockClient scripts a platform, failing on targets listed in failOn.
type mockClient struct {
	name     string
	postText string
	comments []platform.Comment
	failOn   map[string]bool
}

func (m *mockClient) Name() string { return m.name }

func (m *mockClient) CreatePost(_ context.Context, _, _ string) (string, error) {
	return "post-1", nil
}

func (m *mockClient) CreateComment(_ context.Context, postID, _ string) (string, error) {
	if m.failOn[postID] {
		return "", fmt.Errorf("platform rejected comment")
	}
	return "comment-on-" + postID, nil
}

func (m *mockClient) CreateReply(_ context.Context, commentID, _ string) (string, error) {
	if m.failOn[commentID] {
		return "", fmt.Errorf("platform rejected reply")
	}
	return "reply-to-" + commentID, nil
}

func (m *mockClient) FetchPost(_ context.Context, postID string) (platform.Post, error) {
	return platform.Post{ID: postID, Text: m.postText}, nil
}

func (m *mockClient) FetchComments(_ context.Context, _ string, limit int) ([]platform.Comment, error) {
	if limit < len(m.comments) {
		return m.comments[:limit], nil
	}
	return m.comments, nil
}

// mockNotifyTransport records sent notifications.
type mockNotifyTransport struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (m *mockNotifyTransport) Name() string { return "email" }

func (m *mockNotifyTransport) Send(_ context.Context, _, subject, plainBody, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, plainBody)
	return nil
}

func (m *mockNotifyTransport) sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subjects)
}

type fixture struct {
	driver    *mockDriver
	backend   *mockBackend
	client    *mockClient
	transport *mockNotifyTransport
	store     *store.Store
	orch      *Orchestrator
}

func newFixture(retries int) *fixture {
	driver := newMockDriver()
	backend := &mockBackend{}
	client := &mockClient{name: platform.Instagram}
	transport := &mockNotifyTransport{}

	s := store.New(driver, &profile.Profile{})
	registry := platform.NewRegistry()
	registry.Register(client)
	notifier := notify.NewNotifier()
	notifier.Register(transport)

	orch := New(
		s,
		prefs.NewResolver(s),
		generate.NewGenerator(backend, generate.Config{}),
		dispatch.NewDispatcher(registry, s),
		registry,
		notifier,
		Options{
			OperatorUserID:    1,
			OperatorEmail:     "operator@example.com",
			GenerationRetries: retries,
		},
	)

	return &fixture{
		driver:    driver,
		backend:   backend,
		client:    client,
		transport: transport,
		store:     s,
		orch:      orch,
	}
}

func (f *fixture) addCaption(text, category string) {
	_, _ = f.driver.CreateCaption(context.Background(), &store.CreateCaption{Text: text, Category: category})
}

func TestCreatePost_Success(t *testing.T) {
	f := newFixture(1)
	f.addCaption("sunset vibes", "general")

	result, err := f.orch.CreatePost(context.Background(), platform.Instagram, "")
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.Equal(t, "post-1", result.TargetID)
	assert.Equal(t, "generated text", result.GeneratedText)

	// The outcome is audited and the operator notified.
	require.Len(t, f.driver.results, 1)
	assert.Equal(t, 1, f.transport.sent())
}

func TestCreatePost_NoCaptions(t *testing.T) {
	f := newFixture(1)

	_, err := f.orch.CreatePost(context.Background(), platform.Instagram, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, f.backend.callCount())
}

func TestCreatePost_GenerationRetried(t *testing.T) {
	f := newFixture(1)
	f.addCaption("sunset vibes", "general")
	f.backend.failures = 1

	result, err := f.orch.CreatePost(context.Background(), platform.Instagram, "")
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.Equal(t, 2, f.backend.callCount())
}

func TestCreatePost_RetriesExhausted(t *testing.T) {
	f := newFixture(1)
	f.addCaption("sunset vibes", "general")
	f.backend.failures = 10

	_, err := f.orch.CreatePost(context.Background(), platform.Instagram, "")
	require.Error(t, err)

	var genErr *generate.GenerationError
	assert.ErrorAs(t, err, &genErr)
	// One attempt plus one retry.
	assert.Equal(t, 2, f.backend.callCount())
	// Nothing was dispatched or audited.
	assert.Empty(t, f.driver.results)
	assert.Zero(t, f.transport.sent())
}

func TestCreatePost_UnsupportedPlatform(t *testing.T) {
	f := newFixture(1)
	f.addCaption("sunset vibes", "general")

	_, err := f.orch.CreatePost(context.Background(), "myspace", "")

	var unsupported *platform.UnsupportedPlatformError
	require.ErrorAs(t, err, &unsupported)
	assert.Empty(t, f.driver.results)
}

func TestCommentToPost_Success(t *testing.T) {
	f := newFixture(1)
	f.client.postText = "golden hour at the pier"

	result, err := f.orch.CommentToPost(context.Background(), platform.Instagram, "post-7")
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.Equal(t, "comment-on-post-7", result.TargetID)
	assert.Equal(t, store.ActionComment, result.Action)

	// The prompt carries the post's text, not its identifier.
	assert.Contains(t, f.backend.prompt(0), "Content: golden hour at the pier")
	assert.NotContains(t, f.backend.prompt(0), "post-7")
}

// One failing item must not abort the rest of the batch.
func TestReplyToComments_PartialFailure(t *testing.T) {
	f := newFixture(1)
	f.client.comments = []platform.Comment{
		{ID: "c1", PostID: "p1", Text: "love it"},
		{ID: "c2", PostID: "p1", Text: "meh"},
		{ID: "c3", PostID: "p1", Text: "great shot"},
	}
	f.client.failOn = map[string]bool{"c2": true}

	results, err := f.orch.ReplyToComments(context.Background(), platform.Instagram, "p1", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	failed := 0
	for _, r := range results {
		if !r.Succeeded() {
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	// Every item, including the failure, is audited; one summary goes out.
	assert.Len(t, f.driver.results, 3)
	assert.Equal(t, 1, f.transport.sent())
	assert.Contains(t, f.transport.subjects[0], "2/3")
}

// A generation failure inside the batch must surface as a failure result,
// not shrink the result list.
func TestReplyToComments_GenerationFailureRecorded(t *testing.T) {
	f := newFixture(0)
	f.client.comments = []platform.Comment{
		{ID: "c1", PostID: "p1", Text: "love it"},
		{ID: "c2", PostID: "p1", Text: "meh"},
		{ID: "c3", PostID: "p1", Text: "great shot"},
	}
	// The first item's single generation attempt fails.
	f.backend.failures = 1

	results, err := f.orch.ReplyToComments(context.Background(), platform.Instagram, "p1", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.False(t, results[0].Succeeded())
	assert.Equal(t, store.ActionReply, results[0].Action)
	assert.Equal(t, "c1", results[0].TargetID)
	assert.NotEmpty(t, results[0].Error)
	assert.True(t, results[1].Succeeded())
	assert.True(t, results[2].Succeeded())

	// The failure is audited alongside the successes and counted in the
	// summary.
	assert.Len(t, f.driver.results, 3)
	require.Equal(t, 1, f.transport.sent())
	assert.Contains(t, f.transport.subjects[0], "2/3")
}

// Each reply follows the comment author's stored preferences; authors without
// a record fall back to defaults.
func TestReplyToComments_UsesAuthorPreferences(t *testing.T) {
	f := newFixture(1)
	f.driver.prefs[5] = &store.UserPreferences{
		UserID:           5,
		ReplyContentTone: strPtr("sarcastic"),
	}
	f.client.comments = []platform.Comment{
		{ID: "c1", PostID: "p1", UserID: 5, Text: "love it"},
		{ID: "c2", PostID: "p1", UserID: 9, Text: "meh"},
	}

	_, err := f.orch.ReplyToComments(context.Background(), platform.Instagram, "p1", 10)
	require.NoError(t, err)

	require.Equal(t, 2, f.backend.callCount())
	assert.Contains(t, f.backend.prompt(0), "Content tone: sarcastic.")
	assert.Contains(t, f.backend.prompt(1), "Content tone: friendly.")
}

func TestReplyToComments_NoComments(t *testing.T) {
	f := newFixture(1)

	results, err := f.orch.ReplyToComments(context.Background(), platform.Instagram, "p1", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, f.transport.sent())
}

func TestReplyToComments_HonorsLimit(t *testing.T) {
	f := newFixture(1)
	f.client.comments = []platform.Comment{
		{ID: "c1", Text: "one"},
		{ID: "c2", Text: "two"},
		{ID: "c3", Text: "three"},
	}

	results, err := f.orch.ReplyToComments(context.Background(), platform.Instagram, "p1", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHandleNewComment_RepliesOnPlatform(t *testing.T) {
	f := newFixture(1)

	row, err := json.Marshal(map[string]any{
		"id":       "c1",
		"post_id":  "p1",
		"user_id":  5,
		"platform": platform.Instagram,
		"text":     "nice shot!",
	})
	require.NoError(t, err)

	err = f.orch.handleNewComment(context.Background(), eventbus.Event{
		Kind:  eventbus.KindNewComment,
		Table: "comments",
		ID:    "c1",
		Row:   row,
	})
	require.NoError(t, err)

	require.Len(t, f.driver.results, 1)
	assert.Equal(t, store.ActionReply, f.driver.results[0].Action)
	assert.Equal(t, "reply-to-c1", f.driver.results[0].TargetID)
	assert.Equal(t, 1, f.transport.sent())
}

// An event-driven reply picks up the comment author's preferences, keyed by
// the user_id the change feed row carries.
func TestHandleNewComment_UsesAuthorPreferences(t *testing.T) {
	f := newFixture(1)
	f.driver.prefs[5] = &store.UserPreferences{
		UserID:           5,
		ReplyContentTone: strPtr("sarcastic"),
	}

	row, err := json.Marshal(map[string]any{
		"id":       "c1",
		"post_id":  "p1",
		"user_id":  5,
		"platform": platform.Instagram,
		"text":     "nice shot!",
	})
	require.NoError(t, err)

	err = f.orch.handleNewComment(context.Background(), eventbus.Event{
		Kind:  eventbus.KindNewComment,
		Table: "comments",
		ID:    "c1",
		Row:   row,
	})
	require.NoError(t, err)

	require.Equal(t, 1, f.backend.callCount())
	assert.Contains(t, f.backend.prompt(0), "Content tone: sarcastic.")
	// Routing still follows the operator's settings.
	assert.Equal(t, 1, f.transport.sent())
}

func TestHandleNewComment_SkipsUntaggedRows(t *testing.T) {
	f := newFixture(1)

	err := f.orch.handleNewComment(context.Background(), eventbus.Event{
		Kind:  eventbus.KindNewComment,
		Table: "comments",
		ID:    "c1",
		Row:   json.RawMessage(`{"id": "c1", "text": "hi"}`),
	})
	require.NoError(t, err)
	assert.Empty(t, f.driver.results)
}

// A preference change event must drop the cached record so the next cycle
// sees fresh values.
func TestHandlePreferencesChanged_InvalidatesCache(t *testing.T) {
	f := newFixture(1)
	f.driver.prefs[1] = &store.UserPreferences{UserID: 1, ContentTone: "neutral"}

	// Warm the cache.
	_, err := f.store.GetUserPreferences(context.Background(), &store.FindUserPreferences{UserID: int32Ptr(1)})
	require.NoError(t, err)
	before := f.driver.prefCalls

	// Cached: no new driver call.
	_, err = f.store.GetUserPreferences(context.Background(), &store.FindUserPreferences{UserID: int32Ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, before, f.driver.prefCalls)

	err = f.orch.handlePreferencesChanged(context.Background(), eventbus.Event{
		Kind:  eventbus.KindRowUpdated,
		Table: "user_preferences",
		ID:    "1",
	})
	require.NoError(t, err)

	// Invalidated: the next read goes back to the driver.
	_, err = f.store.GetUserPreferences(context.Background(), &store.FindUserPreferences{UserID: int32Ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, before+1, f.driver.prefCalls)
}

func TestHandlePreferencesChanged_BadID(t *testing.T) {
	f := newFixture(1)

	err := f.orch.handlePreferencesChanged(context.Background(), eventbus.Event{
		Kind:  eventbus.KindRowUpdated,
		Table: "user_preferences",
		ID:    "not-a-number",
	})
	require.Error(t, err)
}

func int32Ptr(v int32) *int32 { return &v }

func strPtr(v string) *string { return &v }
