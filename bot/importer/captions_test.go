package importer

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/socialbot/internal/profile"
	"github.com/hrygo/socialbot/store"
)

// mockDriver records created captions.
type mockDriver struct {
	captions  []*store.CreateCaption
	createErr error
}

func (m *mockDriver) GetDB() *sql.DB                  { return nil }
func (m *mockDriver) Close() error                    { return nil }
func (m *mockDriver) Migrate(_ context.Context) error { return nil }

func (m *mockDriver) CreateCaption(_ context.Context, create *store.CreateCaption) (*store.Caption, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.captions = append(m.captions, create)
	return &store.Caption{ID: int32(len(m.captions)), Text: create.Text}, nil
}

func (m *mockDriver) ListCaptions(_ context.Context, _ *store.FindCaption) ([]*store.Caption, error) {
	return nil, nil
}

func (m *mockDriver) UpdateCaptionEngagement(_ context.Context, _ *store.UpdateCaptionEngagement) error {
	return nil
}

func (m *mockDriver) GetUserPreferences(_ context.Context, _ *store.FindUserPreferences) (*store.UserPreferences, error) {
	return nil, store.ErrNotFound
}

func (m *mockDriver) UpsertUserPreferences(_ context.Context, _ *store.UpsertUserPreferences) (*store.UserPreferences, error) {
	return nil, nil
}

func (m *mockDriver) CreateActionResult(_ context.Context, create *store.ActionResult) (*store.ActionResult, error) {
	return create, nil
}

func (m *mockDriver) ListActionResults(_ context.Context, _ *store.FindActionResult) ([]*store.ActionResult, error) {
	return nil, nil
}

func newTestImporter(driver *mockDriver) *Importer {
	return NewImporter(store.New(driver, &profile.Profile{}))
}

func TestImport_PartialImport(t *testing.T) {
	driver := &mockDriver{}
	imp := newTestImporter(driver)

	input := `[
		{"text": "sunset vibes", "tags": ["sunset"], "length": "short", "category": "travel"},
		{"text": "", "length": "short"},
		{"text": "coffee time", "length": "medium"}
	]`

	report, err := imp.Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Imported)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)
	assert.Contains(t, report.Failures[0].Reason, "text is required")

	require.Len(t, driver.captions, 2)
	assert.Equal(t, "sunset vibes", driver.captions[0].Text)
	assert.Equal(t, "coffee time", driver.captions[1].Text)
}

func TestImport_NestedEngagement(t *testing.T) {
	driver := &mockDriver{}
	imp := newTestImporter(driver)

	input := `[{"text": "sunset vibes", "engagement": {"likes": 120, "shares": 14, "comments": 33}}]`

	report, err := imp.Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)

	require.Len(t, driver.captions, 1)
	assert.Equal(t, int32(120), driver.captions[0].Likes)
	assert.Equal(t, int32(14), driver.captions[0].Shares)
	assert.Equal(t, int32(33), driver.captions[0].Comments)
}

// Flat counters from older export files still import, but the nested object
// wins when both shapes are present.
func TestImport_FlatEngagementFallback(t *testing.T) {
	driver := &mockDriver{}
	imp := newTestImporter(driver)

	input := `[
		{"text": "flat only", "likes": 7, "shares": 2, "comments": 1},
		{"text": "both shapes", "likes": 7, "engagement": {"likes": 50}}
	]`

	report, err := imp.Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)

	require.Len(t, driver.captions, 2)
	assert.Equal(t, int32(7), driver.captions[0].Likes)
	assert.Equal(t, int32(2), driver.captions[0].Shares)
	assert.Equal(t, int32(50), driver.captions[1].Likes)
	assert.Zero(t, driver.captions[1].Shares)
}

func TestImport_RejectsUnknownLength(t *testing.T) {
	driver := &mockDriver{}
	imp := newTestImporter(driver)

	report, err := imp.Import(context.Background(), strings.NewReader(`[{"text": "hi", "length": "gigantic"}]`))
	require.NoError(t, err)

	assert.Zero(t, report.Imported)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Reason, "gigantic")
	assert.Empty(t, driver.captions)
}

func TestImport_DefaultsLengthToMedium(t *testing.T) {
	driver := &mockDriver{}
	imp := newTestImporter(driver)

	report, err := imp.Import(context.Background(), strings.NewReader(`[{"text": "hi"}]`))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	require.Len(t, driver.captions, 1)
	assert.Equal(t, store.CaptionLengthMedium, driver.captions[0].Length)
}

func TestImport_InsertErrorReported(t *testing.T) {
	driver := &mockDriver{createErr: assert.AnError}
	imp := newTestImporter(driver)

	report, err := imp.Import(context.Background(), strings.NewReader(`[{"text": "hi"}]`))
	require.NoError(t, err)

	assert.Zero(t, report.Imported)
	require.Len(t, report.Failures, 1)
}

func TestImport_MalformedInputFails(t *testing.T) {
	imp := newTestImporter(&mockDriver{})

	_, err := imp.Import(context.Background(), strings.NewReader(`{not json`))
	require.Error(t, err)
}
