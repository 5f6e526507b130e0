package store

import (
	"context"
	"time"

	"github.com/hrygo/socialbot/internal/profile"
	"github.com/hrygo/socialbot/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// User preferences are read on every generation cycle; keep them warm.
	prefsCache *cache.LRUCache[int32, *UserPreferences]
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:     driver,
		profile:    profile,
		prefsCache: cache.NewLRUCache[int32, *UserPreferences](1000, 10*time.Minute),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	s.prefsCache.Clear()
	return s.driver.Close()
}

func (s *Store) CreateCaption(ctx context.Context, create *CreateCaption) (*Caption, error) {
	return s.driver.CreateCaption(ctx, create)
}

func (s *Store) ListCaptions(ctx context.Context, find *FindCaption) ([]*Caption, error) {
	return s.driver.ListCaptions(ctx, find)
}

// RandomCaption picks one caption at random, optionally filtered by category.
func (s *Store) RandomCaption(ctx context.Context, category *string) (*Caption, error) {
	limit := 1
	captions, err := s.driver.ListCaptions(ctx, &FindCaption{
		Category: category,
		Limit:    &limit,
		Random:   true,
	})
	if err != nil {
		return nil, err
	}
	if len(captions) == 0 {
		return nil, ErrNotFound
	}
	return captions[0], nil
}

func (s *Store) UpdateCaptionEngagement(ctx context.Context, update *UpdateCaptionEngagement) error {
	return s.driver.UpdateCaptionEngagement(ctx, update)
}

func (s *Store) GetUserPreferences(ctx context.Context, find *FindUserPreferences) (*UserPreferences, error) {
	if find.UserID != nil {
		if cached, ok := s.prefsCache.Get(*find.UserID); ok {
			return cached, nil
		}
	}

	prefs, err := s.driver.GetUserPreferences(ctx, find)
	if err != nil {
		return nil, err
	}
	s.prefsCache.SetWithDefaultTTL(prefs.UserID, prefs)
	return prefs, nil
}

func (s *Store) UpsertUserPreferences(ctx context.Context, upsert *UpsertUserPreferences) (*UserPreferences, error) {
	prefs, err := s.driver.UpsertUserPreferences(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.prefsCache.SetWithDefaultTTL(prefs.UserID, prefs)
	return prefs, nil
}

// InvalidateUserPreferences drops the cached record for a user. The event bus
// calls this when a user_preferences row changes under us.
func (s *Store) InvalidateUserPreferences(userID int32) {
	s.prefsCache.Remove(userID)
}

func (s *Store) CreateActionResult(ctx context.Context, create *ActionResult) (*ActionResult, error) {
	return s.driver.CreateActionResult(ctx, create)
}

func (s *Store) ListActionResults(ctx context.Context, find *FindActionResult) ([]*ActionResult, error) {
	return s.driver.ListActionResults(ctx, find)
}
