package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested record does not exist.
// Callers that can fall back to defaults treat it as recoverable.
var ErrNotFound = errors.New("record not found")

// Driver is an interface for store layer database operations.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema when it does not exist yet.
	Migrate(ctx context.Context) error

	// Caption model
	CreateCaption(ctx context.Context, create *CreateCaption) (*Caption, error)
	ListCaptions(ctx context.Context, find *FindCaption) ([]*Caption, error)
	UpdateCaptionEngagement(ctx context.Context, update *UpdateCaptionEngagement) error

	// UserPreferences model
	GetUserPreferences(ctx context.Context, find *FindUserPreferences) (*UserPreferences, error)
	UpsertUserPreferences(ctx context.Context, upsert *UpsertUserPreferences) (*UserPreferences, error)

	// ActionResult model
	CreateActionResult(ctx context.Context, create *ActionResult) (*ActionResult, error)
	ListActionResults(ctx context.Context, find *FindActionResult) ([]*ActionResult, error)
}
