// Package db provides the database driver constructor.
package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/internal/profile"
	"github.com/hrygo/socialbot/store"
	"github.com/hrygo/socialbot/store/db/postgres"
	"github.com/hrygo/socialbot/store/db/sqlite"
)

// NewDBDriver creates a new DB driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "postgres":
		return postgres.NewDB(profile)
	case "sqlite":
		return sqlite.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q", profile.Driver)
	}
}
