// Package prefs resolves layered user preferences into one flat generation
// configuration: hardcoded system defaults, then the user's base fields, then
// scope-specific overrides, highest precedence last.
package prefs

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/store"
)

// Scope is the interaction context that selects which preference fields apply.
type Scope string

const (
	ScopePost    Scope = "post"
	ScopeComment Scope = "comment"
	ScopeReply   Scope = "reply"
)

// Resolved is a fully-populated flat configuration. No field is ever empty:
// the rest of the pipeline depends on this invariant.
type Resolved struct {
	ResponseStyle    string
	ContentTone      string
	InteractionType  string
	Tags             []string
	Category         string
	Tone             string
	Audience         string
	Language         string
	ContentFrequency string

	NotificationsEnabled bool
	NotificationMethod   string
	Email                string
	TelegramChatID       int64
}

// Defaults returns the system-wide fallback configuration, the lowest
// precedence level. Values follow the original deployment defaults.
func Defaults() Resolved {
	return Resolved{
		ResponseStyle:        "casual",
		ContentTone:          "friendly",
		InteractionType:      "reactive",
		Tags:                 []string{},
		Category:             "general",
		Tone:                 "friendly",
		Audience:             "general",
		Language:             "en",
		ContentFrequency:     "daily",
		NotificationsEnabled: true,
		NotificationMethod:   store.NotificationMethodEmail,
	}
}

// Resolver merges stored preference records over the system defaults.
type Resolver struct {
	store *store.Store
}

func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the effective configuration for a user and scope. A missing
// preference record falls back to system defaults and never fails the
// pipeline; only storage errors are returned.
func (r *Resolver) Resolve(ctx context.Context, userID int32, scope Scope) (*Resolved, error) {
	resolved := Defaults()

	record, err := r.store.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: &userID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Info("no preferences found for user, using defaults", "user_id", userID)
			return &resolved, nil
		}
		return nil, errors.Wrapf(err, "failed to load preferences for user %d", userID)
	}

	applyBase(&resolved, record)
	applyScope(&resolved, record, scope)

	return &resolved, nil
}

// applyBase overlays the record's base and cross-scope fields. Empty fields
// never override the defaults beneath them.
func applyBase(resolved *Resolved, record *store.UserPreferences) {
	overlay(&resolved.ResponseStyle, record.ResponseStyle)
	overlay(&resolved.ContentTone, record.ContentTone)
	overlay(&resolved.InteractionType, record.InteractionType)
	overlay(&resolved.Category, record.Category)
	overlay(&resolved.Tone, record.Tone)
	overlay(&resolved.Audience, record.Audience)
	overlay(&resolved.Language, record.Language)
	overlay(&resolved.ContentFrequency, record.ContentFrequency)
	if len(record.Tags) > 0 {
		resolved.Tags = record.Tags
	}

	resolved.NotificationsEnabled = record.NotificationsEnabled
	overlay(&resolved.NotificationMethod, record.NotificationMethod)
	resolved.Email = record.Email
	resolved.TelegramChatID = record.TelegramChatID
}

// applyScope overlays comment_*/reply_* fields for non-post scopes. Nil
// pointers mean "not set at this scope" and leave the base value in place.
func applyScope(resolved *Resolved, record *store.UserPreferences, scope Scope) {
	switch scope {
	case ScopeComment:
		overlayPtr(&resolved.ResponseStyle, record.CommentResponseStyle)
		overlayPtr(&resolved.ContentTone, record.CommentContentTone)
		overlayPtr(&resolved.InteractionType, record.CommentInteractionType)
	case ScopeReply:
		overlayPtr(&resolved.ResponseStyle, record.ReplyResponseStyle)
		overlayPtr(&resolved.ContentTone, record.ReplyContentTone)
		overlayPtr(&resolved.InteractionType, record.ReplyInteractionType)
	}
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayPtr(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}
