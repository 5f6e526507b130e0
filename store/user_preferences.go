package store

// Notification methods.
const (
	NotificationMethodEmail    = "email"
	NotificationMethodTelegram = "telegram"
)

// UserPreferences is one preference record per user. Scope-specific fields
// (Comment*, Reply*) are nullable: a nil field never overrides the base value
// during resolution. The record is soft state; it is upserted via partial
// merge and never hard-deleted.
type UserPreferences struct {
	UserID int32

	// Base scope (applies to posts, and to other scopes when unset there)
	ResponseStyle   string
	ContentTone     string
	InteractionType string

	// Comment scope overrides
	CommentResponseStyle   *string
	CommentContentTone     *string
	CommentInteractionType *string

	// Reply scope overrides
	ReplyResponseStyle   *string
	ReplyContentTone     *string
	ReplyInteractionType *string

	// Cross-scope fields
	Tags             []string
	Category         string
	Tone             string
	Audience         string
	Language         string
	ContentFrequency string

	// Notification routing
	NotificationsEnabled bool
	NotificationMethod   string
	Email                string
	TelegramChatID       int64

	CreatedTs int64
	UpdatedTs int64
}

// FindUserPreferences specifies the conditions for finding user preferences.
type FindUserPreferences struct {
	UserID *int32
}

// UpsertUserPreferences specifies the data for upserting user preferences.
// Nil pointer fields retain the prior stored value.
type UpsertUserPreferences struct {
	UserID int32

	ResponseStyle   *string
	ContentTone     *string
	InteractionType *string

	CommentResponseStyle   *string
	CommentContentTone     *string
	CommentInteractionType *string

	ReplyResponseStyle   *string
	ReplyContentTone     *string
	ReplyInteractionType *string

	Tags             []string
	Category         *string
	Tone             *string
	Audience         *string
	Language         *string
	ContentFrequency *string

	NotificationsEnabled *bool
	NotificationMethod   *string
	Email                *string
	TelegramChatID       *int64
}
