package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/store"
)

const userPreferencesColumns = `
	user_id, response_style, content_tone, interaction_type,
	comment_response_style, comment_content_tone, comment_interaction_type,
	reply_response_style, reply_content_tone, reply_interaction_type,
	tags, category, tone, audience, language, content_frequency,
	notifications_enabled, notification_method, email, telegram_chat_id,
	created_ts, updated_ts
`

func (d *DB) GetUserPreferences(ctx context.Context, find *store.FindUserPreferences) (*store.UserPreferences, error) {
	if find.UserID == nil {
		return nil, errors.New("user_id is required")
	}

	query := `SELECT ` + userPreferencesColumns + ` FROM user_preferences WHERE user_id = $1`

	prefs, err := scanUserPreferences(d.db.QueryRowContext(ctx, query, *find.UserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to get preferences for user %d", *find.UserID)
	}
	return prefs, nil
}

// UpsertUserPreferences merges the provided fields into the stored record.
// Nil fields keep the prior value; an override column can therefore be set but
// not cleared, which is the intended soft-state lifecycle.
func (d *DB) UpsertUserPreferences(ctx context.Context, upsert *store.UpsertUserPreferences) (*store.UserPreferences, error) {
	query := `
		INSERT INTO user_preferences (
			user_id, response_style, content_tone, interaction_type,
			comment_response_style, comment_content_tone, comment_interaction_type,
			reply_response_style, reply_content_tone, reply_interaction_type,
			tags, category, tone, audience, language, content_frequency,
			notifications_enabled, notification_method, email, telegram_chat_id
		) VALUES (
			$1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, ''),
			$5, $6, $7,
			$8, $9, $10,
			COALESCE($11, '{}'), COALESCE($12, ''), COALESCE($13, ''), COALESCE($14, ''), COALESCE($15, ''), COALESCE($16, ''),
			COALESCE($17, TRUE), COALESCE($18, 'email'), COALESCE($19, ''), COALESCE($20, 0)
		)
		ON CONFLICT (user_id) DO UPDATE SET
			response_style = COALESCE($2, user_preferences.response_style),
			content_tone = COALESCE($3, user_preferences.content_tone),
			interaction_type = COALESCE($4, user_preferences.interaction_type),
			comment_response_style = COALESCE($5, user_preferences.comment_response_style),
			comment_content_tone = COALESCE($6, user_preferences.comment_content_tone),
			comment_interaction_type = COALESCE($7, user_preferences.comment_interaction_type),
			reply_response_style = COALESCE($8, user_preferences.reply_response_style),
			reply_content_tone = COALESCE($9, user_preferences.reply_content_tone),
			reply_interaction_type = COALESCE($10, user_preferences.reply_interaction_type),
			tags = COALESCE($11, user_preferences.tags),
			category = COALESCE($12, user_preferences.category),
			tone = COALESCE($13, user_preferences.tone),
			audience = COALESCE($14, user_preferences.audience),
			language = COALESCE($15, user_preferences.language),
			content_frequency = COALESCE($16, user_preferences.content_frequency),
			notifications_enabled = COALESCE($17, user_preferences.notifications_enabled),
			notification_method = COALESCE($18, user_preferences.notification_method),
			email = COALESCE($19, user_preferences.email),
			telegram_chat_id = COALESCE($20, user_preferences.telegram_chat_id),
			updated_ts = EXTRACT(EPOCH FROM NOW())
		RETURNING ` + userPreferencesColumns

	var tags any
	if upsert.Tags != nil {
		tags = pq.Array(upsert.Tags)
	}

	prefs, err := scanUserPreferences(d.db.QueryRowContext(ctx, query,
		upsert.UserID,
		upsert.ResponseStyle,
		upsert.ContentTone,
		upsert.InteractionType,
		upsert.CommentResponseStyle,
		upsert.CommentContentTone,
		upsert.CommentInteractionType,
		upsert.ReplyResponseStyle,
		upsert.ReplyContentTone,
		upsert.ReplyInteractionType,
		tags,
		upsert.Category,
		upsert.Tone,
		upsert.Audience,
		upsert.Language,
		upsert.ContentFrequency,
		upsert.NotificationsEnabled,
		upsert.NotificationMethod,
		upsert.Email,
		upsert.TelegramChatID,
	))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to upsert preferences for user %d", upsert.UserID)
	}
	return prefs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserPreferences(row rowScanner) (*store.UserPreferences, error) {
	prefs := &store.UserPreferences{}
	var (
		commentResponseStyle, commentContentTone, commentInteractionType sql.NullString
		replyResponseStyle, replyContentTone, replyInteractionType       sql.NullString
	)

	if err := row.Scan(
		&prefs.UserID,
		&prefs.ResponseStyle,
		&prefs.ContentTone,
		&prefs.InteractionType,
		&commentResponseStyle,
		&commentContentTone,
		&commentInteractionType,
		&replyResponseStyle,
		&replyContentTone,
		&replyInteractionType,
		pq.Array(&prefs.Tags),
		&prefs.Category,
		&prefs.Tone,
		&prefs.Audience,
		&prefs.Language,
		&prefs.ContentFrequency,
		&prefs.NotificationsEnabled,
		&prefs.NotificationMethod,
		&prefs.Email,
		&prefs.TelegramChatID,
		&prefs.CreatedTs,
		&prefs.UpdatedTs,
	); err != nil {
		return nil, err
	}

	prefs.CommentResponseStyle = nullableString(commentResponseStyle)
	prefs.CommentContentTone = nullableString(commentContentTone)
	prefs.CommentInteractionType = nullableString(commentInteractionType)
	prefs.ReplyResponseStyle = nullableString(replyResponseStyle)
	prefs.ReplyContentTone = nullableString(replyContentTone)
	prefs.ReplyInteractionType = nullableString(replyInteractionType)

	return prefs, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
