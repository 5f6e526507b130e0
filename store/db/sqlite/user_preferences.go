package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

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

	query := `SELECT ` + userPreferencesColumns + ` FROM user_preferences WHERE user_id = ?`

	prefs, err := scanUserPreferences(d.db.QueryRowContext(ctx, query, *find.UserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to get preferences for user %d", *find.UserID)
	}
	return prefs, nil
}

func (d *DB) UpsertUserPreferences(ctx context.Context, upsert *store.UpsertUserPreferences) (*store.UserPreferences, error) {
	var tagsJSON any
	if upsert.Tags != nil {
		data, err := json.Marshal(upsert.Tags)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal tags")
		}
		tagsJSON = string(data)
	}

	query := `
		INSERT INTO user_preferences (
			user_id, response_style, content_tone, interaction_type,
			comment_response_style, comment_content_tone, comment_interaction_type,
			reply_response_style, reply_content_tone, reply_interaction_type,
			tags, category, tone, audience, language, content_frequency,
			notifications_enabled, notification_method, email, telegram_chat_id
		) VALUES (
			?1, COALESCE(?2, ''), COALESCE(?3, ''), COALESCE(?4, ''),
			?5, ?6, ?7,
			?8, ?9, ?10,
			COALESCE(?11, '[]'), COALESCE(?12, ''), COALESCE(?13, ''), COALESCE(?14, ''), COALESCE(?15, ''), COALESCE(?16, ''),
			COALESCE(?17, 1), COALESCE(?18, 'email'), COALESCE(?19, ''), COALESCE(?20, 0)
		)
		ON CONFLICT (user_id) DO UPDATE SET
			response_style = COALESCE(?2, response_style),
			content_tone = COALESCE(?3, content_tone),
			interaction_type = COALESCE(?4, interaction_type),
			comment_response_style = COALESCE(?5, comment_response_style),
			comment_content_tone = COALESCE(?6, comment_content_tone),
			comment_interaction_type = COALESCE(?7, comment_interaction_type),
			reply_response_style = COALESCE(?8, reply_response_style),
			reply_content_tone = COALESCE(?9, reply_content_tone),
			reply_interaction_type = COALESCE(?10, reply_interaction_type),
			tags = COALESCE(?11, tags),
			category = COALESCE(?12, category),
			tone = COALESCE(?13, tone),
			audience = COALESCE(?14, audience),
			language = COALESCE(?15, language),
			content_frequency = COALESCE(?16, content_frequency),
			notifications_enabled = COALESCE(?17, notifications_enabled),
			notification_method = COALESCE(?18, notification_method),
			email = COALESCE(?19, email),
			telegram_chat_id = COALESCE(?20, telegram_chat_id),
			updated_ts = strftime('%s', 'now')
		RETURNING ` + userPreferencesColumns

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
		tagsJSON,
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
		tagsJSON                                                         string
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
		&tagsJSON,
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

	if err := json.Unmarshal([]byte(tagsJSON), &prefs.Tags); err != nil {
		prefs.Tags = []string{}
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
