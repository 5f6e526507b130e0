package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/store"
)

func (d *DB) CreateCaption(ctx context.Context, create *store.CreateCaption) (*store.Caption, error) {
	caption := &store.Caption{
		Text:     create.Text,
		Tags:     create.Tags,
		Length:   create.Length,
		Category: create.Category,
		Tone:     create.Tone,
		Audience: create.Audience,
		Language: create.Language,
		Likes:    create.Likes,
		Shares:   create.Shares,
		Comments: create.Comments,
	}
	if caption.Tags == nil {
		caption.Tags = []string{}
	}

	tagsJSON, err := json.Marshal(caption.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tags")
	}

	query := `
		INSERT INTO captions (
			text, tags, length, category, tone, audience, language,
			likes, shares, comments
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_ts, updated_ts
	`
	err = d.db.QueryRowContext(ctx, query,
		create.Text,
		string(tagsJSON),
		create.Length,
		create.Category,
		create.Tone,
		create.Audience,
		create.Language,
		create.Likes,
		create.Shares,
		create.Comments,
	).Scan(&caption.ID, &caption.CreatedTs, &caption.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert caption")
	}

	return caption, nil
}

func (d *DB) ListCaptions(ctx context.Context, find *store.FindCaption) ([]*store.Caption, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.Category; v != nil {
		where, args = append(where, "category = ?"), append(args, *v)
	}
	if v := find.Tone; v != nil {
		where, args = append(where, "tone = ?"), append(args, *v)
	}

	query := `
		SELECT id, text, tags, length, category, tone, audience, language,
			likes, shares, comments, created_ts, updated_ts
		FROM captions
		WHERE ` + strings.Join(where, " AND ")
	if find.Random {
		query += " ORDER BY RANDOM()"
	} else {
		query += " ORDER BY id"
	}
	if v := find.Limit; v != nil {
		query += fmt.Sprintf(" LIMIT %d", *v)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list captions")
	}
	defer rows.Close()

	list := []*store.Caption{}
	for rows.Next() {
		caption := &store.Caption{}
		var tagsJSON string
		if err := rows.Scan(
			&caption.ID,
			&caption.Text,
			&tagsJSON,
			&caption.Length,
			&caption.Category,
			&caption.Tone,
			&caption.Audience,
			&caption.Language,
			&caption.Likes,
			&caption.Shares,
			&caption.Comments,
			&caption.CreatedTs,
			&caption.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan caption")
		}
		if err := json.Unmarshal([]byte(tagsJSON), &caption.Tags); err != nil {
			caption.Tags = []string{}
		}
		list = append(list, caption)
	}

	return list, rows.Err()
}

func (d *DB) UpdateCaptionEngagement(ctx context.Context, update *store.UpdateCaptionEngagement) error {
	query := `
		UPDATE captions
		SET likes = ?, shares = ?, comments = ?, updated_ts = strftime('%s', 'now')
		WHERE id = ?
	`
	result, err := d.db.ExecContext(ctx, query, update.Likes, update.Shares, update.Comments, update.ID)
	if err != nil {
		return errors.Wrap(err, "failed to update caption engagement")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
