package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/store"
)

func (d *DB) CreateCaption(ctx context.Context, create *store.CreateCaption) (*store.Caption, error) {
	query := `
		INSERT INTO captions (
			text, tags, length, category, tone, audience, language,
			likes, shares, comments
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_ts, updated_ts
	`

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

	err := d.db.QueryRowContext(ctx, query,
		create.Text,
		pq.Array(caption.Tags),
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
		where, args = append(where, fmt.Sprintf("id = $%d", len(args)+1)), append(args, *v)
	}
	if v := find.Category; v != nil {
		where, args = append(where, fmt.Sprintf("category = $%d", len(args)+1)), append(args, *v)
	}
	if v := find.Tone; v != nil {
		where, args = append(where, fmt.Sprintf("tone = $%d", len(args)+1)), append(args, *v)
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
		if err := rows.Scan(
			&caption.ID,
			&caption.Text,
			pq.Array(&caption.Tags),
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
		list = append(list, caption)
	}

	return list, rows.Err()
}

func (d *DB) UpdateCaptionEngagement(ctx context.Context, update *store.UpdateCaptionEngagement) error {
	query := `
		UPDATE captions
		SET likes = $2, shares = $3, comments = $4, updated_ts = EXTRACT(EPOCH FROM NOW())
		WHERE id = $1
	`
	result, err := d.db.ExecContext(ctx, query, update.ID, update.Likes, update.Shares, update.Comments)
	if err != nil {
		return errors.Wrap(err, "failed to update caption engagement")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
