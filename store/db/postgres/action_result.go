package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/store"
)

func (d *DB) CreateActionResult(ctx context.Context, create *store.ActionResult) (*store.ActionResult, error) {
	query := `
		INSERT INTO action_results (
			id, action, platform, target_id, status, generated_text, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_ts
	`

	result := *create
	err := d.db.QueryRowContext(ctx, query,
		create.ID,
		create.Action,
		create.Platform,
		create.TargetID,
		create.Status,
		create.GeneratedText,
		create.Error,
	).Scan(&result.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert action result")
	}

	return &result, nil
}

func (d *DB) ListActionResults(ctx context.Context, find *store.FindActionResult) ([]*store.ActionResult, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.Platform; v != nil {
		where, args = append(where, fmt.Sprintf("platform = $%d", len(args)+1)), append(args, *v)
	}
	if v := find.Action; v != nil {
		where, args = append(where, fmt.Sprintf("action = $%d", len(args)+1)), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, fmt.Sprintf("status = $%d", len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, action, platform, target_id, status, generated_text, error, created_ts
		FROM action_results
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC`
	if v := find.Limit; v != nil {
		query += fmt.Sprintf(" LIMIT %d", *v)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list action results")
	}
	defer rows.Close()

	list := []*store.ActionResult{}
	for rows.Next() {
		result := &store.ActionResult{}
		if err := rows.Scan(
			&result.ID,
			&result.Action,
			&result.Platform,
			&result.TargetID,
			&result.Status,
			&result.GeneratedText,
			&result.Error,
			&result.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan action result")
		}
		list = append(list, result)
	}

	return list, rows.Err()
}
