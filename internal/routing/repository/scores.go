package repository

import (
	"context"

	"realty_portal_backend/internal/routing/domain"

	"github.com/google/uuid"
)

type AppendScoreParams struct {
	RealtorID   uuid.UUID
	Action      domain.ScoreAction
	Points      int
	Description string
}

// AppendScoreEvent writes one immutable ledger entry and folds its points
// into the realtor's running score in the same transaction. The ledger is
// append-only; corrections are new events, never edits.
func (r *Repository) AppendScoreEvent(ctx context.Context, params AppendScoreParams) (domain.ScoreEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ScoreEvent{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO score_events (realtor_id, action, points, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, realtor_id, action, points, description, created_at
	`, params.RealtorID, params.Action, params.Points, params.Description)

	var ev domain.ScoreEvent
	if err := row.Scan(&ev.ID, &ev.RealtorID, &ev.Action, &ev.Points, &ev.Description, &ev.CreatedAt); err != nil {
		return domain.ScoreEvent{}, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE queue_entries
		SET score = COALESCE(score, 0) + $2, updated_at = now()
		WHERE realtor_id = $1
	`, params.RealtorID, params.Points)
	if err != nil {
		return domain.ScoreEvent{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.ScoreEvent{}, ErrEntryNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ScoreEvent{}, err
	}
	return ev, nil
}

// ListScoreEvents returns the realtor's ledger, newest first.
func (r *Repository) ListScoreEvents(ctx context.Context, realtorID uuid.UUID, limit int) ([]domain.ScoreEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, realtor_id, action, points, description, created_at
		FROM score_events
		WHERE realtor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, realtorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ScoreEvent, 0)
	for rows.Next() {
		var ev domain.ScoreEvent
		if err := rows.Scan(&ev.ID, &ev.RealtorID, &ev.Action, &ev.Points, &ev.Description, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
