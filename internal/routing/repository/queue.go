package repository

import (
	"context"
	"errors"
	"math"

	"realty_portal_backend/internal/routing/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `realtor_id, position, score, status, active_leads, bonus_leads,
	total_accepted, total_rejected, total_expired, avg_response_seconds,
	pinned_position, pinned_at_score, last_activity_at, created_at, updated_at`

type UpsertEntryParams struct {
	RealtorID  uuid.UUID
	Status     domain.EntryStatus
	BonusLeads int
}

// UpsertEntry registers a realtor in the routing pool or updates their
// participation flag and bonus allowance. Counters and score survive
// re-registration.
func (r *Repository) UpsertEntry(ctx context.Context, params UpsertEntryParams) (domain.QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO queue_entries (realtor_id, status, bonus_leads)
		VALUES ($1, $2, $3)
		ON CONFLICT (realtor_id) DO UPDATE
		SET status = EXCLUDED.status, bonus_leads = EXCLUDED.bonus_leads, updated_at = now()
		RETURNING `+entryColumns,
		params.RealtorID, params.Status, params.BonusLeads,
	)
	return scanEntry(row)
}

// GetEntry returns the realtor's queue entry.
func (r *Repository) GetEntry(ctx context.Context, realtorID uuid.UUID) (domain.QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE realtor_id = $1`, realtorID)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QueueEntry{}, ErrEntryNotFound
	}
	return entry, err
}

// ListEntries returns every queue entry, served order first (NULL positions
// sort last), for ranking input and the standings view.
func (r *Repository) ListEntries(ctx context.Context) ([]domain.QueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		ORDER BY position ASC NULLS LAST, score DESC, realtor_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.QueueEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SetEntryStatus toggles a realtor's participation. Deactivation does not
// touch currently-held leads.
func (r *Repository) SetEntryStatus(ctx context.Context, realtorID uuid.UUID, status domain.EntryStatus) (domain.QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queue_entries SET status = $2, updated_at = now()
		WHERE realtor_id = $1
		RETURNING `+entryColumns,
		realtorID, status,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QueueEntry{}, ErrEntryNotFound
	}
	return entry, err
}

// SavePositions persists a freshly computed serving order in one
// transaction: ranked entries get their dense positions and any cleared pin
// markers written back, everyone else has their position cleared.
func (r *Repository) SavePositions(ctx context.Context, ranked []domain.QueueEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(ranked))
	for _, e := range ranked {
		ids = append(ids, e.RealtorID)
		_, err := tx.Exec(ctx, `
			UPDATE queue_entries
			SET position = $2, pinned_position = $3, pinned_at_score = $4, updated_at = now()
			WHERE realtor_id = $1
		`, e.RealtorID, e.Position, e.PinnedPosition, e.PinnedAtScore)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE queue_entries SET position = NULL, updated_at = now()
		WHERE NOT (realtor_id = ANY($1))
	`, ids)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// PinEntry records an admin override: the entry is held at the given
// position and the score at pin time is remembered so the pin can lapse
// once the score drifts far enough.
func (r *Repository) PinEntry(ctx context.Context, realtorID uuid.UUID, position int) (domain.QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queue_entries
		SET pinned_position = $2, pinned_at_score = score, updated_at = now()
		WHERE realtor_id = $1
		RETURNING `+entryColumns,
		realtorID, position,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QueueEntry{}, ErrEntryNotFound
	}
	return entry, err
}

// UnpinEntry removes a manual position override.
func (r *Repository) UnpinEntry(ctx context.Context, realtorID uuid.UUID) (domain.QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queue_entries
		SET pinned_position = NULL, pinned_at_score = NULL, updated_at = now()
		WHERE realtor_id = $1
		RETURNING `+entryColumns,
		realtorID,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QueueEntry{}, ErrEntryNotFound
	}
	return entry, err
}

// ReleaseActiveLead decrements the realtor's hold count when an accepted
// lead concludes. The floor at zero guards against double-release.
func (r *Repository) ReleaseActiveLead(ctx context.Context, realtorID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queue_entries
		SET active_leads = GREATEST(active_leads - 1, 0), updated_at = now()
		WHERE realtor_id = $1
	`, realtorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func lockEntry(ctx context.Context, tx pgx.Tx, realtorID uuid.UUID) (domain.QueueEntry, error) {
	row := tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE realtor_id = $1 FOR UPDATE`, realtorID)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QueueEntry{}, ErrEntryNotFound
	}
	return entry, err
}

func scanEntry(row rowScanner) (domain.QueueEntry, error) {
	var e domain.QueueEntry
	var score, pinnedAt *float64
	err := row.Scan(
		&e.RealtorID, &e.Position, &score, &e.Status, &e.ActiveLeads, &e.BonusLeads,
		&e.TotalAccepted, &e.TotalRejected, &e.TotalExpired, &e.AvgResponseSeconds,
		&e.PinnedPosition, &pinnedAt, &e.LastActivityAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return domain.QueueEntry{}, err
	}
	// Legacy rows may carry a NULL score; treat it as zero rather than
	// failing the whole listing.
	if score != nil {
		e.Score = int(math.Round(*score))
	}
	if pinnedAt != nil {
		v := int(math.Round(*pinnedAt))
		e.PinnedAtScore = &v
	}
	return e, nil
}
