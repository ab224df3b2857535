package repository

import (
	"context"
	"errors"

	"realty_portal_backend/internal/routing/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// AddCandidature records a realtor's application for a board lead. A second
// application by the same realtor is reported as a duplicate, not an error
// the caller should retry.
func (r *Repository) AddCandidature(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Candidature, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO candidatures (lead_id, realtor_id)
		VALUES ($1, $2)
		RETURNING id, lead_id, realtor_id, created_at
	`, leadID, realtorID)

	var c domain.Candidature
	err := row.Scan(&c.ID, &c.LeadID, &c.RealtorID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Candidature{}, ErrDuplicateCandidature
		}
		return domain.Candidature{}, err
	}
	return c, nil
}

// ListCandidatures returns all applications for a lead, oldest first.
func (r *Repository) ListCandidatures(ctx context.Context, leadID uuid.UUID) ([]domain.Candidature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, realtor_id, created_at
		FROM candidatures
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Candidature, 0)
	for rows.Next() {
		var c domain.Candidature
		if err := rows.Scan(&c.ID, &c.LeadID, &c.RealtorID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCandidatures clears every application for a lead once a winner has
// been selected (or the lead leaves the board).
func (r *Repository) DeleteCandidatures(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM candidatures WHERE lead_id = $1`, leadID)
	return err
}

// CountCandidatures returns how many realtors applied for a lead.
func (r *Repository) CountCandidatures(ctx context.Context, leadID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM candidatures WHERE lead_id = $1`, leadID).Scan(&n)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	return n, nil
}
