// Package repository provides pgx-backed storage for the routing bounded
// context. Lead state transitions are compare-and-swap guarded: every
// transition is conditioned on the row's current status (and holder), so
// concurrent attempts resolve to exactly one winner and losers observe a
// stale-state error.
package repository

import (
	"context"
	"errors"
	"time"

	"realty_portal_backend/internal/routing/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound means the lead does not exist.
	ErrNotFound = errors.New("lead not found")
	// ErrEntryNotFound means the realtor has no queue entry.
	ErrEntryNotFound = errors.New("queue entry not found")
	// ErrStaleState means a transition lost the race: the lead is no longer
	// in the expected source state for the attempted move.
	ErrStaleState = errors.New("lead state changed concurrently")
	// ErrCapacityExceeded means the realtor is at their exclusive-hold limit.
	ErrCapacityExceeded = errors.New("realtor at capacity")
	// ErrDuplicateCandidature means the realtor already applied for the lead.
	ErrDuplicateCandidature = errors.New("candidature already submitted")
)

const leadColumns = `id, property_id, contact_name, contact_email, contact_phone,
	status, routing_mode, exclusive_realtor_id, reserved_for, reserved_at, reserved_until,
	dead_lettered_at, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type CreateLeadParams struct {
	PropertyID         uuid.UUID
	ContactName        string
	ContactEmail       *string
	ContactPhone       string
	ExclusiveRealtorID *uuid.UUID
}

// CreateLead inserts a new lead in AVAILABLE state with DIRECT routing. The
// dispatcher flips the routing mode to BOARD when it publishes the lead.
func (r *Repository) CreateLead(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (property_id, contact_name, contact_email, contact_phone, status, routing_mode, exclusive_realtor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+leadColumns,
		params.PropertyID, params.ContactName, params.ContactEmail, params.ContactPhone,
		domain.StatusAvailable, domain.ModeDirect, params.ExclusiveRealtorID,
	)
	return scanLead(row)
}

// GetLead returns the lead by id.
func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// ReserveLead moves an AVAILABLE lead to RESERVED for the given realtor.
// The update is conditioned on the lead still being AVAILABLE; if another
// assignment won the race the call returns ErrStaleState and nothing changes.
// A successful reservation counts as activity for the realtor, so the
// longest-idle tiebreak rotates assignments among equal-score realtors.
func (r *Repository) ReserveLead(ctx context.Context, leadID, realtorID uuid.UUID, until time.Time) (domain.Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE leads
		SET status = $3, reserved_for = $2, reserved_at = now(), reserved_until = $4, updated_at = now()
		WHERE id = $1 AND status = $5
		RETURNING `+leadColumns,
		leadID, realtorID, domain.StatusReserved, until, domain.StatusAvailable,
	)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the lead is gone or another transition won. Disambiguate so
		// the caller can report accurately.
		if _, getErr := r.GetLead(ctx, leadID); getErr != nil {
			return domain.Lead{}, getErr
		}
		return domain.Lead{}, ErrStaleState
	}
	if err != nil {
		return domain.Lead{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE queue_entries
		SET last_activity_at = now(), updated_at = now()
		WHERE realtor_id = $1
	`, realtorID)
	if err != nil {
		return domain.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// SetRoutingMode flips the lead's routing mode (used when publishing to the
// board). Only AVAILABLE leads can move between modes.
func (r *Repository) SetRoutingMode(ctx context.Context, leadID uuid.UUID, mode domain.RoutingMode) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET routing_mode = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+leadColumns,
		leadID, mode, domain.StatusAvailable,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetLead(ctx, leadID); getErr != nil {
			return domain.Lead{}, getErr
		}
		return domain.Lead{}, ErrStaleState
	}
	return lead, err
}

// AcceptLead moves RESERVED(realtor) to ACCEPTED(realtor) and applies the
// queue entry side effects (hold count, accept counter, response-time
// average, activity timestamp) inside the same transaction, so counters can
// never drift from lead states. The realtor's capacity is checked under the
// row lock; at capacity the lead stays RESERVED and ErrCapacityExceeded is
// returned. Returns the accepted lead and the response time.
func (r *Repository) AcceptLead(ctx context.Context, leadID, realtorID uuid.UUID, maxActivePerRealtor int) (domain.Lead, time.Duration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, 0, err
	}
	defer tx.Rollback(ctx)

	lead, err := lockLead(ctx, tx, leadID)
	if err != nil {
		return domain.Lead{}, 0, err
	}
	if !lead.HeldBy(realtorID) {
		return domain.Lead{}, 0, ErrStaleState
	}

	entry, err := lockEntry(ctx, tx, realtorID)
	if err != nil {
		return domain.Lead{}, 0, err
	}
	if entry.ActiveLeads >= entry.Capacity(maxActivePerRealtor) {
		return domain.Lead{}, 0, ErrCapacityExceeded
	}

	responseTime := time.Duration(0)
	if lead.ReservedAt != nil {
		responseTime = time.Since(*lead.ReservedAt)
	}

	row := tx.QueryRow(ctx, `
		UPDATE leads SET status = $2, reserved_until = NULL, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		leadID, domain.StatusAccepted,
	)
	accepted, err := scanLead(row)
	if err != nil {
		return domain.Lead{}, 0, err
	}

	// Same EMA as domain.NextResponseAverage, expressed in SQL so the
	// counter update stays in the transition's transaction.
	_, err = tx.Exec(ctx, `
		UPDATE queue_entries
		SET active_leads = active_leads + 1,
			total_accepted = total_accepted + 1,
			avg_response_seconds = CASE WHEN avg_response_seconds IS NULL THEN $2
				ELSE 0.8 * avg_response_seconds + 0.2 * $2 END,
			last_activity_at = now(), updated_at = now()
		WHERE realtor_id = $1
	`, realtorID, responseTime.Seconds())
	if err != nil {
		return domain.Lead{}, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, 0, err
	}
	return accepted, responseTime, nil
}

// RejectLead moves RESERVED(realtor) back to AVAILABLE, records the realtor
// as excluded from future picks for this lead, and bumps the reject counter,
// all in one transaction.
func (r *Repository) RejectLead(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback(ctx)

	lead, err := lockLead(ctx, tx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}
	if !lead.HeldBy(realtorID) {
		return domain.Lead{}, ErrStaleState
	}

	released, err := clearReservation(ctx, tx, leadID, domain.StatusAvailable)
	if err != nil {
		return domain.Lead{}, err
	}

	if err := addExclusion(ctx, tx, leadID, realtorID); err != nil {
		return domain.Lead{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE queue_entries
		SET total_rejected = total_rejected + 1, last_activity_at = now(), updated_at = now()
		WHERE realtor_id = $1
	`, realtorID)
	if err != nil {
		return domain.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return released, nil
}

// ExpireLead handles a lapsed reservation. The transition is guarded on the
// lead still being RESERVED with reserved_until in the past, so concurrent
// sweeps (or a sweep racing a late accept) resolve to a single winner.
// When reassign is true the lead goes straight back to AVAILABLE; otherwise
// it parks in EXPIRED for admin attention. Returns the updated lead and the
// realtor whose hold lapsed.
func (r *Repository) ExpireLead(ctx context.Context, leadID uuid.UUID, now time.Time, reassign bool) (domain.Lead, uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	lead, err := lockLead(ctx, tx, leadID)
	if err != nil {
		return domain.Lead{}, uuid.Nil, err
	}
	if !lead.ReservationDue(now) {
		return domain.Lead{}, uuid.Nil, ErrStaleState
	}
	holder := *lead.ReservedFor

	target := domain.StatusExpired
	if reassign {
		target = domain.StatusAvailable
	}
	expired, err := clearReservation(ctx, tx, leadID, target)
	if err != nil {
		return domain.Lead{}, uuid.Nil, err
	}

	if err := addExclusion(ctx, tx, leadID, holder); err != nil {
		return domain.Lead{}, uuid.Nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE queue_entries
		SET total_expired = total_expired + 1, updated_at = now()
		WHERE realtor_id = $1
	`, holder)
	if err != nil {
		return domain.Lead{}, uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, uuid.Nil, err
	}
	return expired, holder, nil
}

// ReleaseLead is the admin force-release: RESERVED, EXPIRED, or DEAD_LETTER
// back to AVAILABLE with no counter or exclusion side effects. Returns the
// updated lead and the former holder (uuid.Nil if the lead was not held).
func (r *Repository) ReleaseLead(ctx context.Context, leadID uuid.UUID) (domain.Lead, uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	lead, err := lockLead(ctx, tx, leadID)
	if err != nil {
		return domain.Lead{}, uuid.Nil, err
	}
	if !domain.CanTransition(lead.Status, domain.StatusAvailable) {
		return domain.Lead{}, uuid.Nil, ErrStaleState
	}
	holder := uuid.Nil
	if lead.ReservedFor != nil {
		holder = *lead.ReservedFor
	}

	released, err := clearReservation(ctx, tx, leadID, domain.StatusAvailable)
	if err != nil {
		return domain.Lead{}, uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, uuid.Nil, err
	}
	return released, holder, nil
}

// MarkDeadLetter parks an AVAILABLE lead that dispatch could not place.
func (r *Repository) MarkDeadLetter(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET status = $2, dead_lettered_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+leadColumns,
		leadID, domain.StatusDeadLetter, domain.StatusAvailable,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetLead(ctx, leadID); getErr != nil {
			return domain.Lead{}, getErr
		}
		return domain.Lead{}, ErrStaleState
	}
	return lead, err
}

// ListDueReservations returns ids of leads whose reservation lapsed at or
// before the given instant. This is the durable due-time index backing the
// expiry sweep; leads(status, reserved_until) is indexed for it.
func (r *Repository) ListDueReservations(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM leads
		WHERE status = $1 AND reserved_until <= $2
		ORDER BY reserved_until ASC
		LIMIT $3
	`, domain.StatusReserved, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDeadLetters returns leads waiting on operator intervention: expired
// holds that were not auto-reassigned plus leads dispatch gave up on.
func (r *Repository) ListDeadLetters(ctx context.Context) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE status = ANY($1)
		ORDER BY updated_at DESC
	`, []string{string(domain.StatusExpired), string(domain.StatusDeadLetter)})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLeadRows(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// ListBoardLeads returns AVAILABLE board-routed leads, oldest first.
func (r *Repository) ListBoardLeads(ctx context.Context) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE status = $1 AND routing_mode = $2
		ORDER BY created_at ASC
	`, domain.StatusAvailable, domain.ModeBoard)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLeadRows(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// ListExclusions returns realtors excluded from future picks for the lead
// (prior rejecters and holders whose reservation expired).
func (r *Repository) ListExclusions(ctx context.Context, leadID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT realtor_id FROM lead_exclusions WHERE lead_id = $1
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func lockLead(ctx context.Context, tx pgx.Tx, leadID uuid.UUID) (domain.Lead, error) {
	row := tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, leadID)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func clearReservation(ctx context.Context, tx pgx.Tx, leadID uuid.UUID, target domain.Status) (domain.Lead, error) {
	row := tx.QueryRow(ctx, `
		UPDATE leads
		SET status = $2, reserved_for = NULL, reserved_at = NULL, reserved_until = NULL, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		leadID, target,
	)
	return scanLead(row)
}

func addExclusion(ctx context.Context, tx pgx.Tx, leadID, realtorID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO lead_exclusions (lead_id, realtor_id)
		VALUES ($1, $2)
		ON CONFLICT (lead_id, realtor_id) DO NOTHING
	`, leadID, realtorID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var lead domain.Lead
	err := row.Scan(
		&lead.ID, &lead.PropertyID, &lead.ContactName, &lead.ContactEmail, &lead.ContactPhone,
		&lead.Status, &lead.RoutingMode, &lead.ExclusiveRealtorID, &lead.ReservedFor,
		&lead.ReservedAt, &lead.ReservedUntil, &lead.DeadLetteredAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

func scanLeadRows(rows pgx.Rows) (domain.Lead, error) {
	return scanLead(rows)
}
