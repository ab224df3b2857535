package service

import (
	"context"
	"time"

	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/internal/routing/repository"

	"github.com/google/uuid"
)

// LeadStore is the lead persistence surface the engine depends on. The pgx
// repository implements it; tests substitute an in-memory fake.
type LeadStore interface {
	CreateLead(ctx context.Context, params repository.CreateLeadParams) (domain.Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ReserveLead(ctx context.Context, leadID, realtorID uuid.UUID, until time.Time) (domain.Lead, error)
	SetRoutingMode(ctx context.Context, leadID uuid.UUID, mode domain.RoutingMode) (domain.Lead, error)
	AcceptLead(ctx context.Context, leadID, realtorID uuid.UUID, maxActivePerRealtor int) (domain.Lead, time.Duration, error)
	RejectLead(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Lead, error)
	ExpireLead(ctx context.Context, leadID uuid.UUID, now time.Time, reassign bool) (domain.Lead, uuid.UUID, error)
	ReleaseLead(ctx context.Context, leadID uuid.UUID) (domain.Lead, uuid.UUID, error)
	MarkDeadLetter(ctx context.Context, leadID uuid.UUID) (domain.Lead, error)
	ListDueReservations(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListDeadLetters(ctx context.Context) ([]domain.Lead, error)
	ListBoardLeads(ctx context.Context) ([]domain.Lead, error)
	ListExclusions(ctx context.Context, leadID uuid.UUID) ([]uuid.UUID, error)
}

// QueueStore is the queue entry persistence surface.
type QueueStore interface {
	UpsertEntry(ctx context.Context, params repository.UpsertEntryParams) (domain.QueueEntry, error)
	GetEntry(ctx context.Context, realtorID uuid.UUID) (domain.QueueEntry, error)
	ListEntries(ctx context.Context) ([]domain.QueueEntry, error)
	SetEntryStatus(ctx context.Context, realtorID uuid.UUID, status domain.EntryStatus) (domain.QueueEntry, error)
	SavePositions(ctx context.Context, ranked []domain.QueueEntry) error
	PinEntry(ctx context.Context, realtorID uuid.UUID, position int) (domain.QueueEntry, error)
	UnpinEntry(ctx context.Context, realtorID uuid.UUID) (domain.QueueEntry, error)
	ReleaseActiveLead(ctx context.Context, realtorID uuid.UUID) error
}

// CandidatureStore is the board candidature persistence surface.
type CandidatureStore interface {
	AddCandidature(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Candidature, error)
	ListCandidatures(ctx context.Context, leadID uuid.UUID) ([]domain.Candidature, error)
	DeleteCandidatures(ctx context.Context, leadID uuid.UUID) error
	CountCandidatures(ctx context.Context, leadID uuid.UUID) (int, error)
}

// ScoreStore is the append-only score ledger surface.
type ScoreStore interface {
	AppendScoreEvent(ctx context.Context, params repository.AppendScoreParams) (domain.ScoreEvent, error)
	ListScoreEvents(ctx context.Context, realtorID uuid.UUID, limit int) ([]domain.ScoreEvent, error)
}

// Store is the full persistence surface the engine composes.
type Store interface {
	LeadStore
	QueueStore
	CandidatureStore
	ScoreStore
}

// TaskScheduler enqueues durable background work. The asynq client
// implements it; a nil-safe noop is used in tests.
type TaskScheduler interface {
	// ScheduleReservationExpiry enqueues an expiry check to run at the
	// reservation deadline.
	ScheduleReservationExpiry(ctx context.Context, leadID uuid.UUID, at time.Time) error
	// ScheduleBoardSelect enqueues a debounced board winner selection.
	ScheduleBoardSelect(ctx context.Context, leadID uuid.UUID, delay time.Duration) error
	// ScheduleRedispatch enqueues a dispatch re-attempt for a lead that
	// returned to the pool, keeping it out of the releasing caller's request.
	ScheduleRedispatch(ctx context.Context, leadID uuid.UUID) error
}
