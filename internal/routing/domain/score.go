package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScoreAction identifies what caused a score delta.
type ScoreAction string

const (
	ActionQuickAccept    ScoreAction = "QUICK_ACCEPT"
	ActionReject         ScoreAction = "REJECT"
	ActionVisitCompleted ScoreAction = "VISIT_COMPLETED"
	ActionRatingBonus    ScoreAction = "RATING_BONUS"
	ActionAdminAdjust    ScoreAction = "ADMIN_ADJUST"
	ActionExpirePenalty  ScoreAction = "EXPIRE_PENALTY"
)

// Default point deltas. The expiry penalty is deliberately smaller in
// magnitude than a reject so transient unavailability is not punished twice
// as hard as an explicit refusal.
const (
	PointsQuickAccept    = 10
	PointsSlowAccept     = 3
	PointsReject         = -5
	PointsExpirePenalty  = -3
	PointsVisitCompleted = 8
	PointsRatingBonus    = 5
)

// AcceptPoints returns the bonus for an accept given how long the realtor
// took to respond relative to the fast-response threshold.
func AcceptPoints(responseTime, fastThreshold time.Duration) int {
	if responseTime <= fastThreshold {
		return PointsQuickAccept
	}
	return PointsSlowAccept
}

// ScoreEvent is one append-only audit entry in the score ledger. Events are
// never updated or deleted; the queue entry's score is their running sum.
type ScoreEvent struct {
	ID          uuid.UUID
	RealtorID   uuid.UUID
	Action      ScoreAction
	Points      int
	Description string
	CreatedAt   time.Time
}

// Candidature is one realtor's self-application for a board-routed lead.
type Candidature struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	RealtorID uuid.UUID
	CreatedAt time.Time
}
