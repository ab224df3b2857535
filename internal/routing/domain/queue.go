package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus is a queue entry's participation flag.
type EntryStatus string

const (
	// EntryActive means the realtor receives dispatches.
	EntryActive EntryStatus = "ACTIVE"
	// EntryInactive removes the realtor from future dispatch consideration
	// without revoking currently-held leads.
	EntryInactive EntryStatus = "INACTIVE"
)

// responseTimeAlpha is the weight of the newest sample in the exponentially
// weighted response-time average.
const responseTimeAlpha = 0.2

// QueueEntry is one realtor's standing in the routing pool.
type QueueEntry struct {
	RealtorID          uuid.UUID
	Position           *int
	Score              int
	Status             EntryStatus
	ActiveLeads        int
	BonusLeads         int
	TotalAccepted      int
	TotalRejected      int
	TotalExpired       int
	AvgResponseSeconds *float64
	PinnedPosition     *int
	PinnedAtScore      *int
	LastActivityAt     time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Capacity returns how many exclusive holds the realtor may carry: one base
// slot plus admin-granted bonus slots, never more than the configured
// system-wide ceiling.
func (e QueueEntry) Capacity(maxActivePerRealtor int) int {
	capacity := 1 + e.BonusLeads
	if maxActivePerRealtor > 0 && capacity > maxActivePerRealtor {
		capacity = maxActivePerRealtor
	}
	return capacity
}

// Eligible reports whether the realtor can receive a new direct dispatch.
func (e QueueEntry) Eligible(maxActivePerRealtor int) bool {
	return e.Status == EntryActive && e.ActiveLeads < e.Capacity(maxActivePerRealtor)
}

// IsPinned reports whether an admin has manually positioned this entry.
func (e QueueEntry) IsPinned() bool {
	return e.PinnedPosition != nil && e.PinnedAtScore != nil
}

// NextResponseAverage folds a new response-time sample (seconds) into the
// exponentially weighted average. A nil current average starts at the sample.
func NextResponseAverage(current *float64, sampleSeconds float64) float64 {
	if current == nil {
		return sampleSeconds
	}
	return (1-responseTimeAlpha)*(*current) + responseTimeAlpha*sampleSeconds
}
