package service

import (
	"context"
	"fmt"

	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/internal/routing/repository"
	"realty_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

const scoreHistoryLimit = 50

// Standings recomputes and persists the serving order and returns it.
func (e *Engine) Standings(ctx context.Context) ([]domain.QueueEntry, error) {
	entries, err := e.store.ListEntries(ctx)
	if err != nil {
		return nil, mapStoreErr(err, "standings")
	}
	ranked := e.policy.Reorder(entries)
	if err := e.store.SavePositions(ctx, ranked); err != nil {
		return nil, mapStoreErr(err, "standings")
	}
	return ranked, nil
}

// QueuePosition returns one realtor's current slot in the serving order.
// Inactive realtors have no position.
func (e *Engine) QueuePosition(ctx context.Context, realtorID uuid.UUID) (domain.QueueEntry, error) {
	ranked, err := e.Standings(ctx)
	if err != nil {
		return domain.QueueEntry{}, err
	}
	for _, entry := range ranked {
		if entry.RealtorID == realtorID {
			return entry, nil
		}
	}
	entry, err := e.store.GetEntry(ctx, realtorID)
	if err != nil {
		return domain.QueueEntry{}, mapStoreErr(err, "queue position")
	}
	entry.Position = nil
	return entry, nil
}

// QueueStats is the aggregate dashboard projection over the routing pool.
type QueueStats struct {
	TotalRealtors      int
	ActiveRealtors     int
	AtCapacity         int
	ActiveLeads        int
	TotalAccepted      int
	TotalRejected      int
	TotalExpired       int
	AvgResponseSeconds *float64
}

// Stats aggregates the queue for operator dashboards. The response average
// is the mean over realtors that have one.
func (e *Engine) Stats(ctx context.Context) (QueueStats, error) {
	entries, err := e.store.ListEntries(ctx)
	if err != nil {
		return QueueStats{}, mapStoreErr(err, "queue stats")
	}

	maxActive := e.cfg.GetMaxActiveLeadsPerRealtor()
	var stats QueueStats
	var responseSum float64
	responseCount := 0
	for _, entry := range entries {
		stats.TotalRealtors++
		if entry.Status == domain.EntryActive {
			stats.ActiveRealtors++
			if entry.ActiveLeads >= entry.Capacity(maxActive) {
				stats.AtCapacity++
			}
		}
		stats.ActiveLeads += entry.ActiveLeads
		stats.TotalAccepted += entry.TotalAccepted
		stats.TotalRejected += entry.TotalRejected
		stats.TotalExpired += entry.TotalExpired
		if entry.AvgResponseSeconds != nil {
			responseSum += *entry.AvgResponseSeconds
			responseCount++
		}
	}
	if responseCount > 0 {
		avg := responseSum / float64(responseCount)
		stats.AvgResponseSeconds = &avg
	}
	return stats, nil
}

// ScoreHistory returns the realtor's recent ledger entries, newest first.
func (e *Engine) ScoreHistory(ctx context.Context, realtorID uuid.UUID) ([]domain.ScoreEvent, error) {
	evs, err := e.store.ListScoreEvents(ctx, realtorID, scoreHistoryLimit)
	if err != nil {
		return nil, mapStoreErr(err, "score history")
	}
	return evs, nil
}

// RegisterRealtor adds or updates a realtor in the routing pool.
func (e *Engine) RegisterRealtor(ctx context.Context, realtorID uuid.UUID, active bool, bonusLeads int) (domain.QueueEntry, error) {
	status := domain.EntryActive
	if !active {
		status = domain.EntryInactive
	}
	entry, err := e.store.UpsertEntry(ctx, repository.UpsertEntryParams{
		RealtorID:  realtorID,
		Status:     status,
		BonusLeads: bonusLeads,
	})
	if err != nil {
		return domain.QueueEntry{}, mapStoreErr(err, "register realtor")
	}
	return entry, nil
}

// CompleteVisit records that an accepted lead led to a property visit: the
// hold slot frees up and the realtor earns the visit bonus.
func (e *Engine) CompleteVisit(ctx context.Context, leadID, realtorID uuid.UUID) error {
	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		return mapStoreErr(err, "complete visit")
	}
	if lead.Status != domain.StatusAccepted || lead.ReservedFor == nil || *lead.ReservedFor != realtorID {
		return apperr.StaleState("lead is not accepted by this realtor")
	}

	if err := e.store.ReleaseActiveLead(ctx, realtorID); err != nil {
		return mapStoreErr(err, "complete visit")
	}
	e.awardScore(ctx, realtorID, domain.ActionVisitCompleted, domain.PointsVisitCompleted,
		fmt.Sprintf("completed visit for lead %s", leadID))
	return nil
}

// GrantRatingBonus awards the customer-rating bonus to a realtor.
func (e *Engine) GrantRatingBonus(ctx context.Context, realtorID uuid.UUID, description string) error {
	if _, err := e.store.GetEntry(ctx, realtorID); err != nil {
		return mapStoreErr(err, "rating bonus")
	}
	if description == "" {
		description = "positive customer rating"
	}
	e.awardScore(ctx, realtorID, domain.ActionRatingBonus, domain.PointsRatingBonus, description)
	return nil
}
