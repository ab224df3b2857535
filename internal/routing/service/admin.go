package service

import (
	"context"

	"realty_portal_backend/internal/events"
	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// MoveUp pins a realtor one slot higher in the serving order. The pin
// remembers the score at pin time and lapses once the score drifts past the
// stickiness threshold, so a manual bump cannot freeze the queue forever.
func (e *Engine) MoveUp(ctx context.Context, realtorID uuid.UUID) ([]domain.QueueEntry, error) {
	return e.moveBy(ctx, realtorID, -1)
}

// MoveDown pins a realtor one slot lower in the serving order.
func (e *Engine) MoveDown(ctx context.Context, realtorID uuid.UUID) ([]domain.QueueEntry, error) {
	return e.moveBy(ctx, realtorID, +1)
}

func (e *Engine) moveBy(ctx context.Context, realtorID uuid.UUID, delta int) ([]domain.QueueEntry, error) {
	ranked, err := e.Standings(ctx)
	if err != nil {
		return nil, err
	}

	index := -1
	for i, entry := range ranked {
		if entry.RealtorID == realtorID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, apperr.NotFound("realtor is not in the active queue")
	}

	target := index + delta
	if target < 0 || target >= len(ranked) {
		return ranked, nil
	}

	if _, err := e.store.PinEntry(ctx, realtorID, target+1); err != nil {
		return nil, mapStoreErr(err, "move realtor")
	}
	return e.Standings(ctx)
}

// PinPosition pins a realtor to an explicit slot.
func (e *Engine) PinPosition(ctx context.Context, realtorID uuid.UUID, position int) ([]domain.QueueEntry, error) {
	if position < 1 {
		return nil, apperr.Validation("position must be at least 1")
	}
	if _, err := e.store.PinEntry(ctx, realtorID, position); err != nil {
		return nil, mapStoreErr(err, "pin realtor")
	}
	return e.Standings(ctx)
}

// Unpin removes a manual position override; the realtor rejoins automatic
// ordering immediately.
func (e *Engine) Unpin(ctx context.Context, realtorID uuid.UUID) ([]domain.QueueEntry, error) {
	if _, err := e.store.UnpinEntry(ctx, realtorID); err != nil {
		return nil, mapStoreErr(err, "unpin realtor")
	}
	return e.Standings(ctx)
}

// SetRealtorStatus toggles a realtor's queue participation. Deactivation
// leaves already-held leads untouched.
func (e *Engine) SetRealtorStatus(ctx context.Context, realtorID uuid.UUID, status domain.EntryStatus) (domain.QueueEntry, error) {
	if status != domain.EntryActive && status != domain.EntryInactive {
		return domain.QueueEntry{}, apperr.Validation("status must be ACTIVE or INACTIVE")
	}
	entry, err := e.store.SetEntryStatus(ctx, realtorID, status)
	if err != nil {
		return domain.QueueEntry{}, mapStoreErr(err, "set realtor status")
	}
	if _, err := e.Standings(ctx); err != nil {
		e.log.Error("reorder after status change failed", "realtor_id", realtorID, "error", err)
	}
	return entry, nil
}

// AdjustScore applies a manual score correction through the ledger, same as
// any other score change.
func (e *Engine) AdjustScore(ctx context.Context, realtorID uuid.UUID, points int, reason string) (domain.QueueEntry, error) {
	if points == 0 {
		return domain.QueueEntry{}, apperr.Validation("adjustment must be non-zero")
	}
	if reason == "" {
		return domain.QueueEntry{}, apperr.Validation("a reason is required for manual adjustments")
	}
	if _, err := e.store.GetEntry(ctx, realtorID); err != nil {
		return domain.QueueEntry{}, mapStoreErr(err, "adjust score")
	}

	e.awardScore(ctx, realtorID, domain.ActionAdminAdjust, points, reason)

	entry, err := e.store.GetEntry(ctx, realtorID)
	if err != nil {
		return domain.QueueEntry{}, mapStoreErr(err, "adjust score")
	}
	return entry, nil
}

// DeadLetters returns leads waiting on operator intervention.
func (e *Engine) DeadLetters(ctx context.Context) ([]domain.Lead, error) {
	leads, err := e.store.ListDeadLetters(ctx)
	if err != nil {
		return nil, mapStoreErr(err, "dead letters")
	}
	return leads, nil
}

// ForceRelease is the admin override: a held, expired, or dead-lettered
// lead returns to the pool with no penalty or exclusion for the former
// holder. Dispatch runs again as a background follow-up.
func (e *Engine) ForceRelease(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	lead, holder, err := e.store.ReleaseLead(ctx, leadID)
	if err != nil {
		return domain.Lead{}, mapStoreErr(err, "force release")
	}

	e.log.LeadTransition(leadID.String(), "", string(domain.StatusAvailable), holder.String())
	e.bus.Publish(ctx, events.LeadReleased{BaseEvent: events.NewBaseEvent(), LeadID: leadID, RealtorID: holder})

	e.scheduleRedispatch(ctx, leadID)
	return lead, nil
}

// GrantBonusLeads sets a realtor's extra concurrent-hold allowance.
func (e *Engine) GrantBonusLeads(ctx context.Context, realtorID uuid.UUID, bonusLeads int) (domain.QueueEntry, error) {
	if bonusLeads < 0 {
		return domain.QueueEntry{}, apperr.Validation("bonus leads cannot be negative")
	}
	entry, err := e.store.GetEntry(ctx, realtorID)
	if err != nil {
		return domain.QueueEntry{}, mapStoreErr(err, "grant bonus leads")
	}
	return e.RegisterRealtor(ctx, realtorID, entry.Status == domain.EntryActive, bonusLeads)
}
