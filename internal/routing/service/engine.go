// Package service implements the lead routing engine: dispatch, the
// reservation lifecycle, the candidature board, and the scoring feedback
// loop. The engine orchestrates; atomicity lives in the store (state
// transitions are compare-and-swap guarded and counters move in the same
// transaction as the lead).
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realty_portal_backend/internal/events"
	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/internal/routing/ranking"
	"realty_portal_backend/internal/routing/repository"
	"realty_portal_backend/platform/apperr"
	"realty_portal_backend/platform/config"
	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// dueBatchSize bounds how many lapsed reservations one sweep pass handles.
const dueBatchSize = 100

type Engine struct {
	store  Store
	policy *ranking.Policy
	tasks  TaskScheduler
	bus    events.Bus
	cfg    config.RoutingConfig
	log    *logger.Logger
	now    func() time.Time
}

func NewEngine(store Store, policy *ranking.Policy, tasks TaskScheduler, bus events.Bus, cfg config.RoutingConfig, log *logger.Logger) *Engine {
	return &Engine{
		store:  store,
		policy: policy,
		tasks:  tasks,
		bus:    bus,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

type CreateLeadInput struct {
	PropertyID         uuid.UUID
	ContactName        string
	ContactEmail       *string
	ContactPhone       string
	Source             string
	ExclusiveRealtorID *uuid.UUID
}

// CreateLead records a new inquiry and immediately runs dispatch for it.
func (e *Engine) CreateLead(ctx context.Context, input CreateLeadInput) (domain.Lead, error) {
	lead, err := e.store.CreateLead(ctx, repository.CreateLeadParams{
		PropertyID:         input.PropertyID,
		ContactName:        input.ContactName,
		ContactEmail:       input.ContactEmail,
		ContactPhone:       input.ContactPhone,
		ExclusiveRealtorID: input.ExclusiveRealtorID,
	})
	if err != nil {
		return domain.Lead{}, apperr.Wrap(apperr.KindInternal, "create lead", err)
	}

	e.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		PropertyID: lead.PropertyID,
		Source:     input.Source,
	})

	dispatched, err := e.Dispatch(ctx, lead.ID)
	if err != nil {
		// The inquiry is recorded either way; a dispatch that found nobody
		// surfaces through the dead-letter view, not as an intake failure.
		e.log.Warn("dispatch after intake failed", "lead_id", lead.ID, "error", err)
		if apperr.IsCode(err, apperr.CodeNoEligibleAgent) && dispatched.ID != uuid.Nil {
			return dispatched, nil
		}
		return lead, nil
	}
	return dispatched, nil
}

// Dispatch routes an AVAILABLE lead to a realtor. Exclusive leads go only to
// their capturing realtor. Otherwise the top-ranked eligible realtor gets a
// time-boxed exclusive reservation; when nobody is eligible the lead falls
// back to the open board (if enabled) or is dead-lettered for admin
// attention.
func (e *Engine) Dispatch(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		return domain.Lead{}, mapStoreErr(err, "dispatch")
	}
	if lead.Status != domain.StatusAvailable {
		return domain.Lead{}, apperr.StaleState(fmt.Sprintf("lead is %s, not available for dispatch", lead.Status))
	}

	if lead.IsExclusive() {
		return e.dispatchExclusive(ctx, lead)
	}

	return e.dispatchDirect(ctx, lead)
}

// Redispatch runs dispatch for a lead returned to the pool by a reject,
// expiry, or admin release. Losing the race to another transition or
// finding no eligible realtor is a settled outcome, not grounds for a
// task retry.
func (e *Engine) Redispatch(ctx context.Context, leadID uuid.UUID) error {
	_, err := e.Dispatch(ctx, leadID)
	if apperr.IsCode(err, apperr.CodeStaleState) || apperr.IsCode(err, apperr.CodeNoEligibleAgent) {
		return nil
	}
	return err
}

func (e *Engine) dispatchExclusive(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	realtorID := *lead.ExclusiveRealtorID
	entry, err := e.store.GetEntry(ctx, realtorID)
	if err != nil && !errors.Is(err, repository.ErrEntryNotFound) {
		return domain.Lead{}, mapStoreErr(err, "dispatch exclusive")
	}
	if err != nil || !entry.Eligible(e.cfg.GetMaxActiveLeadsPerRealtor()) {
		// The capturing realtor cannot take the lead and it must never reach
		// the board, so it parks for admin intervention.
		return e.deadLetter(ctx, lead.ID, "exclusive realtor ineligible")
	}
	return e.reserve(ctx, lead.ID, realtorID)
}

func (e *Engine) publishToBoard(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	published, err := e.store.SetRoutingMode(ctx, lead.ID, domain.ModeBoard)
	if err != nil {
		return domain.Lead{}, mapStoreErr(err, "publish to board")
	}

	e.log.DispatchDecision(lead.ID.String(), string(domain.ModeBoard), "")
	e.bus.Publish(ctx, events.LeadPublished{BaseEvent: events.NewBaseEvent(), LeadID: lead.ID})

	// Backstop selection in case no candidature ever arrives to debounce one.
	if err := e.tasks.ScheduleBoardSelect(ctx, lead.ID, e.cfg.GetBoardSelectDelay()); err != nil {
		e.log.Error("schedule board select failed", "lead_id", lead.ID, "error", err)
	}
	return published, nil
}

func (e *Engine) dispatchDirect(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	candidate, err := e.pickCandidate(ctx, lead.ID)
	if err != nil {
		return domain.Lead{}, err
	}
	if candidate == nil {
		if e.cfg.GetRealtorBoardEnabled() {
			return e.publishToBoard(ctx, lead)
		}
		return e.deadLetter(ctx, lead.ID, "no eligible realtor")
	}
	return e.reserve(ctx, lead.ID, candidate.RealtorID)
}

// pickCandidate returns the top-ranked eligible realtor not excluded from
// the lead, or nil when nobody qualifies. The freshly computed serving order
// is persisted as a side effect so the standings view stays current.
func (e *Engine) pickCandidate(ctx context.Context, leadID uuid.UUID) (*domain.QueueEntry, error) {
	entries, err := e.store.ListEntries(ctx)
	if err != nil {
		return nil, mapStoreErr(err, "list queue")
	}
	ranked := e.policy.Reorder(entries)
	if err := e.store.SavePositions(ctx, ranked); err != nil {
		e.log.DatabaseError("save queue positions", err)
	}

	excluded, err := e.store.ListExclusions(ctx, leadID)
	if err != nil {
		return nil, mapStoreErr(err, "list exclusions")
	}
	skip := make(map[uuid.UUID]bool, len(excluded))
	for _, id := range excluded {
		skip[id] = true
	}

	maxActive := e.cfg.GetMaxActiveLeadsPerRealtor()
	for _, entry := range ranked {
		if skip[entry.RealtorID] || !entry.Eligible(maxActive) {
			continue
		}
		candidate := entry
		return &candidate, nil
	}
	return nil, nil
}

func (e *Engine) reserve(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Lead, error) {
	until := e.now().Add(e.cfg.GetLeadReservationTTL())
	reserved, err := e.store.ReserveLead(ctx, leadID, realtorID, until)
	if err != nil {
		return domain.Lead{}, mapStoreErr(err, "reserve lead")
	}

	e.log.LeadTransition(leadID.String(), string(domain.StatusAvailable), string(domain.StatusReserved), realtorID.String())
	e.log.DispatchDecision(leadID.String(), string(domain.ModeDirect), realtorID.String())
	e.bus.Publish(ctx, events.LeadReserved{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        leadID,
		RealtorID:     realtorID,
		ReservedUntil: until,
	})

	// The durable deadline makes expiry survive process restarts; the
	// periodic sweep is the backstop if the enqueue fails here.
	if err := e.tasks.ScheduleReservationExpiry(ctx, leadID, until); err != nil {
		e.log.Error("schedule reservation expiry failed", "lead_id", leadID, "error", err)
	}
	return reserved, nil
}

func (e *Engine) deadLetter(ctx context.Context, leadID uuid.UUID, reason string) (domain.Lead, error) {
	lead, err := e.store.MarkDeadLetter(ctx, leadID)
	if err != nil {
		return domain.Lead{}, mapStoreErr(err, "dead letter lead")
	}
	e.log.Warn("lead dead lettered", "lead_id", leadID, "reason", reason)
	e.bus.Publish(ctx, events.LeadDeadLettered{BaseEvent: events.NewBaseEvent(), LeadID: leadID, Reason: reason})
	return lead, apperr.NoEligibleRealtor(reason)
}

// Accept finalizes the holding realtor's claim. Only the current holder can
// accept; a retry after success reports stale state rather than double
// counting. The score award is best effort and never rolls back the accept.
func (e *Engine) Accept(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Lead, error) {
	lead, responseTime, err := e.store.AcceptLead(ctx, leadID, realtorID, e.cfg.GetMaxActiveLeadsPerRealtor())
	if err != nil {
		return domain.Lead{}, mapStoreErr(err, "accept lead")
	}

	e.log.LeadTransition(leadID.String(), string(domain.StatusReserved), string(domain.StatusAccepted), realtorID.String())

	points := domain.AcceptPoints(responseTime, e.cfg.GetFastAcceptThreshold())
	e.awardScore(ctx, realtorID, domain.ActionQuickAccept, points,
		fmt.Sprintf("accepted lead %s in %s", leadID, responseTime.Round(time.Second)))

	e.bus.Publish(ctx, events.LeadAccepted{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          leadID,
		RealtorID:       realtorID,
		ResponseSeconds: responseTime,
	})
	return lead, nil
}

// Reject returns the lead to the pool, excludes the rejecting realtor from
// future picks for it, and applies the score penalty. Re-dispatch runs as a
// background follow-up, never inside the rejecting realtor's request.
func (e *Engine) Reject(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Lead, error) {
	lead, err := e.store.RejectLead(ctx, leadID, realtorID)
	if err != nil {
		return domain.Lead{}, mapStoreErr(err, "reject lead")
	}

	e.log.LeadTransition(leadID.String(), string(domain.StatusReserved), string(domain.StatusAvailable), realtorID.String())
	e.awardScore(ctx, realtorID, domain.ActionReject, domain.PointsReject,
		fmt.Sprintf("rejected lead %s", leadID))
	e.bus.Publish(ctx, events.LeadRejected{BaseEvent: events.NewBaseEvent(), LeadID: leadID, RealtorID: realtorID})

	e.scheduleRedispatch(ctx, leadID)
	return lead, nil
}

// ExpireDue handles one lapsed reservation: penalize the holder, exclude
// them from the lead, and either return the lead to the pool for
// re-dispatch or park it for admin attention, per configuration. Safe to
// call concurrently and repeatedly for the same lead.
func (e *Engine) ExpireDue(ctx context.Context, leadID uuid.UUID) error {
	reassign := e.cfg.GetAutoReassignExpiredEnabled()
	lead, holder, err := e.store.ExpireLead(ctx, leadID, e.now(), reassign)
	if errors.Is(err, repository.ErrStaleState) || errors.Is(err, repository.ErrNotFound) {
		// The holder acted in time, another worker got here first, or the
		// lead is gone. Nothing to do.
		return nil
	}
	if err != nil {
		return mapStoreErr(err, "expire lead")
	}

	e.log.LeadTransition(leadID.String(), string(domain.StatusReserved), string(lead.Status), holder.String())
	e.awardScore(ctx, holder, domain.ActionExpirePenalty, domain.PointsExpirePenalty,
		fmt.Sprintf("reservation for lead %s expired", leadID))
	e.bus.Publish(ctx, events.LeadExpired{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     leadID,
		RealtorID:  holder,
		Reassigned: reassign,
	})

	if reassign {
		e.scheduleRedispatch(ctx, leadID)
	}
	return nil
}

// scheduleRedispatch enqueues the background dispatch follow-up.
func (e *Engine) scheduleRedispatch(ctx context.Context, leadID uuid.UUID) {
	if err := e.tasks.ScheduleRedispatch(ctx, leadID); err != nil {
		e.log.Error("schedule redispatch failed", "lead_id", leadID, "error", err)
	}
}

// SweepDue expires every reservation past its deadline. This is the ticker
// backstop behind the per-lead scheduled tasks; both paths converge on
// ExpireDue, which tolerates double handling.
func (e *Engine) SweepDue(ctx context.Context) (int, error) {
	due, err := e.store.ListDueReservations(ctx, e.now(), dueBatchSize)
	if err != nil {
		return 0, mapStoreErr(err, "list due reservations")
	}
	expired := 0
	for _, leadID := range due {
		if err := e.ExpireDue(ctx, leadID); err != nil {
			e.log.Error("expire sweep failed for lead", "lead_id", leadID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// Candidate records a realtor's application for a board lead and debounces
// a winner selection.
func (e *Engine) Candidate(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Candidature, error) {
	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		return domain.Candidature{}, mapStoreErr(err, "candidate")
	}
	if lead.Status != domain.StatusAvailable || lead.RoutingMode != domain.ModeBoard {
		return domain.Candidature{}, apperr.StaleState("lead is not open for candidature")
	}

	entry, err := e.store.GetEntry(ctx, realtorID)
	if err != nil {
		return domain.Candidature{}, mapStoreErr(err, "candidate")
	}
	if !entry.Eligible(e.cfg.GetMaxActiveLeadsPerRealtor()) {
		return domain.Candidature{}, apperr.CapacityExceeded("realtor cannot take on another lead")
	}

	excluded, err := e.store.ListExclusions(ctx, leadID)
	if err != nil {
		return domain.Candidature{}, mapStoreErr(err, "candidate")
	}
	for _, id := range excluded {
		if id == realtorID {
			return domain.Candidature{}, apperr.Forbidden("realtor already passed on this lead")
		}
	}

	cand, err := e.store.AddCandidature(ctx, leadID, realtorID)
	if err != nil {
		return domain.Candidature{}, mapStoreErr(err, "candidate")
	}

	e.bus.Publish(ctx, events.CandidatureSubmitted{BaseEvent: events.NewBaseEvent(), LeadID: leadID, RealtorID: realtorID})

	if err := e.tasks.ScheduleBoardSelect(ctx, leadID, e.cfg.GetBoardSelectDelay()); err != nil {
		e.log.Error("schedule board select failed", "lead_id", leadID, "error", err)
	}
	return cand, nil
}

// SelectFromBoard picks the winner among a board lead's candidates by
// ranking, never by submission order, and reserves the lead for them. With
// no eligible candidates yet the lead simply stays on the board.
func (e *Engine) SelectFromBoard(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		return domain.Lead{}, mapStoreErr(err, "board select")
	}
	if lead.Status != domain.StatusAvailable || lead.RoutingMode != domain.ModeBoard {
		// Selection already happened or the lead left the board.
		return lead, nil
	}

	candidatures, err := e.store.ListCandidatures(ctx, leadID)
	if err != nil {
		return domain.Lead{}, mapStoreErr(err, "board select")
	}
	if len(candidatures) == 0 {
		return lead, nil
	}

	excluded, err := e.store.ListExclusions(ctx, leadID)
	if err != nil {
		return domain.Lead{}, mapStoreErr(err, "board select")
	}
	skip := make(map[uuid.UUID]bool, len(excluded))
	for _, id := range excluded {
		skip[id] = true
	}

	maxActive := e.cfg.GetMaxActiveLeadsPerRealtor()
	var winner *domain.QueueEntry
	for _, cand := range candidatures {
		if skip[cand.RealtorID] {
			continue
		}
		entry, err := e.store.GetEntry(ctx, cand.RealtorID)
		if err != nil {
			if errors.Is(err, repository.ErrEntryNotFound) {
				continue
			}
			return domain.Lead{}, mapStoreErr(err, "board select")
		}
		if !entry.Eligible(maxActive) {
			continue
		}
		if winner == nil || ranking.Less(entry, *winner) {
			candidate := entry
			winner = &candidate
		}
	}
	if winner == nil {
		return lead, nil
	}

	reserved, err := e.reserve(ctx, leadID, winner.RealtorID)
	if err != nil {
		return domain.Lead{}, err
	}

	if err := e.store.DeleteCandidatures(ctx, leadID); err != nil {
		e.log.DatabaseError("clear candidatures", err)
	}
	return reserved, nil
}

// BoardLeads returns open board leads with their candidature counts.
func (e *Engine) BoardLeads(ctx context.Context) ([]BoardLead, error) {
	leads, err := e.store.ListBoardLeads(ctx)
	if err != nil {
		return nil, mapStoreErr(err, "list board")
	}
	out := make([]BoardLead, 0, len(leads))
	for _, lead := range leads {
		count, err := e.store.CountCandidatures(ctx, lead.ID)
		if err != nil {
			return nil, mapStoreErr(err, "list board")
		}
		out = append(out, BoardLead{Lead: lead, Candidatures: count})
	}
	return out, nil
}

// BoardLead pairs an open lead with how many realtors applied for it.
type BoardLead struct {
	Lead         domain.Lead
	Candidatures int
}

// awardScore appends to the ledger without letting a ledger failure undo
// the transition that earned it.
func (e *Engine) awardScore(ctx context.Context, realtorID uuid.UUID, action domain.ScoreAction, points int, description string) {
	ev, err := e.store.AppendScoreEvent(ctx, repository.AppendScoreParams{
		RealtorID:   realtorID,
		Action:      action,
		Points:      points,
		Description: description,
	})
	if err != nil {
		e.log.Error("score event append failed", "realtor_id", realtorID, "action", action, "error", err)
		return
	}
	e.bus.Publish(ctx, events.ScoreAdjusted{
		BaseEvent: events.NewBaseEvent(),
		RealtorID: realtorID,
		Action:    string(ev.Action),
		Points:    ev.Points,
	})
}

func mapStoreErr(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("lead not found").WithOp(op)
	case errors.Is(err, repository.ErrEntryNotFound):
		return apperr.NotFound("realtor is not in the routing queue").WithOp(op)
	case errors.Is(err, repository.ErrStaleState):
		return apperr.StaleState("lead state changed, refresh and retry").WithOp(op)
	case errors.Is(err, repository.ErrCapacityExceeded):
		return apperr.CapacityExceeded("active lead capacity reached").WithOp(op)
	case errors.Is(err, repository.ErrDuplicateCandidature):
		return apperr.Conflict("candidature already submitted").WithOp(op)
	default:
		return apperr.Wrap(apperr.KindInternal, "storage failure", err).WithOp(op)
	}
}
