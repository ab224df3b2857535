package service

import (
	"context"
	"testing"
	"time"

	"realty_portal_backend/internal/events"
	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/internal/routing/ranking"
	"realty_portal_backend/platform/apperr"
	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
)

func newTestEngine(cfg *testConfig) (*Engine, *fakeStore, *fakeTasks, *recordingBus) {
	store := newFakeStore()
	tasks := &fakeTasks{}
	bus := &recordingBus{}
	engine := NewEngine(store, ranking.New(cfg.pinStickiness), tasks, bus, cfg, logger.New("test"))
	engine.now = func() time.Time { return store.now }
	return engine, store, tasks, bus
}

func createLead(t *testing.T, engine *Engine, exclusive *uuid.UUID) domain.Lead {
	t.Helper()
	lead, err := engine.CreateLead(context.Background(), CreateLeadInput{
		PropertyID:         uuid.New(),
		ContactName:        "Jan de Vries",
		ContactPhone:       "+31612345678",
		Source:             "website",
		ExclusiveRealtorID: exclusive,
	})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	return lead
}

func TestDispatchReservesTopRankedRealtor(t *testing.T) {
	engine, store, tasks, bus := newTestEngine(defaultTestConfig())
	top := uuid.UUID{1}
	second := uuid.UUID{2}
	store.addEntry(top, 50, domain.EntryActive)
	store.addEntry(second, 30, domain.EntryActive)

	lead := createLead(t, engine, nil)

	if lead.Status != domain.StatusReserved {
		t.Fatalf("lead status = %s, want RESERVED", lead.Status)
	}
	if lead.ReservedFor == nil || *lead.ReservedFor != top {
		t.Fatalf("lead reserved for %v, want top-ranked %v", lead.ReservedFor, top)
	}
	wantUntil := store.now.Add(10 * time.Minute)
	if lead.ReservedUntil == nil || !lead.ReservedUntil.Equal(wantUntil) {
		t.Errorf("reserved until %v, want %v", lead.ReservedUntil, wantUntil)
	}
	if len(tasks.expiries) != 1 || tasks.expiries[0] != lead.ID {
		t.Errorf("expected one scheduled expiry for the lead, got %v", tasks.expiries)
	}
	if bus.published(events.LeadReserved{}.EventName()) != 1 {
		t.Error("expected a LeadReserved event")
	}
}

func TestDispatchSkipsRealtorAtCapacity(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	top := uuid.UUID{1}
	second := uuid.UUID{2}
	store.addEntry(top, 50, domain.EntryActive)
	store.addEntry(second, 30, domain.EntryActive)

	store.mu.Lock()
	entry := store.entries[top]
	entry.ActiveLeads = 1 // base capacity is one hold
	store.entries[top] = entry
	store.mu.Unlock()

	lead := createLead(t, engine, nil)

	if lead.ReservedFor == nil || *lead.ReservedFor != second {
		t.Fatalf("lead reserved for %v, want %v (top is at capacity)", lead.ReservedFor, second)
	}
}

func TestDispatchSkipsInactiveRealtor(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	inactive := uuid.UUID{1}
	active := uuid.UUID{2}
	store.addEntry(inactive, 90, domain.EntryInactive)
	store.addEntry(active, 10, domain.EntryActive)

	lead := createLead(t, engine, nil)

	if lead.ReservedFor == nil || *lead.ReservedFor != active {
		t.Fatalf("lead reserved for %v, want active realtor %v", lead.ReservedFor, active)
	}
}

func TestDispatchPrefersDirectOverBoard(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.boardEnabled = true
	engine, store, _, _ := newTestEngine(cfg)
	top := uuid.UUID{1}
	store.addEntry(top, 50, domain.EntryActive)

	lead := createLead(t, engine, nil)

	if lead.Status != domain.StatusReserved {
		t.Fatalf("lead status = %s, want RESERVED (direct dispatch comes first)", lead.Status)
	}
	if lead.ReservedFor == nil || *lead.ReservedFor != top {
		t.Fatalf("lead reserved for %v, want %v", lead.ReservedFor, top)
	}
	if lead.RoutingMode == domain.ModeBoard {
		t.Error("lead must not be board-routed while an eligible realtor exists")
	}
}

func TestDispatchFallsBackToBoardWhenNoneEligible(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.boardEnabled = true
	engine, store, tasks, bus := newTestEngine(cfg)
	busy := uuid.UUID{1}
	store.addEntry(busy, 50, domain.EntryActive)
	store.setActiveLeads(busy, 1) // base capacity is one hold

	lead := createLead(t, engine, nil)

	if lead.Status != domain.StatusAvailable || lead.RoutingMode != domain.ModeBoard {
		t.Fatalf("lead = (%s, %s), want available on the board", lead.Status, lead.RoutingMode)
	}
	if bus.published(events.LeadPublished{}.EventName()) != 1 {
		t.Error("expected a LeadPublished event")
	}
	if len(tasks.selects) == 0 {
		t.Error("expected a scheduled board selection backstop")
	}
}

func TestDirectDispatchRotatesEqualScores(t *testing.T) {
	engine, store, tasks, _ := newTestEngine(defaultTestConfig())
	longIdle := uuid.UUID{1}
	shortIdle := uuid.UUID{2}
	store.addEntry(longIdle, 40, domain.EntryActive)
	store.addEntry(shortIdle, 40, domain.EntryActive)
	store.setLastActivity(longIdle, store.now.Add(-2*time.Hour))
	store.setLastActivity(shortIdle, store.now.Add(-time.Hour))

	first := createLead(t, engine, nil)
	if first.ReservedFor == nil || *first.ReservedFor != longIdle {
		t.Fatalf("first dispatch went to %v, want longest-idle %v", first.ReservedFor, longIdle)
	}

	// Reserving bumps the holder's activity, so the next equal-score
	// dispatch must go to the other realtor.
	second := createLead(t, engine, nil)
	if second.ReservedFor == nil || *second.ReservedFor != shortIdle {
		t.Fatalf("second dispatch went to %v, want %v", second.ReservedFor, shortIdle)
	}
	if len(tasks.expiries) != 2 {
		t.Errorf("scheduled expiries = %d, want 2", len(tasks.expiries))
	}
}

func TestDispatchNoEligibleRealtorDeadLetters(t *testing.T) {
	engine, store, _, bus := newTestEngine(defaultTestConfig())

	lead := createLead(t, engine, nil)

	stored, _ := store.GetLead(context.Background(), lead.ID)
	if stored.Status != domain.StatusDeadLetter {
		t.Fatalf("lead status = %s, want DEAD_LETTER", stored.Status)
	}
	if bus.published(events.LeadDeadLettered{}.EventName()) != 1 {
		t.Error("expected a LeadDeadLettered event")
	}

	_, err := engine.Dispatch(context.Background(), lead.ID)
	if !apperr.IsCode(err, apperr.CodeStaleState) {
		t.Errorf("dispatching a dead-lettered lead should report stale state, got %v", err)
	}
}

func TestDispatchExclusiveLeadBypassesBoard(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.boardEnabled = true
	engine, store, _, _ := newTestEngine(cfg)

	captor := uuid.UUID{5}
	topRanked := uuid.UUID{1}
	store.addEntry(captor, 5, domain.EntryActive)
	store.addEntry(topRanked, 90, domain.EntryActive)

	lead := createLead(t, engine, &captor)

	if lead.Status != domain.StatusReserved {
		t.Fatalf("lead status = %s, want RESERVED", lead.Status)
	}
	if lead.ReservedFor == nil || *lead.ReservedFor != captor {
		t.Fatalf("exclusive lead reserved for %v, want capturing realtor %v", lead.ReservedFor, captor)
	}
	if lead.RoutingMode == domain.ModeBoard {
		t.Error("exclusive lead must never be board-routed")
	}
}

func TestDispatchExclusiveIneligibleDeadLetters(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.boardEnabled = true
	engine, store, _, _ := newTestEngine(cfg)

	captor := uuid.UUID{5}
	store.addEntry(captor, 5, domain.EntryInactive)
	store.addEntry(uuid.UUID{1}, 90, domain.EntryActive)

	lead := createLead(t, engine, &captor)

	stored, _ := store.GetLead(context.Background(), lead.ID)
	if stored.Status != domain.StatusDeadLetter {
		t.Fatalf("lead status = %s, want DEAD_LETTER (never the board)", stored.Status)
	}
}

func TestAcceptFastAwardsQuickPoints(t *testing.T) {
	engine, store, _, bus := newTestEngine(defaultTestConfig())
	realtorID := uuid.UUID{1}
	store.addEntry(realtorID, 50, domain.EntryActive)

	lead := createLead(t, engine, nil)

	accepted, err := engine.Accept(context.Background(), lead.ID, realtorID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != domain.StatusAccepted {
		t.Fatalf("status = %s, want ACCEPTED", accepted.Status)
	}

	entry, _ := store.GetEntry(context.Background(), realtorID)
	if entry.ActiveLeads != 1 || entry.TotalAccepted != 1 {
		t.Errorf("counters = (%d active, %d accepted), want (1, 1)", entry.ActiveLeads, entry.TotalAccepted)
	}
	if entry.Score != 50+domain.PointsQuickAccept {
		t.Errorf("score = %d, want %d", entry.Score, 50+domain.PointsQuickAccept)
	}
	if bus.published(events.LeadAccepted{}.EventName()) != 1 {
		t.Error("expected a LeadAccepted event")
	}
}

func TestAcceptSlowAwardsFewerPoints(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	realtorID := uuid.UUID{1}
	store.addEntry(realtorID, 0, domain.EntryActive)

	lead := createLead(t, engine, nil)

	// Respond after the fast-accept window has passed.
	store.mu.Lock()
	store.now = store.now.Add(8 * time.Minute)
	store.mu.Unlock()

	if _, err := engine.Accept(context.Background(), lead.ID, realtorID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	entry, _ := store.GetEntry(context.Background(), realtorID)
	if entry.Score != domain.PointsSlowAccept {
		t.Errorf("score = %d, want %d for a slow accept", entry.Score, domain.PointsSlowAccept)
	}
	if entry.AvgResponseSeconds == nil || *entry.AvgResponseSeconds != (8*time.Minute).Seconds() {
		t.Errorf("avg response = %v, want %f", entry.AvgResponseSeconds, (8 * time.Minute).Seconds())
	}
}

func TestAcceptByNonHolderIsStale(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	holder := uuid.UUID{1}
	other := uuid.UUID{2}
	store.addEntry(holder, 50, domain.EntryActive)
	store.addEntry(other, 10, domain.EntryActive)

	lead := createLead(t, engine, nil)

	_, err := engine.Accept(context.Background(), lead.ID, other)
	if !apperr.IsCode(err, apperr.CodeStaleState) {
		t.Fatalf("accept by non-holder = %v, want STALE_STATE", err)
	}
}

func TestAcceptRetryDoesNotDoubleCount(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	realtorID := uuid.UUID{1}
	store.addEntry(realtorID, 0, domain.EntryActive)

	lead := createLead(t, engine, nil)

	if _, err := engine.Accept(context.Background(), lead.ID, realtorID); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	_, err := engine.Accept(context.Background(), lead.ID, realtorID)
	if !apperr.IsCode(err, apperr.CodeStaleState) {
		t.Fatalf("retried accept = %v, want STALE_STATE", err)
	}

	entry, _ := store.GetEntry(context.Background(), realtorID)
	if entry.TotalAccepted != 1 || entry.ActiveLeads != 1 {
		t.Errorf("retry double-counted: (%d accepted, %d active)", entry.TotalAccepted, entry.ActiveLeads)
	}
	if got := len(store.eventsFor(realtorID, domain.ActionQuickAccept)); got != 1 {
		t.Errorf("score events = %d, want 1", got)
	}
}

func TestAcceptAtCapacityKeepsLeadReserved(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	realtorID := uuid.UUID{1}
	store.addEntry(realtorID, 50, domain.EntryActive)

	lead := createLead(t, engine, nil)

	// The realtor fills their only slot while holding the reservation.
	store.mu.Lock()
	entry := store.entries[realtorID]
	entry.ActiveLeads = 1
	store.entries[realtorID] = entry
	store.mu.Unlock()

	_, err := engine.Accept(context.Background(), lead.ID, realtorID)
	if !apperr.IsCode(err, apperr.CodeCapacityExceeded) {
		t.Fatalf("accept at capacity = %v, want CAPACITY_EXCEEDED", err)
	}

	stored, _ := store.GetLead(context.Background(), lead.ID)
	if stored.Status != domain.StatusReserved {
		t.Errorf("lead status = %s, want still RESERVED", stored.Status)
	}
}

func TestRejectExcludesAndSchedulesReassignment(t *testing.T) {
	engine, store, tasks, bus := newTestEngine(defaultTestConfig())
	first := uuid.UUID{1}
	second := uuid.UUID{2}
	store.addEntry(first, 50, domain.EntryActive)
	store.addEntry(second, 30, domain.EntryActive)

	lead := createLead(t, engine, nil)

	// The rejecter's request only performs the transition; dispatch runs
	// later as a background task.
	result, err := engine.Reject(context.Background(), lead.ID, first)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if result.Status != domain.StatusAvailable {
		t.Fatalf("after reject lead status = %s, want AVAILABLE", result.Status)
	}
	if len(tasks.redispatches) != 1 || tasks.redispatches[0] != lead.ID {
		t.Fatalf("expected one scheduled redispatch for the lead, got %v", tasks.redispatches)
	}

	if err := engine.Redispatch(context.Background(), lead.ID); err != nil {
		t.Fatalf("Redispatch: %v", err)
	}
	stored, _ := store.GetLead(context.Background(), lead.ID)
	if stored.ReservedFor == nil || *stored.ReservedFor != second {
		t.Fatalf("after redispatch lead reserved for %v, want next candidate %v", stored.ReservedFor, second)
	}

	entry, _ := store.GetEntry(context.Background(), first)
	if entry.TotalRejected != 1 {
		t.Errorf("totalRejected = %d, want 1", entry.TotalRejected)
	}
	if entry.Score != 50+domain.PointsReject {
		t.Errorf("score = %d, want %d", entry.Score, 50+domain.PointsReject)
	}
	if bus.published(events.LeadRejected{}.EventName()) != 1 {
		t.Error("expected a LeadRejected event")
	}
}

func TestRejectByLastCandidateDeadLetters(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	only := uuid.UUID{1}
	store.addEntry(only, 50, domain.EntryActive)

	lead := createLead(t, engine, nil)

	if _, err := engine.Reject(context.Background(), lead.ID, only); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	// A redispatch that finds nobody is a settled outcome for the task.
	if err := engine.Redispatch(context.Background(), lead.ID); err != nil {
		t.Fatalf("Redispatch: %v", err)
	}

	stored, _ := store.GetLead(context.Background(), lead.ID)
	if stored.Status != domain.StatusDeadLetter {
		t.Fatalf("lead status = %s, want DEAD_LETTER after last candidate rejects", stored.Status)
	}
}

func TestExpireDueReassignsAndPenalizes(t *testing.T) {
	engine, store, tasks, bus := newTestEngine(defaultTestConfig())
	first := uuid.UUID{1}
	second := uuid.UUID{2}
	store.addEntry(first, 50, domain.EntryActive)
	store.addEntry(second, 30, domain.EntryActive)

	lead := createLead(t, engine, nil)

	store.mu.Lock()
	store.now = store.now.Add(11 * time.Minute)
	store.mu.Unlock()

	if err := engine.ExpireDue(context.Background(), lead.ID); err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if len(tasks.redispatches) != 1 || tasks.redispatches[0] != lead.ID {
		t.Fatalf("expected one scheduled redispatch, got %v", tasks.redispatches)
	}
	if err := engine.Redispatch(context.Background(), lead.ID); err != nil {
		t.Fatalf("Redispatch: %v", err)
	}

	stored, _ := store.GetLead(context.Background(), lead.ID)
	if stored.Status != domain.StatusReserved || stored.ReservedFor == nil || *stored.ReservedFor != second {
		t.Fatalf("lead = (%s, %v), want reserved for %v", stored.Status, stored.ReservedFor, second)
	}

	entry, _ := store.GetEntry(context.Background(), first)
	if entry.TotalExpired != 1 {
		t.Errorf("totalExpired = %d, want 1", entry.TotalExpired)
	}
	if entry.Score != 50+domain.PointsExpirePenalty {
		t.Errorf("score = %d, want %d", entry.Score, 50+domain.PointsExpirePenalty)
	}
	if bus.published(events.LeadExpired{}.EventName()) != 1 {
		t.Error("expected a LeadExpired event")
	}
}

func TestExpireWithReassignDisabledParksLead(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.autoReassign = false
	engine, store, tasks, _ := newTestEngine(cfg)
	first := uuid.UUID{1}
	store.addEntry(first, 50, domain.EntryActive)
	store.addEntry(uuid.UUID{2}, 30, domain.EntryActive)

	lead := createLead(t, engine, nil)

	store.mu.Lock()
	store.now = store.now.Add(11 * time.Minute)
	store.mu.Unlock()

	if err := engine.ExpireDue(context.Background(), lead.ID); err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if len(tasks.redispatches) != 0 {
		t.Errorf("parked lead must not be redispatched, got %v", tasks.redispatches)
	}

	stored, _ := store.GetLead(context.Background(), lead.ID)
	if stored.Status != domain.StatusExpired {
		t.Fatalf("lead status = %s, want EXPIRED", stored.Status)
	}

	deadLetters, err := engine.DeadLetters(context.Background())
	if err != nil {
		t.Fatalf("DeadLetters: %v", err)
	}
	if len(deadLetters) != 1 || deadLetters[0].ID != lead.ID {
		t.Errorf("dead-letter view should contain the expired lead")
	}
}

func TestExpireAfterAcceptIsNoop(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	realtorID := uuid.UUID{1}
	store.addEntry(realtorID, 50, domain.EntryActive)

	lead := createLead(t, engine, nil)
	if _, err := engine.Accept(context.Background(), lead.ID, realtorID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	store.mu.Lock()
	store.now = store.now.Add(time.Hour)
	store.mu.Unlock()

	if err := engine.ExpireDue(context.Background(), lead.ID); err != nil {
		t.Fatalf("ExpireDue on accepted lead should be a no-op, got %v", err)
	}

	stored, _ := store.GetLead(context.Background(), lead.ID)
	if stored.Status != domain.StatusAccepted {
		t.Errorf("status = %s, want still ACCEPTED", stored.Status)
	}
	if got := len(store.eventsFor(realtorID, domain.ActionExpirePenalty)); got != 0 {
		t.Errorf("no expiry penalty expected, got %d events", got)
	}
}

func TestSweepDueExpiresAllLapsed(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	store.addEntry(uuid.UUID{1}, 50, domain.EntryActive)
	store.addEntry(uuid.UUID{2}, 40, domain.EntryActive)

	createLead(t, engine, nil)
	createLead(t, engine, nil)

	store.mu.Lock()
	store.now = store.now.Add(time.Hour)
	store.mu.Unlock()

	expired, err := engine.SweepDue(context.Background())
	if err != nil {
		t.Fatalf("SweepDue: %v", err)
	}
	if expired != 2 {
		t.Errorf("expired = %d, want 2", expired)
	}
}

func TestBoardPublishAndSelectByRank(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.boardEnabled = true
	engine, store, tasks, bus := newTestEngine(cfg)
	low := uuid.UUID{1}
	high := uuid.UUID{2}
	store.addEntry(low, 10, domain.EntryActive)
	store.addEntry(high, 90, domain.EntryActive)
	// Everyone at capacity at intake time, so the lead lands on the board.
	store.setActiveLeads(low, 1)
	store.setActiveLeads(high, 1)

	lead := createLead(t, engine, nil)
	if lead.Status != domain.StatusAvailable || lead.RoutingMode != domain.ModeBoard {
		t.Fatalf("lead = (%s, %s), want available on the board", lead.Status, lead.RoutingMode)
	}
	if bus.published(events.LeadPublished{}.EventName()) != 1 {
		t.Error("expected a LeadPublished event")
	}
	if len(tasks.selects) == 0 {
		t.Fatal("expected a scheduled board selection")
	}

	// Capacity frees up and both apply. The weaker candidate applies
	// first; rank must still decide.
	store.setActiveLeads(low, 0)
	store.setActiveLeads(high, 0)
	if _, err := engine.Candidate(context.Background(), lead.ID, low); err != nil {
		t.Fatalf("Candidate(low): %v", err)
	}
	if _, err := engine.Candidate(context.Background(), lead.ID, high); err != nil {
		t.Fatalf("Candidate(high): %v", err)
	}

	selected, err := engine.SelectFromBoard(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("SelectFromBoard: %v", err)
	}
	if selected.ReservedFor == nil || *selected.ReservedFor != high {
		t.Fatalf("winner = %v, want highest-ranked %v", selected.ReservedFor, high)
	}

	remaining, _ := store.CountCandidatures(context.Background(), lead.ID)
	if remaining != 0 {
		t.Errorf("candidatures should be cleared after selection, got %d", remaining)
	}
}

func TestCandidateDuplicateConflicts(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.boardEnabled = true
	engine, store, _, _ := newTestEngine(cfg)
	realtorID := uuid.UUID{1}
	store.addEntry(realtorID, 10, domain.EntryActive)
	store.setActiveLeads(realtorID, 1)

	lead := createLead(t, engine, nil)

	store.setActiveLeads(realtorID, 0)
	if _, err := engine.Candidate(context.Background(), lead.ID, realtorID); err != nil {
		t.Fatalf("first candidature: %v", err)
	}
	_, err := engine.Candidate(context.Background(), lead.ID, realtorID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("duplicate candidature = %v, want conflict", err)
	}
}

func TestSelectFromBoardWithoutCandidatesWaits(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.boardEnabled = true
	engine, store, _, _ := newTestEngine(cfg)
	busy := uuid.UUID{1}
	store.addEntry(busy, 10, domain.EntryActive)
	store.setActiveLeads(busy, 1)

	lead := createLead(t, engine, nil)

	result, err := engine.SelectFromBoard(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("SelectFromBoard: %v", err)
	}
	if result.Status != domain.StatusAvailable || result.RoutingMode != domain.ModeBoard {
		t.Errorf("lead should stay on the board, got (%s, %s)", result.Status, result.RoutingMode)
	}
}

func TestForceReleaseIsNeutral(t *testing.T) {
	engine, store, _, bus := newTestEngine(defaultTestConfig())
	realtorID := uuid.UUID{1}
	store.addEntry(realtorID, 50, domain.EntryActive)

	lead := createLead(t, engine, nil)

	released, err := engine.ForceRelease(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ForceRelease: %v", err)
	}
	if released.Status != domain.StatusAvailable {
		t.Fatalf("released lead status = %s, want AVAILABLE", released.Status)
	}
	if err := engine.Redispatch(context.Background(), lead.ID); err != nil {
		t.Fatalf("Redispatch: %v", err)
	}
	// No exclusion and no penalty: the same realtor may be picked again.
	stored, _ := store.GetLead(context.Background(), lead.ID)
	if stored.ReservedFor == nil || *stored.ReservedFor != realtorID {
		t.Errorf("re-dispatch after release picked %v, want %v", stored.ReservedFor, realtorID)
	}

	store.mu.Lock()
	eventCount := len(store.scoreEvents)
	store.mu.Unlock()
	if eventCount != 0 {
		t.Errorf("force release must not touch the score ledger, found %d events", eventCount)
	}
	if bus.published(events.LeadReleased{}.EventName()) != 1 {
		t.Error("expected a LeadReleased event")
	}
}

func TestCompleteVisitFreesSlotAndAwards(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	realtorID := uuid.UUID{1}
	store.addEntry(realtorID, 0, domain.EntryActive)

	lead := createLead(t, engine, nil)
	if _, err := engine.Accept(context.Background(), lead.ID, realtorID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if err := engine.CompleteVisit(context.Background(), lead.ID, realtorID); err != nil {
		t.Fatalf("CompleteVisit: %v", err)
	}

	entry, _ := store.GetEntry(context.Background(), realtorID)
	if entry.ActiveLeads != 0 {
		t.Errorf("activeLeads = %d, want 0 after visit", entry.ActiveLeads)
	}
	if entry.Score != domain.PointsQuickAccept+domain.PointsVisitCompleted {
		t.Errorf("score = %d, want %d", entry.Score, domain.PointsQuickAccept+domain.PointsVisitCompleted)
	}
}

func TestStatsAggregatesQueue(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	busy := uuid.UUID{1}
	idle := uuid.UUID{2}
	paused := uuid.UUID{3}
	store.addEntry(busy, 50, domain.EntryActive)
	store.addEntry(idle, 10, domain.EntryActive)
	store.addEntry(paused, 0, domain.EntryInactive)

	store.mu.Lock()
	entry := store.entries[busy]
	entry.ActiveLeads = 1 // base capacity is one hold
	entry.TotalAccepted = 4
	entry.TotalRejected = 1
	avg := 120.0
	entry.AvgResponseSeconds = &avg
	store.entries[busy] = entry
	store.mu.Unlock()

	stats, err := engine.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRealtors != 3 || stats.ActiveRealtors != 2 {
		t.Errorf("realtors = (%d total, %d active), want (3, 2)", stats.TotalRealtors, stats.ActiveRealtors)
	}
	if stats.AtCapacity != 1 {
		t.Errorf("atCapacity = %d, want 1", stats.AtCapacity)
	}
	if stats.ActiveLeads != 1 || stats.TotalAccepted != 4 || stats.TotalRejected != 1 {
		t.Errorf("counters = (%d active, %d accepted, %d rejected), want (1, 4, 1)",
			stats.ActiveLeads, stats.TotalAccepted, stats.TotalRejected)
	}
	if stats.AvgResponseSeconds == nil || *stats.AvgResponseSeconds != 120.0 {
		t.Errorf("avg response = %v, want 120", stats.AvgResponseSeconds)
	}
}

func TestMoveUpPinsRealtor(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	a := uuid.UUID{1}
	b := uuid.UUID{2}
	c := uuid.UUID{3}
	store.addEntry(a, 30, domain.EntryActive)
	store.addEntry(b, 20, domain.EntryActive)
	store.addEntry(c, 10, domain.EntryActive)

	ranked, err := engine.MoveUp(context.Background(), c)
	if err != nil {
		t.Fatalf("MoveUp: %v", err)
	}
	if len(ranked) != 3 || ranked[1].RealtorID != c {
		t.Fatalf("after move-up, slot 2 = %v, want %v", ranked[1].RealtorID, c)
	}
	if !ranked[1].IsPinned() {
		t.Error("moved realtor should be pinned at the new slot")
	}
}

func TestAdjustScoreRequiresReason(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	realtorID := uuid.UUID{1}
	store.addEntry(realtorID, 0, domain.EntryActive)

	if _, err := engine.AdjustScore(context.Background(), realtorID, 5, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("adjust without reason = %v, want validation error", err)
	}

	entry, err := engine.AdjustScore(context.Background(), realtorID, -7, "missed appointment")
	if err != nil {
		t.Fatalf("AdjustScore: %v", err)
	}
	if entry.Score != -7 {
		t.Errorf("score = %d, want -7", entry.Score)
	}
	if got := len(store.eventsFor(realtorID, domain.ActionAdminAdjust)); got != 1 {
		t.Errorf("ledger events = %d, want 1", got)
	}
}

func TestSetRealtorStatusInactiveStopsDispatch(t *testing.T) {
	engine, store, _, _ := newTestEngine(defaultTestConfig())
	realtorID := uuid.UUID{1}
	store.addEntry(realtorID, 50, domain.EntryActive)

	if _, err := engine.SetRealtorStatus(context.Background(), realtorID, domain.EntryInactive); err != nil {
		t.Fatalf("SetRealtorStatus: %v", err)
	}

	lead := createLead(t, engine, nil)
	stored, _ := store.GetLead(context.Background(), lead.ID)
	if stored.Status != domain.StatusDeadLetter {
		t.Errorf("lead status = %s, want DEAD_LETTER with the only realtor inactive", stored.Status)
	}
}
