package service

import (
	"context"
	"sync"
	"time"

	"realty_portal_backend/internal/events"
	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/internal/routing/repository"

	"github.com/google/uuid"
)

// fakeStore mirrors the repository's transition semantics in memory:
// compare-and-swap guards, counter updates tied to transitions, and the
// capacity check inside accept.
type fakeStore struct {
	mu           sync.Mutex
	leads        map[uuid.UUID]domain.Lead
	entries      map[uuid.UUID]domain.QueueEntry
	exclusions   map[uuid.UUID]map[uuid.UUID]bool
	candidatures map[uuid.UUID][]domain.Candidature
	scoreEvents  []domain.ScoreEvent
	now          time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:        make(map[uuid.UUID]domain.Lead),
		entries:      make(map[uuid.UUID]domain.QueueEntry),
		exclusions:   make(map[uuid.UUID]map[uuid.UUID]bool),
		candidatures: make(map[uuid.UUID][]domain.Candidature),
		now:          time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) addEntry(realtorID uuid.UUID, score int, status domain.EntryStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[realtorID] = domain.QueueEntry{
		RealtorID:      realtorID,
		Score:          score,
		Status:         status,
		LastActivityAt: s.now,
		CreatedAt:      s.now,
		UpdatedAt:      s.now,
	}
}

func (s *fakeStore) setActiveLeads(realtorID uuid.UUID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[realtorID]
	entry.ActiveLeads = n
	s.entries[realtorID] = entry
}

func (s *fakeStore) setLastActivity(realtorID uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[realtorID]
	entry.LastActivityAt = at
	s.entries[realtorID] = entry
}

func (s *fakeStore) CreateLead(_ context.Context, params repository.CreateLeadParams) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead := domain.Lead{
		ID:                 uuid.New(),
		PropertyID:         params.PropertyID,
		ContactName:        params.ContactName,
		ContactEmail:       params.ContactEmail,
		ContactPhone:       params.ContactPhone,
		Status:             domain.StatusAvailable,
		RoutingMode:        domain.ModeDirect,
		ExclusiveRealtorID: params.ExclusiveRealtorID,
		CreatedAt:          s.now,
		UpdatedAt:          s.now,
	}
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *fakeStore) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (s *fakeStore) ReserveLead(_ context.Context, leadID, realtorID uuid.UUID, until time.Time) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if lead.Status != domain.StatusAvailable {
		return domain.Lead{}, repository.ErrStaleState
	}
	reservedAt := s.now
	lead.Status = domain.StatusReserved
	lead.ReservedFor = &realtorID
	lead.ReservedAt = &reservedAt
	lead.ReservedUntil = &until
	s.leads[leadID] = lead

	// A reservation counts as activity for the idle tiebreak.
	if entry, ok := s.entries[realtorID]; ok {
		entry.LastActivityAt = s.now
		s.entries[realtorID] = entry
	}
	return lead, nil
}

func (s *fakeStore) SetRoutingMode(_ context.Context, leadID uuid.UUID, mode domain.RoutingMode) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if lead.Status != domain.StatusAvailable {
		return domain.Lead{}, repository.ErrStaleState
	}
	lead.RoutingMode = mode
	s.leads[leadID] = lead
	return lead, nil
}

func (s *fakeStore) AcceptLead(_ context.Context, leadID, realtorID uuid.UUID, maxActive int) (domain.Lead, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, 0, repository.ErrNotFound
	}
	if !lead.HeldBy(realtorID) {
		return domain.Lead{}, 0, repository.ErrStaleState
	}
	entry, ok := s.entries[realtorID]
	if !ok {
		return domain.Lead{}, 0, repository.ErrEntryNotFound
	}
	if entry.ActiveLeads >= entry.Capacity(maxActive) {
		return domain.Lead{}, 0, repository.ErrCapacityExceeded
	}

	responseTime := time.Duration(0)
	if lead.ReservedAt != nil {
		responseTime = s.now.Sub(*lead.ReservedAt)
	}

	lead.Status = domain.StatusAccepted
	lead.ReservedUntil = nil
	s.leads[leadID] = lead

	entry.ActiveLeads++
	entry.TotalAccepted++
	avg := domain.NextResponseAverage(entry.AvgResponseSeconds, responseTime.Seconds())
	entry.AvgResponseSeconds = &avg
	entry.LastActivityAt = s.now
	s.entries[realtorID] = entry
	return lead, responseTime, nil
}

func (s *fakeStore) RejectLead(_ context.Context, leadID, realtorID uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if !lead.HeldBy(realtorID) {
		return domain.Lead{}, repository.ErrStaleState
	}

	lead.Status = domain.StatusAvailable
	lead.ReservedFor = nil
	lead.ReservedAt = nil
	lead.ReservedUntil = nil
	s.leads[leadID] = lead

	s.exclude(leadID, realtorID)
	entry := s.entries[realtorID]
	entry.TotalRejected++
	entry.LastActivityAt = s.now
	s.entries[realtorID] = entry
	return lead, nil
}

func (s *fakeStore) ExpireLead(_ context.Context, leadID uuid.UUID, now time.Time, reassign bool) (domain.Lead, uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, uuid.Nil, repository.ErrNotFound
	}
	if !lead.ReservationDue(now) {
		return domain.Lead{}, uuid.Nil, repository.ErrStaleState
	}
	holder := *lead.ReservedFor

	if reassign {
		lead.Status = domain.StatusAvailable
	} else {
		lead.Status = domain.StatusExpired
	}
	lead.ReservedFor = nil
	lead.ReservedAt = nil
	lead.ReservedUntil = nil
	s.leads[leadID] = lead

	s.exclude(leadID, holder)
	entry := s.entries[holder]
	entry.TotalExpired++
	s.entries[holder] = entry
	return lead, holder, nil
}

func (s *fakeStore) ReleaseLead(_ context.Context, leadID uuid.UUID) (domain.Lead, uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, uuid.Nil, repository.ErrNotFound
	}
	if !domain.CanTransition(lead.Status, domain.StatusAvailable) {
		return domain.Lead{}, uuid.Nil, repository.ErrStaleState
	}
	holder := uuid.Nil
	if lead.ReservedFor != nil {
		holder = *lead.ReservedFor
	}
	lead.Status = domain.StatusAvailable
	lead.ReservedFor = nil
	lead.ReservedAt = nil
	lead.ReservedUntil = nil
	s.leads[leadID] = lead
	return lead, holder, nil
}

func (s *fakeStore) MarkDeadLetter(_ context.Context, leadID uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if lead.Status != domain.StatusAvailable {
		return domain.Lead{}, repository.ErrStaleState
	}
	deadAt := s.now
	lead.Status = domain.StatusDeadLetter
	lead.DeadLetteredAt = &deadAt
	s.leads[leadID] = lead
	return lead, nil
}

func (s *fakeStore) ListDueReservations(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for id, lead := range s.leads {
		if lead.ReservationDue(now) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeStore) ListDeadLetters(_ context.Context) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Lead, 0)
	for _, lead := range s.leads {
		if lead.Status == domain.StatusExpired || lead.Status == domain.StatusDeadLetter {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (s *fakeStore) ListBoardLeads(_ context.Context) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Lead, 0)
	for _, lead := range s.leads {
		if lead.Status == domain.StatusAvailable && lead.RoutingMode == domain.ModeBoard {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (s *fakeStore) ListExclusions(_ context.Context, leadID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, 0)
	for id := range s.exclusions[leadID] {
		out = append(out, id)
	}
	return out, nil
}

func (s *fakeStore) exclude(leadID, realtorID uuid.UUID) {
	if s.exclusions[leadID] == nil {
		s.exclusions[leadID] = make(map[uuid.UUID]bool)
	}
	s.exclusions[leadID][realtorID] = true
}

func (s *fakeStore) UpsertEntry(_ context.Context, params repository.UpsertEntryParams) (domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[params.RealtorID]
	if !ok {
		entry = domain.QueueEntry{RealtorID: params.RealtorID, LastActivityAt: s.now, CreatedAt: s.now}
	}
	entry.Status = params.Status
	entry.BonusLeads = params.BonusLeads
	s.entries[params.RealtorID] = entry
	return entry, nil
}

func (s *fakeStore) GetEntry(_ context.Context, realtorID uuid.UUID) (domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[realtorID]
	if !ok {
		return domain.QueueEntry{}, repository.ErrEntryNotFound
	}
	return entry, nil
}

func (s *fakeStore) ListEntries(_ context.Context) ([]domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.QueueEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	return out, nil
}

func (s *fakeStore) SetEntryStatus(_ context.Context, realtorID uuid.UUID, status domain.EntryStatus) (domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[realtorID]
	if !ok {
		return domain.QueueEntry{}, repository.ErrEntryNotFound
	}
	entry.Status = status
	s.entries[realtorID] = entry
	return entry, nil
}

func (s *fakeStore) SavePositions(_ context.Context, ranked []domain.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[uuid.UUID]bool, len(ranked))
	for _, r := range ranked {
		seen[r.RealtorID] = true
		entry := s.entries[r.RealtorID]
		entry.Position = r.Position
		entry.PinnedPosition = r.PinnedPosition
		entry.PinnedAtScore = r.PinnedAtScore
		s.entries[r.RealtorID] = entry
	}
	for id, entry := range s.entries {
		if !seen[id] {
			entry.Position = nil
			s.entries[id] = entry
		}
	}
	return nil
}

func (s *fakeStore) PinEntry(_ context.Context, realtorID uuid.UUID, position int) (domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[realtorID]
	if !ok {
		return domain.QueueEntry{}, repository.ErrEntryNotFound
	}
	score := entry.Score
	entry.PinnedPosition = &position
	entry.PinnedAtScore = &score
	s.entries[realtorID] = entry
	return entry, nil
}

func (s *fakeStore) UnpinEntry(_ context.Context, realtorID uuid.UUID) (domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[realtorID]
	if !ok {
		return domain.QueueEntry{}, repository.ErrEntryNotFound
	}
	entry.PinnedPosition = nil
	entry.PinnedAtScore = nil
	s.entries[realtorID] = entry
	return entry, nil
}

func (s *fakeStore) ReleaseActiveLead(_ context.Context, realtorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[realtorID]
	if !ok {
		return repository.ErrEntryNotFound
	}
	if entry.ActiveLeads > 0 {
		entry.ActiveLeads--
	}
	s.entries[realtorID] = entry
	return nil
}

func (s *fakeStore) AddCandidature(_ context.Context, leadID, realtorID uuid.UUID) (domain.Candidature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidatures[leadID] {
		if c.RealtorID == realtorID {
			return domain.Candidature{}, repository.ErrDuplicateCandidature
		}
	}
	cand := domain.Candidature{ID: uuid.New(), LeadID: leadID, RealtorID: realtorID, CreatedAt: s.now}
	s.candidatures[leadID] = append(s.candidatures[leadID], cand)
	return cand, nil
}

func (s *fakeStore) ListCandidatures(_ context.Context, leadID uuid.UUID) ([]domain.Candidature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Candidature(nil), s.candidatures[leadID]...), nil
}

func (s *fakeStore) DeleteCandidatures(_ context.Context, leadID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.candidatures, leadID)
	return nil
}

func (s *fakeStore) CountCandidatures(_ context.Context, leadID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidatures[leadID]), nil
}

func (s *fakeStore) AppendScoreEvent(_ context.Context, params repository.AppendScoreParams) (domain.ScoreEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[params.RealtorID]
	if !ok {
		return domain.ScoreEvent{}, repository.ErrEntryNotFound
	}
	ev := domain.ScoreEvent{
		ID:          uuid.New(),
		RealtorID:   params.RealtorID,
		Action:      params.Action,
		Points:      params.Points,
		Description: params.Description,
		CreatedAt:   s.now,
	}
	s.scoreEvents = append(s.scoreEvents, ev)
	entry.Score += params.Points
	s.entries[params.RealtorID] = entry
	return ev, nil
}

func (s *fakeStore) ListScoreEvents(_ context.Context, realtorID uuid.UUID, limit int) ([]domain.ScoreEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScoreEvent, 0)
	for i := len(s.scoreEvents) - 1; i >= 0 && len(out) < limit; i-- {
		if s.scoreEvents[i].RealtorID == realtorID {
			out = append(out, s.scoreEvents[i])
		}
	}
	return out, nil
}

func (s *fakeStore) eventsFor(realtorID uuid.UUID, action domain.ScoreAction) []domain.ScoreEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScoreEvent, 0)
	for _, ev := range s.scoreEvents {
		if ev.RealtorID == realtorID && ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

var _ Store = (*fakeStore)(nil)

// fakeTasks records scheduled work instead of touching Redis.
type fakeTasks struct {
	mu           sync.Mutex
	expiries     []uuid.UUID
	selects      []uuid.UUID
	redispatches []uuid.UUID
}

func (f *fakeTasks) ScheduleReservationExpiry(_ context.Context, leadID uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiries = append(f.expiries, leadID)
	return nil
}

func (f *fakeTasks) ScheduleBoardSelect(_ context.Context, leadID uuid.UUID, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects = append(f.selects, leadID)
	return nil
}

func (f *fakeTasks) ScheduleRedispatch(_ context.Context, leadID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redispatches = append(f.redispatches, leadID)
	return nil
}

// recordingBus captures published event names synchronously.
type recordingBus struct {
	mu    sync.Mutex
	names []string
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names = append(b.names, event.EventName())
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) published(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, n := range b.names {
		if n == name {
			count++
		}
	}
	return count
}

// testConfig implements config.RoutingConfig with explicit values.
type testConfig struct {
	reservationTTL time.Duration
	maxActive      int
	boardEnabled   bool
	autoReassign   bool
	fastAccept     time.Duration
	boardDelay     time.Duration
	pinStickiness  int
}

func defaultTestConfig() *testConfig {
	return &testConfig{
		reservationTTL: 10 * time.Minute,
		maxActive:      3,
		boardEnabled:   false,
		autoReassign:   true,
		fastAccept:     5 * time.Minute,
		boardDelay:     15 * time.Second,
		pinStickiness:  10,
	}
}

func (c *testConfig) GetLeadReservationTTL() time.Duration    { return c.reservationTTL }
func (c *testConfig) GetMaxActiveLeadsPerRealtor() int        { return c.maxActive }
func (c *testConfig) GetRealtorBoardEnabled() bool            { return c.boardEnabled }
func (c *testConfig) GetAutoReassignExpiredEnabled() bool     { return c.autoReassign }
func (c *testConfig) GetFastAcceptThreshold() time.Duration   { return c.fastAccept }
func (c *testConfig) GetBoardSelectDelay() time.Duration      { return c.boardDelay }
func (c *testConfig) GetPinStickinessPoints() int             { return c.pinStickiness }
