// Package ranking implements the queue ordering policy. Reorder is a pure
// function over queue entries plus the pinned-override markers stored on
// them; it is invoked on demand and never maintained as live mutable state.
package ranking

import (
	"sort"

	"realty_portal_backend/internal/routing/domain"
)

// Policy orders queue entries into a serving order.
type Policy struct {
	// pinStickinessPoints is how far an entry's score may drift from its
	// score at pin time before the manual pin is dropped and the entry
	// rejoins automatic ordering.
	pinStickinessPoints int
}

// New creates a ranking policy. A non-positive stickiness disables pin
// expiry (pins hold until removed by an admin).
func New(pinStickinessPoints int) *Policy {
	return &Policy{pinStickinessPoints: pinStickinessPoints}
}

// Reorder returns the ACTIVE entries in serving order with dense 1-based
// positions assigned. INACTIVE entries are excluded (their position must be
// cleared by the caller when persisting). Reorder never fails: it is
// deterministic for identical inputs and does not mutate its argument.
//
// Ordering: score descending, then lastActivityAt ascending (longest-idle
// first), then realtorID for a stable final tie-break. Entries pinned by an
// admin keep their pinned slot until their score has moved at least the
// stickiness threshold away from the score recorded at pin time.
func (p *Policy) Reorder(entries []domain.QueueEntry) []domain.QueueEntry {
	active := make([]domain.QueueEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status == domain.EntryActive {
			active = append(active, e)
		}
	}
	if len(active) == 0 {
		return active
	}

	pinned := make([]domain.QueueEntry, 0)
	unpinned := make([]domain.QueueEntry, 0, len(active))
	for _, e := range active {
		if p.pinHolds(e) {
			pinned = append(pinned, e)
		} else {
			// Expired pins are cleared so the persisted row stops carrying
			// a stale override.
			e.PinnedPosition = nil
			e.PinnedAtScore = nil
			unpinned = append(unpinned, e)
		}
	}

	sort.SliceStable(unpinned, func(i, j int) bool {
		return Less(unpinned[i], unpinned[j])
	})

	// Pinned entries are placed first, lowest requested slot first, so two
	// pins contending for the same slot resolve deterministically.
	sort.SliceStable(pinned, func(i, j int) bool {
		pi, pj := *pinned[i].PinnedPosition, *pinned[j].PinnedPosition
		if pi != pj {
			return pi < pj
		}
		return pinned[i].RealtorID.String() < pinned[j].RealtorID.String()
	})

	result := make([]domain.QueueEntry, len(active))
	taken := make([]bool, len(active))

	for _, e := range pinned {
		slot := *e.PinnedPosition - 1
		if slot < 0 {
			slot = 0
		}
		if slot >= len(active) {
			slot = len(active) - 1
		}
		for slot < len(active) && taken[slot] {
			slot++
		}
		if slot >= len(active) {
			// All slots at or after the request are taken; fall back to the
			// last free slot.
			for slot = len(active) - 1; slot >= 0 && taken[slot]; slot-- {
			}
		}
		result[slot] = e
		taken[slot] = true
	}

	next := 0
	for _, e := range unpinned {
		for next < len(active) && taken[next] {
			next++
		}
		result[next] = e
		taken[next] = true
	}

	for i := range result {
		pos := i + 1
		result[i].Position = &pos
	}

	return result
}

// Less is the automatic ordering predicate: score descending, longest-idle
// first, realtorID as the final deterministic tie-break.
func Less(a, b domain.QueueEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.LastActivityAt.Equal(b.LastActivityAt) {
		return a.LastActivityAt.Before(b.LastActivityAt)
	}
	return a.RealtorID.String() < b.RealtorID.String()
}

func (p *Policy) pinHolds(e domain.QueueEntry) bool {
	if !e.IsPinned() {
		return false
	}
	if p.pinStickinessPoints <= 0 {
		return true
	}
	drift := e.Score - *e.PinnedAtScore
	if drift < 0 {
		drift = -drift
	}
	return drift < p.pinStickinessPoints
}
