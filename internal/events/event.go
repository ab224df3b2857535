// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"realty_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Routing Events
// =============================================================================

// LeadCreated is published when intake records a new inquiry.
type LeadCreated struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	PropertyID uuid.UUID `json:"propertyId"`
	Source     string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "routing.lead.created" }

// LeadReserved is published when a realtor gains a time-boxed exclusive hold.
type LeadReserved struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	RealtorID     uuid.UUID `json:"realtorId"`
	ReservedUntil time.Time `json:"reservedUntil"`
}

func (e LeadReserved) EventName() string { return "routing.lead.reserved" }

// LeadAccepted is published when the holding realtor takes the lead.
type LeadAccepted struct {
	BaseEvent
	LeadID          uuid.UUID     `json:"leadId"`
	RealtorID       uuid.UUID     `json:"realtorId"`
	ResponseSeconds time.Duration `json:"-"`
}

func (e LeadAccepted) EventName() string { return "routing.lead.accepted" }

// LeadRejected is published when the holding realtor refuses the lead.
type LeadRejected struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	RealtorID uuid.UUID `json:"realtorId"`
}

func (e LeadRejected) EventName() string { return "routing.lead.rejected" }

// LeadExpired is published when a reservation lapses without action.
type LeadExpired struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	RealtorID  uuid.UUID `json:"realtorId"`
	Reassigned bool      `json:"reassigned"`
}

func (e LeadExpired) EventName() string { return "routing.lead.expired" }

// LeadReleased is published when an admin force-releases a held lead.
type LeadReleased struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	RealtorID uuid.UUID `json:"realtorId"`
}

func (e LeadReleased) EventName() string { return "routing.lead.released" }

// LeadPublished is published when a lead lands on the open board.
type LeadPublished struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
}

func (e LeadPublished) EventName() string { return "routing.lead.published" }

// LeadDeadLettered is published when dispatch exhausts every candidate.
type LeadDeadLettered struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Reason string    `json:"reason"`
}

func (e LeadDeadLettered) EventName() string { return "routing.lead.dead_lettered" }

// CandidatureSubmitted is published when a realtor applies for a board lead.
type CandidatureSubmitted struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	RealtorID uuid.UUID `json:"realtorId"`
}

func (e CandidatureSubmitted) EventName() string { return "routing.candidature.submitted" }

// ScoreAdjusted is published when a score event lands in the ledger.
type ScoreAdjusted struct {
	BaseEvent
	RealtorID uuid.UUID `json:"realtorId"`
	Action    string    `json:"action"`
	Points    int       `json:"points"`
}

func (e ScoreAdjusted) EventName() string { return "routing.score.adjusted" }
