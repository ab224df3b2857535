// Package domain holds the routing bounded context's core types and pure
// rules: the lead reservation state machine, queue entry capacity rules, and
// the score action catalog. Nothing in this package touches storage or I/O.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lead's position in the reservation state machine.
type Status string

const (
	// StatusAvailable means the lead is in the assignment pool (direct or board).
	StatusAvailable Status = "AVAILABLE"
	// StatusReserved means exactly one realtor holds a time-boxed exclusive hold.
	StatusReserved Status = "RESERVED"
	// StatusAccepted is terminal: the holding realtor took the lead.
	StatusAccepted Status = "ACCEPTED"
	// StatusExpired means the hold lapsed and auto-reassignment is disabled;
	// the lead sits in the admin dead-letter view until released.
	StatusExpired Status = "EXPIRED"
	// StatusDeadLetter means dispatch exhausted every candidate; admins must
	// intervene.
	StatusDeadLetter Status = "DEAD_LETTER"
)

// RoutingMode determines how an AVAILABLE lead reaches a realtor.
type RoutingMode string

const (
	// ModeDirect pushes the lead to the top-ranked eligible realtor.
	ModeDirect RoutingMode = "DIRECT"
	// ModeBoard publishes the lead for open candidature.
	ModeBoard RoutingMode = "BOARD"
)

// validTransitions captures every legal move in the reservation state
// machine. A rejected hold goes back to AVAILABLE; REJECTED is an event on
// the realtor's record, not a lead state.
var validTransitions = map[Status][]Status{
	StatusAvailable:  {StatusReserved, StatusDeadLetter},
	StatusReserved:   {StatusAccepted, StatusAvailable, StatusExpired},
	StatusExpired:    {StatusAvailable},
	StatusDeadLetter: {StatusAvailable},
	StatusAccepted:   {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s Status) bool {
	return len(validTransitions[s]) == 0
}

// Lead is one inbound inquiry about a property, routed to exactly one
// realtor at a time.
type Lead struct {
	ID                 uuid.UUID
	PropertyID         uuid.UUID
	ContactName        string
	ContactEmail       *string
	ContactPhone       string
	Status             Status
	RoutingMode        RoutingMode
	ExclusiveRealtorID *uuid.UUID
	ReservedFor        *uuid.UUID
	ReservedAt         *time.Time
	ReservedUntil      *time.Time
	DeadLetteredAt     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HeldBy reports whether the given realtor currently holds this lead.
func (l Lead) HeldBy(realtorID uuid.UUID) bool {
	return l.Status == StatusReserved && l.ReservedFor != nil && *l.ReservedFor == realtorID
}

// ReservationDue reports whether the lead's hold has lapsed at the given
// instant.
func (l Lead) ReservationDue(now time.Time) bool {
	return l.Status == StatusReserved && l.ReservedUntil != nil && !now.Before(*l.ReservedUntil)
}

// IsExclusive reports whether the lead is pinned to a capturing realtor and
// must never reach the board.
func (l Lead) IsExclusive() bool {
	return l.ExclusiveRealtorID != nil
}
