// Package scheduler provides durable background work for the routing
// engine: reservation expiry at the deadline, debounced board selection,
// and the periodic sweep that backstops both.
package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TypeReservationExpire fires when a reservation deadline passes.
	TypeReservationExpire = "routing:reservation:expire"
	// TypeBoardSelect fires after the candidature debounce window.
	TypeBoardSelect = "routing:board:select"
	// TypeLeadRedispatch re-runs dispatch for a lead returned to the pool.
	TypeLeadRedispatch = "routing:lead:redispatch"
)

type leadPayload struct {
	LeadID uuid.UUID `json:"lead_id"`
}

func newLeadTask(taskType string, leadID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(leadPayload{LeadID: leadID})
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, payload), nil
}

func parseLeadPayload(task *asynq.Task) (uuid.UUID, error) {
	var payload leadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return uuid.Nil, fmt.Errorf("unmarshal %s payload: %w", task.Type(), err)
	}
	return payload.LeadID, nil
}
