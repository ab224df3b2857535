package notification

import (
	"context"
	"fmt"
	"time"

	"realty_portal_backend/internal/events"
	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
)

const sendTimeout = 15 * time.Second

// Directory resolves a realtor's contact address. The routing engine only
// knows realtor ids; the surrounding platform owns the address book.
type Directory interface {
	EmailFor(ctx context.Context, realtorID uuid.UUID) (string, error)
}

// Notifier subscribes to routing events and emails the affected parties:
// realtors when they gain or lose a hold, the ops mailbox when a lead needs
// intervention.
type Notifier struct {
	sender    Sender
	directory Directory
	opsEmail  string
	log       *logger.Logger
}

func NewNotifier(sender Sender, directory Directory, opsEmail string, log *logger.Logger) *Notifier {
	return &Notifier{sender: sender, directory: directory, opsEmail: opsEmail, log: log}
}

// Subscribe registers all handlers on the bus.
func (n *Notifier) Subscribe(bus events.Bus) {
	bus.Subscribe(events.LeadReserved{}.EventName(), events.HandlerFunc(n.onLeadReserved))
	bus.Subscribe(events.LeadAccepted{}.EventName(), events.HandlerFunc(n.onLeadAccepted))
	bus.Subscribe(events.LeadExpired{}.EventName(), events.HandlerFunc(n.onLeadExpired))
	bus.Subscribe(events.LeadDeadLettered{}.EventName(), events.HandlerFunc(n.onLeadDeadLettered))
}

func (n *Notifier) onLeadReserved(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.LeadReserved)
	if !ok {
		return nil
	}
	n.sendToRealtor(ctx, ev.RealtorID,
		"New lead reserved for you",
		fmt.Sprintf("Lead %s is reserved for you until %s. Accept or reject it before the deadline.",
			ev.LeadID, ev.ReservedUntil.Format(time.RFC1123)))
	return nil
}

func (n *Notifier) onLeadAccepted(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.LeadAccepted)
	if !ok {
		return nil
	}
	n.sendToRealtor(ctx, ev.RealtorID,
		"Lead accepted",
		fmt.Sprintf("Lead %s is now yours. Contact the customer and schedule a visit.", ev.LeadID))
	return nil
}

func (n *Notifier) onLeadExpired(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.LeadExpired)
	if !ok {
		return nil
	}
	n.sendToRealtor(ctx, ev.RealtorID,
		"Your lead reservation expired",
		fmt.Sprintf("Your reservation for lead %s expired without a response.", ev.LeadID))

	if !ev.Reassigned {
		n.sendToOps(ctx,
			"Lead needs attention",
			fmt.Sprintf("Lead %s expired and auto-reassignment is disabled. It is waiting in the dead-letter view.", ev.LeadID))
	}
	return nil
}

func (n *Notifier) onLeadDeadLettered(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.LeadDeadLettered)
	if !ok {
		return nil
	}
	n.sendToOps(ctx,
		"Lead could not be routed",
		fmt.Sprintf("Lead %s was dead-lettered: %s.", ev.LeadID, ev.Reason))
	return nil
}

func (n *Notifier) sendToRealtor(ctx context.Context, realtorID uuid.UUID, subject, body string) {
	if n.directory == nil {
		return
	}
	to, err := n.directory.EmailFor(ctx, realtorID)
	if err != nil || to == "" {
		n.log.Warn("no email address for realtor", "realtor_id", realtorID)
		return
	}
	n.send(ctx, to, subject, body)
}

func (n *Notifier) sendToOps(ctx context.Context, subject, body string) {
	if n.opsEmail == "" {
		return
	}
	n.send(ctx, n.opsEmail, subject, body)
}

func (n *Notifier) send(ctx context.Context, to, subject, body string) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	if err := n.sender.Send(sendCtx, to, subject, body); err != nil {
		n.log.Error("email send failed", "to", to, "subject", subject, "error", err)
	}
}
