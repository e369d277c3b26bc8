package domain

import "time"

// TicketEventType captures what happened in a ticket audit entry.
type TicketEventType string

const (
	TicketEventOpened          TicketEventType = "opened"
	TicketEventFirstResponse   TicketEventType = "first_response"
	TicketEventClosed          TicketEventType = "closed"
	TicketEventReopened        TicketEventType = "reopened"
	TicketEventPriorityChanged TicketEventType = "priority_changed"
)

// TicketEvent is an immutable audit trail entry. Reopened markers point back to
// the ticket they follow so the conversation timeline can render "#2 reopened from #1".
type TicketEvent struct {
	ID               string
	TicketID         string
	EventType        TicketEventType
	PreviousTicketID *string
	PreviousSequence *int
	Payload          map[string]any
	CreatedAt        time.Time
}
