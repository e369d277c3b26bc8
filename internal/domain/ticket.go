package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether the priority is one of the known values.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// ActiveTicketStatuses lists the states a ticket can be in before it closes.
var ActiveTicketStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress}

// Ticket is one service episode for a conversation.
type Ticket struct {
	ID              string
	ConversationID  string
	Sequence        int
	Priority        TicketPriority
	Status          TicketStatus
	Category        *string
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	SLAViolatedAt   *time.Time
	ClosedAt        *time.Time
}

// IsActive reports whether the ticket has not been closed yet.
func (t *Ticket) IsActive() bool {
	return t.Status != TicketStatusClosed
}
