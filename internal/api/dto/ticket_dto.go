package dto

import (
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// OpenTicketRequest payload for POST /tickets.
type OpenTicketRequest struct {
	ConversationID string                `json:"conversation_id"`
	Priority       domain.TicketPriority `json:"priority"`
	Category       *string               `json:"category"`
	Metadata       map[string]any        `json:"metadata"`
}

// ReopenTicketRequest payload for POST /conversations/:id/reopen.
type ReopenTicketRequest struct {
	PreviousTicketID string                 `json:"previous_ticket_id"`
	Priority         *domain.TicketPriority `json:"priority"`
}

// InboundMessageRequest payload for POST /conversations/:id/inbound.
type InboundMessageRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// ChangePriorityRequest payload.
type ChangePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// TicketResponse describes a ticket.
type TicketResponse struct {
	ID              string                `json:"id"`
	ConversationID  string                `json:"conversation_id"`
	Sequence        int                   `json:"sequence"`
	Priority        domain.TicketPriority `json:"priority"`
	Status          domain.TicketStatus   `json:"status"`
	Category        *string               `json:"category"`
	Metadata        map[string]any        `json:"metadata,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	FirstResponseAt *time.Time            `json:"first_response_at"`
	SLAViolatedAt   *time.Time            `json:"sla_violated_at"`
	ClosedAt        *time.Time            `json:"closed_at"`
}

// ViolationResponse describes a recorded breach.
type ViolationResponse struct {
	ID            string               `json:"id"`
	ViolationType domain.ViolationType `json:"violation_type"`
	ExpectedAt    time.Time            `json:"expected_at"`
	ViolatedAt    time.Time            `json:"violated_at"`
}

// TicketEventResponse is one audit trail entry.
type TicketEventResponse struct {
	ID               string                 `json:"id"`
	EventType        domain.TicketEventType `json:"event_type"`
	PreviousTicketID *string                `json:"previous_ticket_id,omitempty"`
	PreviousSequence *int                   `json:"previous_sequence,omitempty"`
	Payload          map[string]any         `json:"payload,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Violations []ViolationResponse   `json:"violations"`
	Events     []TicketEventResponse `json:"events"`
}

// InboundMessageResponse reports which ticket now tracks the conversation.
type InboundMessageResponse struct {
	Ticket  TicketResponse `json:"ticket"`
	Created bool           `json:"created"`
}
