package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened          EventType = "ticket_opened"
	EventTicketFirstResponse   EventType = "ticket_first_response"
	EventTicketClosed          EventType = "ticket_closed"
	EventTicketReopened        EventType = "ticket_reopened"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventViolationRecorded     EventType = "violation_recorded"
	EventEscalationEnqueued    EventType = "escalation_enqueued"
	EventEscalationAssigned    EventType = "escalation_assigned"
	EventEscalationTransferred EventType = "escalation_transferred"
	EventEscalationResolved    EventType = "escalation_resolved"
	EventEscalationAbandoned   EventType = "escalation_abandoned"
	EventEscalationExpired     EventType = "escalation_expired"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.SubjectType `json:"type"`
	StaffID *string            `json:"staff_id,omitempty"`
}

// SystemActor is used for transitions made by background workers.
var SystemActor = Actor{Type: domain.SubjectTypeService}

// Event represents a domain event emitted by services.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	SubjectID      string    `json:"subject_id"`
	Actor          Actor     `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload,omitempty"`
}

// New builds an event with a fresh id.
func New(eventType EventType, conversationID, subjectID string, actor Actor, at time.Time, payload any) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		ConversationID: conversationID,
		SubjectID:      subjectID,
		Actor:          actor,
		Timestamp:      at,
		Payload:        payload,
	}
}

// TicketPayload accompanies ticket lifecycle events.
type TicketPayload struct {
	Sequence         int                   `json:"sequence"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	PreviousTicketID *string               `json:"previous_ticket_id,omitempty"`
	PreviousSequence *int                  `json:"previous_sequence,omitempty"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// ViolationRecordedPayload payload.
type ViolationRecordedPayload struct {
	ViolationID   string               `json:"violation_id"`
	ViolationType domain.ViolationType `json:"violation_type"`
	ExpectedAt    time.Time            `json:"expected_at"`
	ViolatedAt    time.Time            `json:"violated_at"`
}

// EscalationPayload accompanies queue transitions.
type EscalationPayload struct {
	Status         domain.EscalationStatus `json:"status"`
	Priority       int                     `json:"priority"`
	SectorID       *string                 `json:"sector_id,omitempty"`
	AssignedTo     *string                 `json:"assigned_to,omitempty"`
	PreviousHolder *string                 `json:"previous_holder,omitempty"`
}
