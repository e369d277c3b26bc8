package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/events"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle.
type TicketService struct {
	tickets    repository.TicketRepository
	events     repository.TicketEventRepository
	violations repository.SLAViolationRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	EventRepo     repository.TicketEventRepository
	ViolationRepo repository.SLAViolationRepository
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Now           func() time.Time
}

// NewTicketService creates the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		events:     deps.EventRepo,
		violations: deps.ViolationRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("tickets"),
		now:        defaultClock(deps.Now),
	}
}

// TicketOpenInput describes a new ticket. Category and Metadata are stored as given.
type TicketOpenInput struct {
	ConversationID string
	Priority       domain.TicketPriority
	Category       *string
	Metadata       map[string]any
}

// TicketDetails is a ticket with its violations and audit trail.
type TicketDetails struct {
	Ticket     *domain.Ticket
	Violations []domain.SLAViolation
	Events     []domain.TicketEvent
}

// Open starts tracking a conversation. Only one ticket per conversation may be active.
func (s *TicketService) Open(ctx context.Context, actor events.Actor, input TicketOpenInput) (*domain.Ticket, error) {
	if err := validateOpenInput(input); err != nil {
		return nil, err
	}
	if existing, err := s.tickets.GetActiveByConversation(ctx, input.ConversationID); err == nil {
		return nil, activeTicketConflict(input.ConversationID, existing.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	ticket, err := s.create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, &domain.TicketEvent{
		TicketID:  ticket.ID,
		EventType: domain.TicketEventOpened,
		Payload:   map[string]any{"priority": ticket.Priority, "sequence": ticket.Sequence},
	})
	s.publish(ctx, events.EventTicketOpened, ticket, actor, ticketPayload(ticket, nil))
	return ticket, nil
}

// RecordFirstResponse marks the first agent reply. Repeating it is a no-op.
func (s *TicketService) RecordFirstResponse(ctx context.Context, actor events.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.MarkFirstResponse(ctx, ticketID, s.now())
	if err == nil {
		s.recordEvent(ctx, &domain.TicketEvent{TicketID: ticket.ID, EventType: domain.TicketEventFirstResponse})
		s.publish(ctx, events.EventTicketFirstResponse, ticket, actor, ticketPayload(ticket, nil))
		return ticket, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	current, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if current.FirstResponseAt != nil {
		return current, nil
	}
	return nil, apperrors.NewInvalidState("ticket closed without a response", map[string]any{
		"ticket_id": ticketID,
		"status":    current.Status,
	})
}

// Close ends the episode.
func (s *TicketService) Close(ctx context.Context, actor events.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Close(ctx, ticketID, s.now())
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.MapError(err)
		}
		if _, loadErr := s.load(ctx, ticketID); loadErr != nil {
			return nil, loadErr
		}
		return nil, apperrors.NewInvalidState("ticket already closed", map[string]any{"ticket_id": ticketID})
	}
	s.recordEvent(ctx, &domain.TicketEvent{TicketID: ticket.ID, EventType: domain.TicketEventClosed})
	s.publish(ctx, events.EventTicketClosed, ticket, actor, ticketPayload(ticket, nil))
	return ticket, nil
}

// Reopen starts a new ticket after previousTicketID on the same conversation.
// The new ticket inherits the previous priority unless one is given.
func (s *TicketService) Reopen(ctx context.Context, actor events.Actor, conversationID, previousTicketID string, priority *domain.TicketPriority) (*domain.Ticket, error) {
	previous, err := s.load(ctx, previousTicketID)
	if err != nil {
		return nil, err
	}
	if previous.ConversationID != conversationID {
		return nil, apperrors.NewValidationError("ticket belongs to another conversation", map[string]any{
			"ticket_id":       previousTicketID,
			"conversation_id": conversationID,
		})
	}
	if previous.Status != domain.TicketStatusClosed {
		return nil, apperrors.NewInvalidState("previous ticket is still active", map[string]any{"ticket_id": previousTicketID})
	}

	input := TicketOpenInput{
		ConversationID: conversationID,
		Priority:       previous.Priority,
		Category:       previous.Category,
	}
	if priority != nil {
		input.Priority = *priority
	}
	if err := validateOpenInput(input); err != nil {
		return nil, err
	}

	ticket, err := s.create(ctx, input)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, &domain.TicketEvent{
		TicketID:         ticket.ID,
		EventType:        domain.TicketEventReopened,
		PreviousTicketID: &previous.ID,
		PreviousSequence: &previous.Sequence,
		Payload:          map[string]any{"priority": ticket.Priority, "sequence": ticket.Sequence},
	})
	s.publish(ctx, events.EventTicketReopened, ticket, actor, ticketPayload(ticket, previous))
	return ticket, nil
}

// HandleInboundMessage returns the conversation's active ticket, reopening
// after the latest closed ticket or opening the first one when none is active.
// The boolean reports whether a ticket was created.
func (s *TicketService) HandleInboundMessage(ctx context.Context, actor events.Actor, conversationID string, priority domain.TicketPriority) (*domain.Ticket, bool, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, false, apperrors.NewValidationError("conversation_id is required", nil)
	}
	active, err := s.tickets.GetActiveByConversation(ctx, conversationID)
	if err == nil {
		return active, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperrors.MapError(err)
	}

	history, err := s.tickets.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}

	var ticket *domain.Ticket
	if len(history) == 0 {
		if priority == "" {
			priority = domain.FallbackPriority
		}
		ticket, err = s.Open(ctx, actor, TicketOpenInput{ConversationID: conversationID, Priority: priority})
	} else {
		var override *domain.TicketPriority
		if priority != "" {
			override = &priority
		}
		ticket, err = s.Reopen(ctx, actor, conversationID, history[len(history)-1].ID, override)
	}
	if apperrors.HasCode(err, apperrors.CodeConflict) {
		// Another message opened the ticket first.
		active, getErr := s.tickets.GetActiveByConversation(ctx, conversationID)
		if getErr != nil {
			return nil, false, mapRepoError(getErr, "ticket", map[string]any{"conversation_id": conversationID})
		}
		return active, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ticket, true, nil
}

// ChangePriority updates an active ticket's priority. Deadlines follow the new
// priority from the next scan on.
func (s *TicketService) ChangePriority(ctx context.Context, actor events.Actor, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error) {
	if !priority.Valid() {
		return nil, invalidPriority(priority)
	}
	previous, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if previous.Priority == priority && previous.IsActive() {
		return previous, nil
	}
	ticket, err := s.tickets.UpdatePriority(ctx, ticketID, priority, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidState("ticket already closed", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	s.recordEvent(ctx, &domain.TicketEvent{
		TicketID:  ticket.ID,
		EventType: domain.TicketEventPriorityChanged,
		Payload:   map[string]any{"old_priority": previous.Priority, "new_priority": priority},
	})
	s.publish(ctx, events.EventTicketPriorityChanged, ticket, actor, events.TicketPriorityChangedPayload{
		OldPriority: previous.Priority,
		NewPriority: priority,
	})
	return ticket, nil
}

// Get returns a ticket with its violations and events.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*TicketDetails, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	violations, err := s.violations.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	history, err := s.events.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketDetails{Ticket: ticket, Violations: violations, Events: history}, nil
}

// ListByConversation returns every ticket of a conversation in sequence order.
func (s *TicketService) ListByConversation(ctx context.Context, conversationID string) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

func (s *TicketService) create(ctx context.Context, input TicketOpenInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		ConversationID: input.ConversationID,
		Priority:       input.Priority,
		Status:         domain.TicketStatusOpen,
		Category:       input.Category,
		Metadata:       input.Metadata,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activeTicketConflict(input.ConversationID, "")
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// recordEvent writes the audit entry; the transition it describes has
// already been committed, so failures are only logged.
func (s *TicketService) recordEvent(ctx context.Context, event *domain.TicketEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.logger.Warn("failed to record ticket event",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
	}
}

func (s *TicketService) publish(ctx context.Context, eventType events.EventType, ticket *domain.Ticket, actor events.Actor, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.New(eventType, ticket.ConversationID, ticket.ID, actor, s.now(), payload))
}

func ticketPayload(ticket, previous *domain.Ticket) events.TicketPayload {
	payload := events.TicketPayload{
		Sequence: ticket.Sequence,
		Status:   ticket.Status,
		Priority: ticket.Priority,
	}
	if previous != nil {
		payload.PreviousTicketID = &previous.ID
		payload.PreviousSequence = &previous.Sequence
	}
	return payload
}

func validateOpenInput(input TicketOpenInput) error {
	if strings.TrimSpace(input.ConversationID) == "" {
		return apperrors.NewValidationError("conversation_id is required", nil)
	}
	if !input.Priority.Valid() {
		return invalidPriority(input.Priority)
	}
	return nil
}

func activeTicketConflict(conversationID, existingID string) error {
	details := map[string]any{"conversation_id": conversationID}
	if existingID != "" {
		details["active_ticket_id"] = existingID
	}
	return apperrors.NewConflict("conversation already has an active ticket", details)
}
