package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	sequence := 0
	for _, existing := range s.tickets {
		if existing.ConversationID != ticket.ConversationID {
			continue
		}
		if existing.IsActive() {
			return duplicate("tickets_one_active_per_conversation")
		}
		if existing.Sequence > sequence {
			sequence = existing.Sequence
		}
	}

	now := s.now()
	ticket.ID = newID()
	ticket.Sequence = sequence + 1
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	stored := *ticket
	stored.Metadata = cloneMap(ticket.Metadata)
	s.tickets[ticket.ID] = stored
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyTicket(ticket), nil
}

func (r *ticketRepo) GetActiveByConversation(_ context.Context, conversationID string) (*domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ticket := range s.tickets {
		if ticket.ConversationID == conversationID && ticket.IsActive() {
			return copyTicket(ticket), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ticketRepo) ListByConversation(_ context.Context, conversationID string) ([]domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.ConversationID == conversationID {
			result = append(result, *copyTicket(ticket))
		}
	}
	slices.SortFunc(result, func(a, b domain.Ticket) int { return a.Sequence - b.Sequence })
	return result, nil
}

func (r *ticketRepo) ListUnviolatedActive(_ context.Context) ([]domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.IsActive() && ticket.SLAViolatedAt == nil {
			result = append(result, *copyTicket(ticket))
		}
	}
	slices.SortFunc(result, func(a, b domain.Ticket) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return result, nil
}

func (r *ticketRepo) MarkFirstResponse(_ context.Context, id string, at time.Time) (*domain.Ticket, error) {
	return r.update(id, func(t *domain.Ticket) bool {
		if t.FirstResponseAt != nil || t.Status != domain.TicketStatusOpen {
			return false
		}
		t.FirstResponseAt = timePtr(at)
		t.Status = domain.TicketStatusInProgress
		t.UpdatedAt = at
		return true
	})
}

func (r *ticketRepo) Close(_ context.Context, id string, at time.Time) (*domain.Ticket, error) {
	return r.update(id, func(t *domain.Ticket) bool {
		if t.Status == domain.TicketStatusClosed {
			return false
		}
		t.Status = domain.TicketStatusClosed
		t.ClosedAt = timePtr(at)
		t.UpdatedAt = at
		return true
	})
}

func (r *ticketRepo) UpdatePriority(_ context.Context, id string, priority domain.TicketPriority, at time.Time) (*domain.Ticket, error) {
	return r.update(id, func(t *domain.Ticket) bool {
		if t.Status == domain.TicketStatusClosed {
			return false
		}
		t.Priority = priority
		t.UpdatedAt = at
		return true
	})
}

func (r *ticketRepo) StampViolation(_ context.Context, id string, at time.Time) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok || ticket.SLAViolatedAt != nil || !ticket.IsActive() {
		return false, nil
	}
	ticket.SLAViolatedAt = timePtr(at)
	s.tickets[id] = ticket
	return true, nil
}

// update applies mutate under the lock; a false return leaves the row unchanged
// and reports ErrNotFound, mirroring an UPDATE whose predicate did not match.
func (r *ticketRepo) update(id string, mutate func(*domain.Ticket) bool) (*domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok || !mutate(&ticket) {
		return nil, repository.ErrNotFound
	}
	s.tickets[id] = ticket
	return copyTicket(ticket), nil
}

func copyTicket(t domain.Ticket) *domain.Ticket {
	t.Metadata = cloneMap(t.Metadata)
	return &t
}

type ticketEventRepo struct{ s *Store }

func (r *ticketEventRepo) Create(_ context.Context, event *domain.TicketEvent) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[event.TicketID]; !ok {
		return repository.ErrNotFound
	}
	event.ID = newID()
	event.CreatedAt = s.now()
	stored := *event
	stored.Payload = cloneMap(event.Payload)
	s.ticketEvents = append(s.ticketEvents, stored)
	return nil
}

func (r *ticketEventRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketEvent, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.TicketEvent
	for _, event := range s.ticketEvents {
		if event.TicketID == ticketID {
			event.Payload = cloneMap(event.Payload)
			result = append(result, event)
		}
	}
	return result, nil
}
