package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
)

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Upsert(_ context.Context, n *domain.EscalationNotification) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, existing := range s.notifications {
		if existing.EscalationID == n.EscalationID && existing.UserID == n.UserID && existing.NotificationType == n.NotificationType {
			existing.ReadAt = nil
			existing.DismissedAt = nil
			existing.CreatedAt = now
			s.notifications[id] = existing
			*n = existing
			return nil
		}
	}
	n.ID = newID()
	n.ReadAt = nil
	n.DismissedAt = nil
	n.CreatedAt = now
	s.notifications[n.ID] = *n
	return nil
}

func (r *notificationRepo) ListByUser(_ context.Context, userID string, filter repository.NotificationFilter) ([]domain.EscalationNotification, error) {
	s := r.s
	s.mu.Lock()
	var result []domain.EscalationNotification
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if !filter.IncludeRead && n.ReadAt != nil {
			continue
		}
		if !filter.IncludeDismissed && n.DismissedAt != nil {
			continue
		}
		result = append(result, n)
	}
	s.mu.Unlock()
	slices.SortFunc(result, func(a, b domain.EscalationNotification) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(result, filter.Limit, filter.Offset), nil
}

func (r *notificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && n.ReadAt == nil && n.DismissedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, userID, id string, at time.Time) error {
	return r.updateOne(userID, id, func(n *domain.EscalationNotification) {
		if n.ReadAt == nil {
			n.ReadAt = timePtr(at)
		}
	})
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	return r.updateAll(userID, func(n *domain.EscalationNotification) bool {
		if n.ReadAt != nil {
			return false
		}
		n.ReadAt = timePtr(at)
		return true
	}), nil
}

func (r *notificationRepo) Dismiss(_ context.Context, userID, id string, at time.Time) error {
	return r.updateOne(userID, id, func(n *domain.EscalationNotification) {
		if n.DismissedAt == nil {
			n.DismissedAt = timePtr(at)
		}
	})
}

func (r *notificationRepo) DismissAll(_ context.Context, userID string, at time.Time) (int64, error) {
	return r.updateAll(userID, func(n *domain.EscalationNotification) bool {
		if n.DismissedAt != nil {
			return false
		}
		n.DismissedAt = timePtr(at)
		return true
	}), nil
}

func (r *notificationRepo) updateOne(userID, id string, mutate func(*domain.EscalationNotification)) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	mutate(&n)
	s.notifications[id] = n
	return nil
}

func (r *notificationRepo) updateAll(userID string, mutate func(*domain.EscalationNotification) bool) int64 {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for id, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if mutate(&n) {
			s.notifications[id] = n
			affected++
		}
	}
	return affected
}

type assignmentRepo struct{ s *Store }

func (r *assignmentRepo) Set(_ context.Context, assignment *domain.ConversationAssignment) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if assignment.UpdatedAt.IsZero() {
		assignment.UpdatedAt = s.now()
	}
	s.assignments[assignment.ConversationID] = *assignment
	return nil
}

func (r *assignmentRepo) Get(_ context.Context, conversationID string) (*domain.ConversationAssignment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[conversationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}
