package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
)

type escalationRepo struct{ s *Store }

func (r *escalationRepo) Create(_ context.Context, item *domain.EscalationQueueItem) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.escalations {
		if existing.ConversationID == item.ConversationID && !existing.Status.IsTerminal() {
			return duplicate("escalation_queue_one_active_per_conversation")
		}
	}
	now := s.now()
	item.ID = newID()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.escalations[item.ID] = *copyEscalation(*item)
	return nil
}

func (r *escalationRepo) GetByID(_ context.Context, id string) (*domain.EscalationQueueItem, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.escalations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyEscalation(item), nil
}

func (r *escalationRepo) GetActiveByConversation(_ context.Context, conversationID string) (*domain.EscalationQueueItem, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.escalations {
		if item.ConversationID == conversationID && !item.Status.IsTerminal() {
			return copyEscalation(item), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *escalationRepo) List(_ context.Context, filter repository.EscalationFilter) ([]domain.EscalationQueueItem, error) {
	s := r.s
	s.mu.Lock()
	var result []domain.EscalationQueueItem
	for _, item := range s.escalations {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, item.Status) {
			continue
		}
		if filter.SectorID != nil && (item.SectorID == nil || *item.SectorID != *filter.SectorID) {
			continue
		}
		if filter.AssignedTo != nil && (item.AssignedTo == nil || *item.AssignedTo != *filter.AssignedTo) {
			continue
		}
		result = append(result, *copyEscalation(item))
	}
	s.mu.Unlock()

	slices.SortFunc(result, func(a, b domain.EscalationQueueItem) int {
		if domain.QueueLess(&a, &b) {
			return -1
		}
		if domain.QueueLess(&b, &a) {
			return 1
		}
		return 0
	})
	return page(result, filter.Limit, filter.Offset), nil
}

func (r *escalationRepo) Accept(_ context.Context, id, userID string, at time.Time) (*domain.EscalationQueueItem, error) {
	return r.update(id, func(item *domain.EscalationQueueItem) bool {
		if item.Status != domain.EscalationStatusPending {
			return false
		}
		item.Status = domain.EscalationStatusAssigned
		item.AssignedTo = &userID
		item.AssignedAt = timePtr(at)
		item.UpdatedAt = at
		return true
	})
}

func (r *escalationRepo) Transfer(_ context.Context, id, fromUserID, toUserID string, at time.Time) (*domain.EscalationQueueItem, error) {
	return r.update(id, func(item *domain.EscalationQueueItem) bool {
		if item.Status != domain.EscalationStatusAssigned || item.AssignedTo == nil || *item.AssignedTo != fromUserID {
			return false
		}
		item.AssignedTo = &toUserID
		item.AssignedAt = timePtr(at)
		item.UpdatedAt = at
		return true
	})
}

func (r *escalationRepo) Resolve(_ context.Context, id string, notes *string, at time.Time) (*domain.EscalationQueueItem, error) {
	return r.update(id, func(item *domain.EscalationQueueItem) bool {
		if item.Status == domain.EscalationStatusResolved || item.Status == domain.EscalationStatusAbandoned {
			return false
		}
		item.Status = domain.EscalationStatusResolved
		item.ResolvedAt = timePtr(at)
		item.ResolutionNotes = notes
		item.ResolvedBy = item.AssignedTo
		item.AssignedTo = nil
		item.UpdatedAt = at
		return true
	})
}

func (r *escalationRepo) Abandon(_ context.Context, id string, at time.Time) (*domain.EscalationQueueItem, error) {
	return r.update(id, func(item *domain.EscalationQueueItem) bool {
		if item.Status != domain.EscalationStatusPending {
			return false
		}
		item.Status = domain.EscalationStatusAbandoned
		item.ResolvedAt = timePtr(at)
		item.UpdatedAt = at
		return true
	})
}

func (r *escalationRepo) Expire(_ context.Context, id string, at time.Time) (*domain.EscalationQueueItem, error) {
	return r.update(id, func(item *domain.EscalationQueueItem) bool {
		if !item.ExpiredAt(at) {
			return false
		}
		expire(item, at)
		return true
	})
}

func (r *escalationRepo) ExpireDue(_ context.Context, at time.Time) ([]domain.EscalationQueueItem, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.EscalationQueueItem
	for id, item := range s.escalations {
		if !item.ExpiredAt(at) {
			continue
		}
		expire(&item, at)
		s.escalations[id] = item
		result = append(result, *copyEscalation(item))
	}
	return result, nil
}

func expire(item *domain.EscalationQueueItem, at time.Time) {
	item.Status = domain.EscalationStatusExpired
	item.ResolvedAt = timePtr(at)
	item.UpdatedAt = at
}

func (r *escalationRepo) update(id string, mutate func(*domain.EscalationQueueItem) bool) (*domain.EscalationQueueItem, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.escalations[id]
	if !ok || !mutate(&item) {
		return nil, repository.ErrNotFound
	}
	s.escalations[id] = item
	return copyEscalation(item), nil
}

func copyEscalation(item domain.EscalationQueueItem) *domain.EscalationQueueItem {
	item.Metadata = cloneMap(item.Metadata)
	return &item
}
