package memstore

import (
	"context"
	"slices"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
)

type slaConfigRepo struct{ s *Store }

func (r *slaConfigRepo) Get(_ context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[priority]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cfg, nil
}

func (r *slaConfigRepo) List(_ context.Context) ([]domain.SLAConfig, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]domain.SLAConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		result = append(result, cfg)
	}
	slices.SortFunc(result, func(a, b domain.SLAConfig) int {
		switch {
		case a.Priority < b.Priority:
			return -1
		case a.Priority > b.Priority:
			return 1
		}
		return 0
	})
	return result, nil
}

func (r *slaConfigRepo) Upsert(_ context.Context, cfg *domain.SLAConfig) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.configs[cfg.Priority]; ok {
		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
	} else {
		cfg.ID = newID()
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	s.configs[cfg.Priority] = *cfg
	return nil
}

func (r *slaConfigRepo) Delete(_ context.Context, priority domain.TicketPriority) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[priority]; !ok {
		return repository.ErrNotFound
	}
	delete(s.configs, priority)
	return nil
}

type violationRepo struct{ s *Store }

func (r *violationRepo) Create(_ context.Context, violation *domain.SLAViolation) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.violations {
		if existing.TicketID == violation.TicketID && existing.ViolationType == violation.ViolationType {
			return false, nil
		}
	}
	violation.ID = newID()
	s.violations = append(s.violations, *violation)
	return true, nil
}

func (r *violationRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.SLAViolation, error) {
	return r.List(ctx, repository.ViolationFilter{TicketID: &ticketID, Limit: 100})
}

func (r *violationRepo) List(_ context.Context, filter repository.ViolationFilter) ([]domain.SLAViolation, error) {
	s := r.s
	s.mu.Lock()
	var result []domain.SLAViolation
	for _, v := range s.violations {
		if filter.TicketID != nil && v.TicketID != *filter.TicketID {
			continue
		}
		if filter.Type != nil && v.ViolationType != *filter.Type {
			continue
		}
		if filter.Since != nil && v.ViolatedAt.Before(*filter.Since) {
			continue
		}
		result = append(result, v)
	}
	s.mu.Unlock()

	slices.SortStableFunc(result, func(a, b domain.SLAViolation) int {
		if c := a.ViolatedAt.Compare(b.ViolatedAt); c != 0 {
			return c
		}
		switch {
		case a.ViolationType < b.ViolationType:
			return -1
		case a.ViolationType > b.ViolationType:
			return 1
		}
		return 0
	})
	return page(result, filter.Limit, filter.Offset), nil
}
