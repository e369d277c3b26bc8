package memstore

import (
	"context"
	"slices"
	"strings"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
)

type staffRepo struct{ s *Store }

func (r *staffRepo) Create(_ context.Context, staff *domain.StaffMember) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.staff {
		if strings.EqualFold(existing.Email, staff.Email) {
			return duplicate("staff_members_email_key")
		}
	}
	now := s.now()
	staff.ID = newID()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	s.staff[staff.ID] = *staff
	return nil
}

func (r *staffRepo) Update(_ context.Context, staff *domain.StaffMember) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.staff[staff.ID]
	if !ok {
		return repository.ErrNotFound
	}
	staff.CreatedAt = existing.CreatedAt
	staff.UpdatedAt = s.now()
	s.staff[staff.ID] = *staff
	return nil
}

func (r *staffRepo) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	staff, ok := s.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &staff, nil
}

func (r *staffRepo) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, staff := range s.staff {
		if strings.EqualFold(staff.Email, email) {
			return &staff, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *staffRepo) List(_ context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	s := r.s
	s.mu.Lock()
	var result []domain.StaffMember
	for _, staff := range s.staff {
		if filter.Role != nil && staff.Role != *filter.Role {
			continue
		}
		if filter.SectorID != nil && (staff.SectorID == nil || *staff.SectorID != *filter.SectorID) {
			continue
		}
		if filter.OnDuty != nil && staff.OnDuty != *filter.OnDuty {
			continue
		}
		if filter.Active != nil && staff.Active != *filter.Active {
			continue
		}
		result = append(result, staff)
	}
	s.mu.Unlock()
	slices.SortFunc(result, func(a, b domain.StaffMember) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return page(result, filter.Limit, filter.Offset), nil
}
