package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/sla-escalation-service/internal/auth"
	"github.com/spec-kit/sla-escalation-service/internal/config"
	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

// StaffService manages staff members and their duty state.
type StaffService struct {
	staff      repository.StaffRepository
	bcryptCost int
}

// StaffListFilters define listing parameters.
type StaffListFilters struct {
	Role     *domain.StaffRole
	SectorID *string
	OnDuty   *bool
	Active   *bool
	Limit    int
	Offset   int
}

// StaffInput carries fields for creating or updating a staff member.
type StaffInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.StaffRole
	SectorID *string
	Active   *bool
}

// NewStaffService constructs the service.
func NewStaffService(cfg *config.Config, staff repository.StaffRepository) *StaffService {
	return &StaffService{
		staff:      staff,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

func requireAdmin(actor *domain.StaffMember) error {
	if actor == nil || actor.Role != domain.StaffRoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateStaffMember adds a new staff account.
func (s *StaffService) CreateStaffMember(ctx context.Context, actor *domain.StaffMember, input StaffInput) (*domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if strings.TrimSpace(input.Name) == "" || email == "" {
		return nil, apperrors.NewValidationError("name and email are required", nil)
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": input.Role})
	}
	if _, err := s.staff.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("staff email already exists", map[string]any{"email": email})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	staff := &domain.StaffMember{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		SectorID:     input.SectorID,
		Active:       true,
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		return nil, mapRepoError(err, "staff", map[string]any{"email": email})
	}
	return staff, nil
}

// ListStaffMembers lists staff with filters.
func (s *StaffService) ListStaffMembers(ctx context.Context, actor *domain.StaffMember, filters StaffListFilters) ([]domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	staff, err := s.staff.List(ctx, repository.StaffFilter{
		Role:     filters.Role,
		SectorID: filters.SectorID,
		OnDuty:   filters.OnDuty,
		Active:   filters.Active,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

// GetStaffMemberByID fetches staff.
func (s *StaffService) GetStaffMemberByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	staff, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "staff", map[string]any{"staff_id": id})
	}
	return staff, nil
}

// UpdateStaffMember updates staff details. Empty fields are left unchanged.
func (s *StaffService) UpdateStaffMember(ctx context.Context, actor *domain.StaffMember, staffID string, input StaffInput) (*domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	staff, err := s.GetStaffMemberByID(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if email := strings.ToLower(strings.TrimSpace(input.Email)); email != "" && email != staff.Email {
		if existing, err := s.staff.GetByEmail(ctx, email); err == nil && existing.ID != staff.ID {
			return nil, apperrors.NewConflict("staff email already exists", map[string]any{"email": email})
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.MapError(err)
		}
		staff.Email = email
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		staff.Name = name
	}
	if input.Role != "" {
		if !input.Role.Valid() {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": input.Role})
		}
		staff.Role = input.Role
	}
	if input.SectorID != nil {
		staff.SectorID = input.SectorID
	}
	if input.Active != nil {
		staff.Active = *input.Active
		if !staff.Active {
			staff.OnDuty = false
		}
	}
	if input.Password != "" {
		if err := auth.ValidatePassword(input.Password); err != nil {
			return nil, apperrors.NewValidationError(err.Error(), nil)
		}
		hash, err := auth.HashPassword(input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		staff.PasswordHash = hash
	}

	if err := s.staff.Update(ctx, staff); err != nil {
		return nil, mapRepoError(err, "staff", map[string]any{"staff_id": staffID})
	}
	return staff, nil
}

// SetOnDuty toggles whether the agent receives new escalation notifications.
func (s *StaffService) SetOnDuty(ctx context.Context, staffID string, onDuty bool) (*domain.StaffMember, error) {
	staff, err := s.GetStaffMemberByID(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if onDuty && !staff.Active {
		return nil, apperrors.NewInvalidState("inactive staff cannot go on duty", map[string]any{"staff_id": staffID})
	}
	staff.OnDuty = onDuty
	if err := s.staff.Update(ctx, staff); err != nil {
		return nil, mapRepoError(err, "staff", map[string]any{"staff_id": staffID})
	}
	return staff, nil
}

// EnsureAdmin creates an admin account for email unless one already exists.
// It reports whether an account was created.
func (s *StaffService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.staff.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	bootstrap := &domain.StaffMember{ID: "bootstrap", Role: domain.StaffRoleAdmin}
	if _, err := s.CreateStaffMember(ctx, bootstrap, StaffInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     domain.StaffRoleAdmin,
	}); err != nil {
		return false, err
	}
	return true, nil
}
