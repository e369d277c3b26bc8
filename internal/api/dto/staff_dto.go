package dto

import (
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// StaffLoginRequest payload.
type StaffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StaffCreateRequest payload for admins creating staff.
type StaffCreateRequest struct {
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     domain.StaffRole `json:"role"`
	SectorID *string          `json:"sector_id"`
}

// StaffUpdateRequest payload for admins updating staff.
type StaffUpdateRequest struct {
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     domain.StaffRole `json:"role"`
	SectorID *string          `json:"sector_id"`
	Active   *bool            `json:"active"`
}

// DutyRequest toggles the caller's on-duty flag.
type DutyRequest struct {
	OnDuty *bool `json:"on_duty"`
}

// StaffResponse describes a staff member.
type StaffResponse struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Role     domain.StaffRole `json:"role"`
	SectorID *string          `json:"sector_id"`
	OnDuty   bool             `json:"on_duty"`
	Active   bool             `json:"active"`
}
