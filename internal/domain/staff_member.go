package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent      StaffRole = "AGENT"
	StaffRoleSupervisor StaffRole = "SUPERVISOR"
	StaffRoleAdmin      StaffRole = "ADMIN"
)

// Valid reports whether the role is known.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleAgent, StaffRoleSupervisor, StaffRoleAdmin:
		return true
	}
	return false
}

// StaffMember models a support agent or administrator.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	SectorID     *string
	OnDuty       bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
