package dto

import (
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// SLAConfigRequest payload for PUT /sla/configs/:priority.
type SLAConfigRequest struct {
	FirstResponseMinutes int `json:"first_response_minutes"`
	ResolutionMinutes    int `json:"resolution_minutes"`
}

// SLAConfigResponse describes deadlines for one priority.
type SLAConfigResponse struct {
	Priority             domain.TicketPriority `json:"priority"`
	FirstResponseMinutes int                   `json:"first_response_minutes"`
	ResolutionMinutes    int                   `json:"resolution_minutes"`
	UpdatedAt            time.Time             `json:"updated_at"`
}
