package dto

import (
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// EnqueueEscalationRequest payload for POST /escalations. ExpiresAt wins over TTLSeconds.
type EnqueueEscalationRequest struct {
	ConversationID string         `json:"conversation_id"`
	Priority       int            `json:"priority"`
	Reason         string         `json:"reason"`
	SectorID       *string        `json:"sector_id"`
	ExpiresAt      *time.Time     `json:"expires_at"`
	TTLSeconds     int            `json:"ttl_seconds"`
	Metadata       map[string]any `json:"metadata"`
}

// TransferEscalationRequest payload. FromUserID defaults to the caller.
type TransferEscalationRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
}

// ResolveEscalationRequest payload.
type ResolveEscalationRequest struct {
	Notes *string `json:"notes"`
}

// EscalationResponse describes a queue item.
type EscalationResponse struct {
	ID              string                  `json:"id"`
	ConversationID  string                  `json:"conversation_id"`
	SectorID        *string                 `json:"sector_id"`
	Priority        int                     `json:"priority"`
	Reason          string                  `json:"reason"`
	Status          domain.EscalationStatus `json:"status"`
	AssignedTo      *string                 `json:"assigned_to"`
	AssignedAt      *time.Time              `json:"assigned_at"`
	ResolvedAt      *time.Time              `json:"resolved_at"`
	ResolvedBy      *string                 `json:"resolved_by"`
	ResolutionNotes *string                 `json:"resolution_notes"`
	Metadata        map[string]any          `json:"metadata,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	ExpiresAt       *time.Time              `json:"expires_at"`
}
