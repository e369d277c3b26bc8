package dto

import (
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// NotificationResponse describes an escalation notification.
type NotificationResponse struct {
	ID               string                  `json:"id"`
	EscalationID     string                  `json:"escalation_id"`
	NotificationType domain.NotificationType `json:"notification_type"`
	ReadAt           *time.Time              `json:"read_at"`
	DismissedAt      *time.Time              `json:"dismissed_at"`
	CreatedAt        time.Time               `json:"created_at"`
}
