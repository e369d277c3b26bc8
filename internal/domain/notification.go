package domain

import "time"

// NotificationType identifies why a user was notified about an escalation.
type NotificationType string

const (
	NotificationNewEscalation NotificationType = "new_escalation"
	NotificationReassignment  NotificationType = "reassignment"
	NotificationSLAViolation  NotificationType = "sla_violation"
)

// EscalationNotification is one row per (escalation, user, type).
type EscalationNotification struct {
	ID               string
	EscalationID     string
	UserID           string
	NotificationType NotificationType
	ReadAt           *time.Time
	DismissedAt      *time.Time
	CreatedAt        time.Time
}

// ConversationAssignment is the assignment projection shared with conversation owners.
type ConversationAssignment struct {
	ConversationID string
	AgentID        *string
	EscalationID   *string
	UpdatedAt      time.Time
}
