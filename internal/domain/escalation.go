package domain

import "time"

// EscalationStatus enumerates queue item states.
type EscalationStatus string

const (
	EscalationStatusPending   EscalationStatus = "pending"
	EscalationStatusAssigned  EscalationStatus = "assigned"
	EscalationStatusResolved  EscalationStatus = "resolved"
	EscalationStatusAbandoned EscalationStatus = "abandoned"
	EscalationStatusExpired   EscalationStatus = "expired"
)

// IsTerminal reports whether no further transitions are expected from the status.
func (s EscalationStatus) IsTerminal() bool {
	switch s {
	case EscalationStatusResolved, EscalationStatusAbandoned, EscalationStatusExpired:
		return true
	}
	return false
}

// ActiveEscalationStatuses are the states in which a conversation holds its queue slot.
var ActiveEscalationStatuses = []EscalationStatus{EscalationStatusPending, EscalationStatusAssigned}

// EscalationQueueItem is a conversation waiting for, or held by, a human agent.
// AssignedTo is set exactly while Status is assigned; terminal transitions keep
// the last holder in ResolvedBy.
type EscalationQueueItem struct {
	ID              string
	ConversationID  string
	SectorID        *string
	Priority        int
	Reason          string
	Status          EscalationStatus
	AssignedTo      *string
	AssignedAt      *time.Time
	ResolvedAt      *time.Time
	ResolvedBy      *string
	ResolutionNotes *string
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       *time.Time
}

// ExpiredAt reports whether a pending item's expiry has passed at now.
func (e *EscalationQueueItem) ExpiredAt(now time.Time) bool {
	return e.Status == EscalationStatusPending && e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// QueueLess orders queue items: higher priority first, then oldest first, then id.
func QueueLess(a, b *EscalationQueueItem) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
