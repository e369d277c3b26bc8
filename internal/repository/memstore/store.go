// Package memstore keeps every repository in process memory. It backs local
// development when no Postgres DSN is configured and the service tests; the
// conditional-write semantics match the SQL implementations.
package memstore

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
)

// Store holds all tables behind a single mutex.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	tickets       map[string]domain.Ticket
	ticketEvents  []domain.TicketEvent
	configs       map[domain.TicketPriority]domain.SLAConfig
	violations    []domain.SLAViolation
	escalations   map[string]domain.EscalationQueueItem
	notifications map[string]domain.EscalationNotification
	assignments   map[string]domain.ConversationAssignment
	staff         map[string]domain.StaffMember
}

// Option customises a Store.
type Option func(*Store)

// WithClock sets the clock used for database-side timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultSLAConfigs seeds the deadlines shipped with the SQL migrations.
func WithDefaultSLAConfigs() Option {
	return func(s *Store) {
		now := s.now()
		for _, cfg := range []domain.SLAConfig{
			{Priority: domain.TicketPriorityHigh, FirstResponseMinutes: 15, ResolutionMinutes: 240},
			{Priority: domain.TicketPriorityMedium, FirstResponseMinutes: 60, ResolutionMinutes: 1440},
			{Priority: domain.TicketPriorityLow, FirstResponseMinutes: 240, ResolutionMinutes: 4320},
		} {
			cfg.ID = newID()
			cfg.CreatedAt = now
			cfg.UpdatedAt = now
			s.configs[cfg.Priority] = cfg
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:           func() time.Time { return time.Now().UTC() },
		tickets:       make(map[string]domain.Ticket),
		configs:       make(map[domain.TicketPriority]domain.SLAConfig),
		escalations:   make(map[string]domain.EscalationQueueItem),
		notifications: make(map[string]domain.EscalationNotification),
		assignments:   make(map[string]domain.ConversationAssignment),
		staff:         make(map[string]domain.StaffMember),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repositories bundles the store behind the repository interfaces.
type Repositories struct {
	Tickets       repository.TicketRepository
	TicketEvents  repository.TicketEventRepository
	SLAConfigs    repository.SLAConfigRepository
	Violations    repository.SLAViolationRepository
	Escalations   repository.EscalationRepository
	Notifications repository.NotificationRepository
	Assignments   repository.ConversationAssignmentRepository
	Staff         repository.StaffRepository
}

// Repositories returns interface views over s.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Tickets:       &ticketRepo{s},
		TicketEvents:  &ticketEventRepo{s},
		SLAConfigs:    &slaConfigRepo{s},
		Violations:    &violationRepo{s},
		Escalations:   &escalationRepo{s},
		Notifications: &notificationRepo{s},
		Assignments:   &assignmentRepo{s},
		Staff:         &staffRepo{s},
	}
}

func duplicate(constraint string) error {
	return fmt.Errorf("%w: %s", repository.ErrDuplicate, constraint)
}

func newID() string {
	return uuid.NewString()
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
