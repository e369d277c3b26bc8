package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/events"
	"github.com/spec-kit/sla-escalation-service/internal/push"
	"github.com/spec-kit/sla-escalation-service/internal/repository/memstore"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingPublisher captures push messages.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []push.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg push.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) onChannel(channel string) []push.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []push.Message
	for _, msg := range p.messages {
		if msg.Channel == channel {
			out = append(out, msg)
		}
	}
	return out
}

type fixture struct {
	clock         *fakeClock
	repos         memstore.Repositories
	dispatcher    events.Dispatcher
	publisher     *recordingPublisher
	configs       *SLAConfigService
	tickets       *TicketService
	scanner       *SLAScanner
	notifications *NotificationService
	escalations   *EscalationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: t0}
	repos := memstore.New(memstore.WithClock(clock.Now)).Repositories()
	dispatcher := events.NewInMemoryDispatcher(nil)
	publisher := &recordingPublisher{}

	f := &fixture{
		clock:      clock,
		repos:      repos,
		dispatcher: dispatcher,
		publisher:  publisher,
	}
	f.configs = NewSLAConfigService(repos.SLAConfigs, nil)
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo:    repos.Tickets,
		EventRepo:     repos.TicketEvents,
		ViolationRepo: repos.Violations,
		Dispatcher:    dispatcher,
		Now:           clock.Now,
	})
	f.scanner = NewSLAScanner(SLAScannerDependencies{
		TicketRepo:    repos.Tickets,
		ViolationRepo: repos.Violations,
		ConfigRepo:    repos.SLAConfigs,
		Dispatcher:    dispatcher,
		Now:           clock.Now,
	})
	f.notifications = NewNotificationService(NotificationDependencies{
		NotificationRepo: repos.Notifications,
		EscalationRepo:   repos.Escalations,
		Publisher:        publisher,
		Dispatcher:       dispatcher,
		Now:              clock.Now,
	})
	f.notifications.RegisterHandlers()
	f.escalations = NewEscalationService(EscalationDependencies{
		EscalationRepo: repos.Escalations,
		AssignmentRepo: repos.Assignments,
		StaffRepo:      repos.Staff,
		Notifier:       f.notifications,
		Dispatcher:     dispatcher,
		Now:            clock.Now,
	})
	return f
}

func (f *fixture) setConfig(t *testing.T, priority domain.TicketPriority, firstResponse, resolution int) {
	t.Helper()
	if _, err := f.configs.Upsert(context.Background(), priority, firstResponse, resolution); err != nil {
		t.Fatalf("Upsert %s: %v", priority, err)
	}
}

func (f *fixture) openTicket(t *testing.T, conversationID string, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Open(context.Background(), events.SystemActor, TicketOpenInput{
		ConversationID: conversationID,
		Priority:       priority,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return ticket
}

func (f *fixture) addStaff(t *testing.T, name string, sector *string, onDuty bool) *domain.StaffMember {
	t.Helper()
	staff := &domain.StaffMember{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         domain.StaffRoleAgent,
		SectorID:     sector,
		OnDuty:       onDuty,
		Active:       true,
	}
	if err := f.repos.Staff.Create(context.Background(), staff); err != nil {
		t.Fatalf("create staff: %v", err)
	}
	return staff
}

func (f *fixture) enqueue(t *testing.T, conversationID string, priority int) *domain.EscalationQueueItem {
	t.Helper()
	item, err := f.escalations.Enqueue(context.Background(), events.SystemActor, EnqueueInput{
		ConversationID: conversationID,
		Priority:       priority,
		Reason:         "customer asked for a human",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return item
}

func strPtr(s string) *string { return &s }
