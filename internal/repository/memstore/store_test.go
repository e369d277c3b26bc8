package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestRepos() Repositories {
	return New(WithClock(func() time.Time { return testNow })).Repositories()
}

func TestTicketsAllowOneActivePerConversation(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos()

	first := &domain.Ticket{ConversationID: "conv-1", Priority: domain.TicketPriorityHigh, Status: domain.TicketStatusOpen}
	if err := repos.Tickets.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	second := &domain.Ticket{ConversationID: "conv-1", Priority: domain.TicketPriorityHigh, Status: domain.TicketStatusOpen}
	if err := repos.Tickets.Create(ctx, second); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	if _, err := repos.Tickets.Close(ctx, first.ID, testNow); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := repos.Tickets.Close(ctx, first.ID, testNow); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second close err = %v, want ErrNotFound", err)
	}
	if err := repos.Tickets.Create(ctx, second); err != nil {
		t.Fatalf("Create after close: %v", err)
	}
	if second.Sequence != 2 {
		t.Fatalf("sequence = %d, want 2", second.Sequence)
	}
}

func TestMarkFirstResponseAppliesOnce(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos()
	ticket := &domain.Ticket{ConversationID: "conv-1", Priority: domain.TicketPriorityLow, Status: domain.TicketStatusOpen}
	if err := repos.Tickets.Create(ctx, ticket); err != nil {
		t.Fatalf("Create: %v", err)
	}

	marked, err := repos.Tickets.MarkFirstResponse(ctx, ticket.ID, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkFirstResponse: %v", err)
	}
	if marked.Status != domain.TicketStatusInProgress {
		t.Fatalf("status = %s", marked.Status)
	}
	if _, err := repos.Tickets.MarkFirstResponse(ctx, ticket.ID, testNow.Add(2*time.Minute)); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStampViolationOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos()
	ticket := &domain.Ticket{ConversationID: "conv-1", Priority: domain.TicketPriorityLow, Status: domain.TicketStatusOpen}
	if err := repos.Tickets.Create(ctx, ticket); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ok, err := repos.Tickets.StampViolation(ctx, ticket.ID, testNow); err != nil || !ok {
		t.Fatalf("first stamp = %v, %v", ok, err)
	}
	if ok, err := repos.Tickets.StampViolation(ctx, ticket.ID, testNow); err != nil || ok {
		t.Fatalf("second stamp = %v, %v", ok, err)
	}
	pending, err := repos.Tickets.ListUnviolatedActive(ctx)
	if err != nil {
		t.Fatalf("ListUnviolatedActive: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("stamped ticket still listed: %+v", pending)
	}
}

func TestViolationsDeduplicatePerType(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos()
	record := func(kind domain.ViolationType) bool {
		t.Helper()
		created, err := repos.Violations.Create(ctx, &domain.SLAViolation{
			TicketID:      "ticket-1",
			ViolationType: kind,
			ExpectedAt:    testNow,
			ViolatedAt:    testNow,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return created
	}

	if !record(domain.ViolationFirstResponse) {
		t.Fatalf("first insert not created")
	}
	if record(domain.ViolationFirstResponse) {
		t.Fatalf("duplicate insert created")
	}
	if !record(domain.ViolationResolution) {
		t.Fatalf("second type not created")
	}
	all, _ := repos.Violations.ListByTicket(ctx, "ticket-1")
	if len(all) != 2 {
		t.Fatalf("violations = %d, want 2", len(all))
	}
}

func TestEscalationConditionalWrites(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos()
	item := &domain.EscalationQueueItem{ConversationID: "conv-1", Priority: 1, Reason: "r", Status: domain.EscalationStatusPending}
	if err := repos.Escalations.Create(ctx, item); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := &domain.EscalationQueueItem{ConversationID: "conv-1", Priority: 1, Reason: "r", Status: domain.EscalationStatusPending}
	if err := repos.Escalations.Create(ctx, dup); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	if _, err := repos.Escalations.Accept(ctx, item.ID, "agent-1", testNow); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := repos.Escalations.Accept(ctx, item.ID, "agent-2", testNow); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second accept err = %v, want ErrNotFound", err)
	}
	if _, err := repos.Escalations.Transfer(ctx, item.ID, "agent-2", "agent-3", testNow); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("transfer from non-holder err = %v, want ErrNotFound", err)
	}
	if _, err := repos.Escalations.Abandon(ctx, item.ID, testNow); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("abandon assigned err = %v, want ErrNotFound", err)
	}

	resolved, err := repos.Escalations.Resolve(ctx, item.ID, nil, testNow)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.AssignedTo != nil || resolved.ResolvedBy == nil || *resolved.ResolvedBy != "agent-1" {
		t.Fatalf("unexpected resolved item: %+v", resolved)
	}
	if err := repos.Escalations.Create(ctx, dup); err != nil {
		t.Fatalf("Create after resolve: %v", err)
	}
}

func TestNotificationUpsertKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos()
	first := &domain.EscalationNotification{EscalationID: "esc-1", UserID: "agent-1", NotificationType: domain.NotificationNewEscalation}
	if err := repos.Notifications.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repos.Notifications.Dismiss(ctx, "agent-1", first.ID, testNow); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	again := &domain.EscalationNotification{EscalationID: "esc-1", UserID: "agent-1", NotificationType: domain.NotificationNewEscalation}
	if err := repos.Notifications.Upsert(ctx, again); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if again.ID != first.ID || again.DismissedAt != nil {
		t.Fatalf("upsert did not reuse and re-arm the row: %+v", again)
	}
	rows, _ := repos.Notifications.ListByUser(ctx, "agent-1", repository.NotificationFilter{IncludeRead: true, IncludeDismissed: true})
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}

func TestStaffEmailIsUniqueIgnoringCase(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos()
	if err := repos.Staff.Create(ctx, &domain.StaffMember{Name: "Ana", Email: "ana@example.com", Role: domain.StaffRoleAgent, Active: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repos.Staff.Create(ctx, &domain.StaffMember{Name: "Ana", Email: "ANA@example.com", Role: domain.StaffRoleAgent, Active: true})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}
