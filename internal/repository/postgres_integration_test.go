//go:build integration

package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/persistence"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
)

// Run with: POSTGRES_DSN=postgres://... go test -tags integration ./internal/repository/
func newPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := persistence.RunMigrations(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return pool
}

func conversationID() string {
	return "it-" + uuid.NewString()
}

func createTicket(t *testing.T, tickets repository.TicketRepository, conv string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{ConversationID: conv, Priority: domain.TicketPriorityHigh, Status: domain.TicketStatusOpen}
	if err := tickets.Create(context.Background(), ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestPostgresTicketsOneActivePerConversation(t *testing.T) {
	ctx := context.Background()
	tickets := repository.NewTicketRepository(newPool(t))
	conv := conversationID()

	first := createTicket(t, tickets, conv)
	second := &domain.Ticket{ConversationID: conv, Priority: domain.TicketPriorityLow, Status: domain.TicketStatusOpen}
	if err := tickets.Create(ctx, second); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	if _, err := tickets.Close(ctx, first.ID, time.Now()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := tickets.Close(ctx, first.ID, time.Now()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second close err = %v, want ErrNotFound", err)
	}
	if err := tickets.Create(ctx, second); err != nil {
		t.Fatalf("create after close: %v", err)
	}
	if second.Sequence != first.Sequence+1 {
		t.Fatalf("sequence = %d, want %d", second.Sequence, first.Sequence+1)
	}
}

func TestPostgresStampViolationAndDedupe(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)
	tickets := repository.NewTicketRepository(pool)
	violations := repository.NewSLAViolationRepository(pool)
	ticket := createTicket(t, tickets, conversationID())

	now := time.Now().UTC()
	if ok, err := tickets.StampViolation(ctx, ticket.ID, now); err != nil || !ok {
		t.Fatalf("first stamp = %v, %v", ok, err)
	}
	if ok, err := tickets.StampViolation(ctx, ticket.ID, now); err != nil || ok {
		t.Fatalf("second stamp = %v, %v", ok, err)
	}

	v := &domain.SLAViolation{
		TicketID:      ticket.ID,
		ViolationType: domain.ViolationFirstResponse,
		ExpectedAt:    now.Add(-time.Minute),
		ViolatedAt:    now,
	}
	if written, err := violations.Create(ctx, v); err != nil || !written {
		t.Fatalf("first violation = %v, %v", written, err)
	}
	dup := *v
	dup.ID = ""
	if written, err := violations.Create(ctx, &dup); err != nil || written {
		t.Fatalf("duplicate violation = %v, %v", written, err)
	}
	stored, err := violations.ListByTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("ListByTicket: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("violations = %+v", stored)
	}
}

func TestPostgresSecondAcceptLoses(t *testing.T) {
	ctx := context.Background()
	escalations := repository.NewEscalationRepository(newPool(t))

	item := &domain.EscalationQueueItem{
		ConversationID: conversationID(),
		Priority:       2,
		Reason:         "customer asked for a human",
		Status:         domain.EscalationStatusPending,
	}
	if err := escalations.Create(ctx, item); err != nil {
		t.Fatalf("Create: %v", err)
	}
	twin := &domain.EscalationQueueItem{ConversationID: item.ConversationID, Reason: "again", Status: domain.EscalationStatusPending}
	if err := escalations.Create(ctx, twin); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate enqueue err = %v, want ErrDuplicate", err)
	}

	accepted, err := escalations.Accept(ctx, item.ID, "agent-a", time.Now())
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.AssignedTo == nil || *accepted.AssignedTo != "agent-a" {
		t.Fatalf("assigned to %v", accepted.AssignedTo)
	}
	if _, err := escalations.Accept(ctx, item.ID, "agent-b", time.Now()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second accept err = %v, want ErrNotFound", err)
	}
}

func TestPostgresMalformedIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)
	tickets := repository.NewTicketRepository(pool)
	escalations := repository.NewEscalationRepository(pool)
	notifications := repository.NewNotificationRepository(pool)
	violations := repository.NewSLAViolationRepository(pool)

	if _, err := tickets.GetByID(ctx, "not-a-uuid"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("GetByID err = %v, want ErrNotFound", err)
	}
	if _, err := escalations.Accept(ctx, "not-a-uuid", "agent-a", time.Now()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Accept err = %v, want ErrNotFound", err)
	}
	if err := notifications.MarkRead(ctx, "agent-a", "not-a-uuid", time.Now()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("MarkRead err = %v, want ErrNotFound", err)
	}
	list, err := violations.ListByTicket(ctx, "not-a-uuid")
	if err != nil || len(list) != 0 {
		t.Fatalf("ListByTicket = %+v, %v", list, err)
	}
}
