package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/events"
	"github.com/spec-kit/sla-escalation-service/internal/push"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

func TestConcurrentAcceptHasSingleWinner(t *testing.T) {
	f := newFixture(t)
	item := f.enqueue(t, "conv-1", 2)

	const agents = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		lost    int
	)
	start := make(chan struct{})
	for i := 0; i < agents; i++ {
		wg.Add(1)
		userID := fmt.Sprintf("agent-%d", i)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.escalations.Accept(context.Background(), item.ID, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, userID)
			case apperrors.HasCode(err, apperrors.CodeAlreadyAssigned):
				lost++
			default:
				t.Errorf("unexpected error for %s: %v", userID, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 || lost != agents-1 {
		t.Fatalf("winners = %v lost = %d", winners, lost)
	}

	stored, err := f.escalations.Get(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != domain.EscalationStatusAssigned || stored.AssignedTo == nil || *stored.AssignedTo != winners[0] {
		t.Fatalf("stored item = %+v, winner %s", stored, winners[0])
	}

	assignment, err := f.repos.Assignments.Get(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("assignment: %v", err)
	}
	if assignment.AgentID == nil || *assignment.AgentID != winners[0] {
		t.Fatalf("assignment agent = %v, want %s", assignment.AgentID, winners[0])
	}
	if assignment.EscalationID == nil || *assignment.EscalationID != item.ID {
		t.Fatalf("assignment escalation = %v", assignment.EscalationID)
	}
}

func TestAcceptUnknownItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.escalations.Accept(context.Background(), "missing", "agent-1")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestListOrdersByPriorityThenAge(t *testing.T) {
	f := newFixture(t)
	low := f.enqueue(t, "conv-low", 1)
	f.clock.Advance(time.Second)
	high := f.enqueue(t, "conv-high", 3)
	f.clock.Advance(time.Second)
	lowLater := f.enqueue(t, "conv-low-2", 1)

	items, err := f.escalations.List(context.Background(), EscalationListFilter{
		Statuses: []domain.EscalationStatus{domain.EscalationStatusPending},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{high.ID, low.ID, lowLater.ID}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("position %d = %s (priority %d), want %s", i, items[i].ID, items[i].Priority, id)
		}
	}
}

func TestEnqueueRejectsSecondActiveItem(t *testing.T) {
	f := newFixture(t)
	first := f.enqueue(t, "conv-1", 1)

	_, err := f.escalations.Enqueue(context.Background(), events.SystemActor, EnqueueInput{
		ConversationID: "conv-1",
		Priority:       5,
		Reason:         "again",
	})
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("err = %v, want CONFLICT", err)
	}

	if _, err := f.escalations.Resolve(context.Background(), events.SystemActor, first.ID, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	f.enqueue(t, "conv-1", 1)
}

func TestEnqueueValidation(t *testing.T) {
	f := newFixture(t)
	past := t0.Add(-time.Minute)
	cases := []struct {
		name  string
		input EnqueueInput
	}{
		{"missing conversation", EnqueueInput{Reason: "r"}},
		{"missing reason", EnqueueInput{ConversationID: "c"}},
		{"negative ttl", EnqueueInput{ConversationID: "c", Reason: "r", TTL: -time.Second}},
		{"expiry in the past", EnqueueInput{ConversationID: "c", Reason: "r", ExpiresAt: &past}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.escalations.Enqueue(context.Background(), events.SystemActor, tc.input)
			if !apperrors.HasCode(err, apperrors.CodeValidation) {
				t.Fatalf("err = %v, want VALIDATION_FAILED", err)
			}
		})
	}
}

func TestEnqueueNotifiesOnDutyAgentsInSector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	billing := strPtr("billing")
	onDuty := f.addStaff(t, "ana", billing, true)
	offDuty := f.addStaff(t, "bo", billing, false)
	otherSector := f.addStaff(t, "cy", strPtr("sales"), true)

	item, err := f.escalations.Enqueue(ctx, events.SystemActor, EnqueueInput{
		ConversationID: "conv-1",
		Priority:       2,
		Reason:         "refund",
		SectorID:       billing,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	notes, err := f.repos.Notifications.ListByUser(ctx, onDuty.ID, repository.NotificationFilter{})
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(notes) != 1 || notes[0].EscalationID != item.ID || notes[0].NotificationType != domain.NotificationNewEscalation {
		t.Fatalf("on-duty notifications = %+v", notes)
	}
	if msgs := f.publisher.onChannel(push.UserChannel(onDuty.ID)); len(msgs) != 1 || msgs[0].Type != PushNotificationCreated {
		t.Fatalf("on-duty push messages = %+v", msgs)
	}

	for _, staff := range []*domain.StaffMember{offDuty, otherSector} {
		count, err := f.repos.Notifications.CountUnread(ctx, staff.ID)
		if err != nil {
			t.Fatalf("CountUnread: %v", err)
		}
		if count != 0 {
			t.Fatalf("%s received %d notifications", staff.Name, count)
		}
		if msgs := f.publisher.onChannel(push.UserChannel(staff.ID)); len(msgs) != 0 {
			t.Fatalf("%s received push messages: %+v", staff.Name, msgs)
		}
	}
}

func TestEnqueueNotifiesEveryOnDutyAgentAcrossPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.escalations.onDutyPage = 2
	sector := strPtr("support")

	var agents []*domain.StaffMember
	for i := 0; i < 5; i++ {
		agents = append(agents, f.addStaff(t, fmt.Sprintf("agent%d", i), sector, true))
	}

	item, err := f.escalations.Enqueue(ctx, events.SystemActor, EnqueueInput{
		ConversationID: "conv-paged",
		Priority:       1,
		Reason:         "escalated",
		SectorID:       sector,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	for _, agent := range agents {
		notes, err := f.repos.Notifications.ListByUser(ctx, agent.ID, repository.NotificationFilter{})
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if len(notes) != 1 || notes[0].EscalationID != item.ID {
			t.Fatalf("%s notifications = %+v", agent.Name, notes)
		}
	}
}

func TestTransferNotifiesOnlyNewHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.addStaff(t, "ana", nil, false)
	to := f.addStaff(t, "bo", nil, false)
	item := f.enqueue(t, "conv-1", 1)

	if _, err := f.escalations.Accept(ctx, item.ID, from.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	transferred, err := f.escalations.Transfer(ctx, events.SystemActor, item.ID, from.ID, to.ID)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if transferred.AssignedTo == nil || *transferred.AssignedTo != to.ID || transferred.Status != domain.EscalationStatusAssigned {
		t.Fatalf("unexpected item after transfer: %+v", transferred)
	}

	toNotes, _ := f.repos.Notifications.ListByUser(ctx, to.ID, repository.NotificationFilter{})
	if len(toNotes) != 1 || toNotes[0].NotificationType != domain.NotificationReassignment {
		t.Fatalf("new holder notifications = %+v", toNotes)
	}
	fromNotes, _ := f.repos.Notifications.ListByUser(ctx, from.ID, repository.NotificationFilter{})
	if len(fromNotes) != 0 {
		t.Fatalf("previous holder notifications = %+v", fromNotes)
	}

	assignment, err := f.repos.Assignments.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("assignment: %v", err)
	}
	if assignment.AgentID == nil || *assignment.AgentID != to.ID {
		t.Fatalf("assignment agent = %v, want %s", assignment.AgentID, to.ID)
	}
}

func TestTransferRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	holder := f.addStaff(t, "ana", nil, false)
	other := f.addStaff(t, "bo", nil, false)
	target := f.addStaff(t, "cy", nil, false)
	item := f.enqueue(t, "conv-1", 1)

	if _, err := f.escalations.Transfer(ctx, events.SystemActor, item.ID, holder.ID, target.ID); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("pending transfer err = %v, want INVALID_STATE", err)
	}
	if _, err := f.escalations.Accept(ctx, item.ID, holder.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := f.escalations.Transfer(ctx, events.SystemActor, item.ID, other.ID, target.ID); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("wrong holder err = %v, want INVALID_STATE", err)
	}
	if _, err := f.escalations.Transfer(ctx, events.SystemActor, item.ID, holder.ID, holder.ID); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("self transfer err = %v, want VALIDATION_FAILED", err)
	}
	if _, err := f.escalations.Transfer(ctx, events.SystemActor, item.ID, holder.ID, "ghost"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("unknown target err = %v, want NOT_FOUND", err)
	}

	stored, _ := f.escalations.Get(ctx, item.ID)
	if *stored.AssignedTo != holder.ID {
		t.Fatalf("holder changed to %s", *stored.AssignedTo)
	}
}

func TestResolveRecordsResolverAndClearsAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.enqueue(t, "conv-1", 1)
	if _, err := f.escalations.Accept(ctx, item.ID, "agent-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	f.clock.Advance(10 * time.Minute)

	resolved, err := f.escalations.Resolve(ctx, staffActor("agent-1"), item.ID, strPtr("refund issued"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != domain.EscalationStatusResolved || resolved.AssignedTo != nil {
		t.Fatalf("unexpected resolved item: %+v", resolved)
	}
	if resolved.ResolvedBy == nil || *resolved.ResolvedBy != "agent-1" {
		t.Fatalf("resolved_by = %v", resolved.ResolvedBy)
	}
	if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(t0.Add(10*time.Minute)) {
		t.Fatalf("resolved_at = %v", resolved.ResolvedAt)
	}
	if resolved.ResolutionNotes == nil || *resolved.ResolutionNotes != "refund issued" {
		t.Fatalf("notes = %v", resolved.ResolutionNotes)
	}

	assignment, err := f.repos.Assignments.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("assignment: %v", err)
	}
	if assignment.AgentID != nil || assignment.EscalationID != nil {
		t.Fatalf("assignment not cleared: %+v", assignment)
	}

	if _, err := f.escalations.Resolve(ctx, events.SystemActor, item.ID, nil); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("second resolve err = %v, want INVALID_STATE", err)
	}
}

func TestAbandonOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assigned := f.enqueue(t, "conv-1", 1)
	if _, err := f.escalations.Accept(ctx, assigned.ID, "agent-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := f.escalations.Abandon(ctx, events.SystemActor, assigned.ID); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("err = %v, want INVALID_STATE", err)
	}

	pending := f.enqueue(t, "conv-2", 1)
	abandoned, err := f.escalations.Abandon(ctx, events.SystemActor, pending.ID)
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if abandoned.Status != domain.EscalationStatusAbandoned || abandoned.ResolvedAt == nil {
		t.Fatalf("unexpected abandoned item: %+v", abandoned)
	}
}

func TestExpireHonoursExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.escalations.Enqueue(ctx, events.SystemActor, EnqueueInput{
		ConversationID: "conv-1",
		Priority:       1,
		Reason:         "waiting",
		TTL:            5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if item.ExpiresAt == nil || !item.ExpiresAt.Equal(t0.Add(5*time.Minute)) {
		t.Fatalf("expires_at = %v", item.ExpiresAt)
	}

	if _, err := f.escalations.Expire(ctx, events.SystemActor, item.ID); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("early expire err = %v, want INVALID_STATE", err)
	}

	f.clock.Advance(5 * time.Minute)
	expired, err := f.escalations.Expire(ctx, events.SystemActor, item.ID)
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if expired.Status != domain.EscalationStatusExpired {
		t.Fatalf("status = %s", expired.Status)
	}
}

func TestExpireDueSkipsAssignedAndFreshItems(t *testing.T) {
	f := newFixture(t)
	f.escalations.defaultTTL = time.Minute
	ctx := context.Background()

	stale := f.enqueue(t, "conv-stale", 1)
	held := f.enqueue(t, "conv-held", 1)
	if _, err := f.escalations.Accept(ctx, held.ID, "agent-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	f.clock.Advance(30 * time.Second)
	fresh := f.enqueue(t, "conv-fresh", 1)
	f.clock.Advance(45 * time.Second)

	expired, err := f.escalations.ExpireDue(ctx)
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != stale.ID {
		t.Fatalf("expired = %+v, want only %s", expired, stale.ID)
	}
	for id, want := range map[string]domain.EscalationStatus{
		held.ID:  domain.EscalationStatusAssigned,
		fresh.ID: domain.EscalationStatusPending,
	} {
		item, err := f.escalations.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if item.Status != want {
			t.Fatalf("item %s status = %s, want %s", id, item.Status, want)
		}
	}

	// The conversation may queue again once its item expired.
	f.enqueue(t, "conv-stale", 1)
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, string, string, domain.NotificationType) (*domain.EscalationNotification, error) {
	return nil, errors.New("notification store unavailable")
}

func TestNotificationFailureDoesNotUndoTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewEscalationService(EscalationDependencies{
		EscalationRepo: f.repos.Escalations,
		AssignmentRepo: f.repos.Assignments,
		StaffRepo:      f.repos.Staff,
		Notifier:       failingNotifier{},
		Dispatcher:     f.dispatcher,
		Now:            f.clock.Now,
	})
	from := f.addStaff(t, "ana", nil, true)
	to := f.addStaff(t, "bo", nil, true)

	item, err := svc.Enqueue(ctx, events.SystemActor, EnqueueInput{ConversationID: "conv-1", Priority: 1, Reason: "help"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := svc.Accept(ctx, item.ID, from.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	transferred, err := svc.Transfer(ctx, events.SystemActor, item.ID, from.ID, to.ID)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if *transferred.AssignedTo != to.ID {
		t.Fatalf("assigned_to = %s", *transferred.AssignedTo)
	}
}

func TestEscalationEventsCarryPreviousHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var (
		mu       sync.Mutex
		received []events.Event
	)
	f.dispatcher.Subscribe(events.EventEscalationTransferred, func(_ context.Context, event events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	})

	from := f.addStaff(t, "ana", nil, false)
	to := f.addStaff(t, "bo", nil, false)
	item := f.enqueue(t, "conv-1", 1)
	if _, err := f.escalations.Accept(ctx, item.ID, from.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := f.escalations.Transfer(ctx, staffActor(from.ID), item.ID, from.ID, to.ID); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("transferred events = %d", len(received))
	}
	payload, ok := received[0].Payload.(events.EscalationPayload)
	if !ok {
		t.Fatalf("payload type %T", received[0].Payload)
	}
	if payload.PreviousHolder == nil || *payload.PreviousHolder != from.ID {
		t.Fatalf("previous holder = %v", payload.PreviousHolder)
	}
	if payload.AssignedTo == nil || *payload.AssignedTo != to.ID {
		t.Fatalf("assigned_to = %v", payload.AssignedTo)
	}
}
