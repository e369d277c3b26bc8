package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/push"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

func TestMarkReadIsScopedToRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note, err := f.notifications.Notify(ctx, "esc-1", "agent-1", domain.NotificationNewEscalation)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if err := f.notifications.MarkRead(ctx, "agent-2", note.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if err := f.notifications.Dismiss(ctx, "agent-2", note.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}

	if err := f.notifications.MarkRead(ctx, "agent-1", note.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	count, err := f.notifications.CountUnread(ctx, "agent-1")
	if err != nil {
		t.Fatalf("CountUnread: %v", err)
	}
	if count != 0 {
		t.Fatalf("unread = %d, want 0", count)
	}

	msgs := f.publisher.onChannel(push.UserChannel("agent-1"))
	if len(msgs) != 2 || msgs[1].Type != PushNotificationsUpdated {
		t.Fatalf("push messages = %+v", msgs)
	}
	if len(f.publisher.onChannel(push.UserChannel("agent-2"))) != 0 {
		t.Fatalf("foreign user received push messages")
	}
}

func TestMarkAllReadAndDismissAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"esc-1", "esc-2", "esc-3"} {
		if _, err := f.notifications.Notify(ctx, id, "agent-1", domain.NotificationNewEscalation); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	if _, err := f.notifications.Notify(ctx, "esc-1", "agent-2", domain.NotificationNewEscalation); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if count, _ := f.notifications.CountUnread(ctx, "agent-1"); count != 3 {
		t.Fatalf("unread = %d, want 3", count)
	}
	marked, err := f.notifications.MarkAllRead(ctx, "agent-1")
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if marked != 3 {
		t.Fatalf("marked = %d, want 3", marked)
	}
	if again, _ := f.notifications.MarkAllRead(ctx, "agent-1"); again != 0 {
		t.Fatalf("second MarkAllRead = %d, want 0", again)
	}
	if count, _ := f.notifications.CountUnread(ctx, "agent-2"); count != 1 {
		t.Fatalf("other user's unread = %d, want 1", count)
	}

	unreadOnly, err := f.notifications.List(ctx, "agent-1", NotificationListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(unreadOnly) != 0 {
		t.Fatalf("unread list = %d, want 0", len(unreadOnly))
	}
	withRead, _ := f.notifications.List(ctx, "agent-1", NotificationListFilter{IncludeRead: true})
	if len(withRead) != 3 {
		t.Fatalf("list with read = %d, want 3", len(withRead))
	}

	dismissed, err := f.notifications.DismissAll(ctx, "agent-1")
	if err != nil {
		t.Fatalf("DismissAll: %v", err)
	}
	if dismissed != 3 {
		t.Fatalf("dismissed = %d, want 3", dismissed)
	}
	visible, _ := f.notifications.List(ctx, "agent-1", NotificationListFilter{IncludeRead: true})
	if len(visible) != 0 {
		t.Fatalf("visible after dismiss = %d", len(visible))
	}
}

func TestNotifyAgainRearmsNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.notifications.Notify(ctx, "esc-1", "agent-1", domain.NotificationReassignment)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := f.notifications.MarkRead(ctx, "agent-1", first.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	f.clock.Advance(time.Minute)
	second, err := f.notifications.Notify(ctx, "esc-1", "agent-1", domain.NotificationReassignment)
	if err != nil {
		t.Fatalf("Notify again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate row created: %s vs %s", second.ID, first.ID)
	}
	if second.ReadAt != nil || !second.CreatedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("notification not re-armed: %+v", second)
	}
	if count, _ := f.notifications.CountUnread(ctx, "agent-1"); count != 1 {
		t.Fatalf("unread = %d, want 1", count)
	}
}

func TestViolationNotifiesEscalationHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setConfig(t, domain.TicketPriorityHigh, 5, 60)
	f.openTicket(t, "conv-1", domain.TicketPriorityHigh)
	item := f.enqueue(t, "conv-1", 2)
	if _, err := f.escalations.Accept(ctx, item.ID, "agent-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	f.clock.Advance(6 * time.Minute)
	summary, err := f.scanner.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.ViolationsFound != 1 {
		t.Fatalf("violations = %d, want 1", summary.ViolationsFound)
	}

	notes, err := f.notifications.List(ctx, "agent-1", NotificationListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(notes) != 1 || notes[0].NotificationType != domain.NotificationSLAViolation || notes[0].EscalationID != item.ID {
		t.Fatalf("notifications = %+v", notes)
	}
}

func TestViolationWithoutHolderNotifiesNobody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setConfig(t, domain.TicketPriorityHigh, 5, 60)
	f.openTicket(t, "conv-1", domain.TicketPriorityHigh)
	f.enqueue(t, "conv-1", 2)

	f.clock.Advance(6 * time.Minute)
	if _, err := f.scanner.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, msg := range f.publisher.messages {
		if push.IsUserChannel(msg.Channel) {
			t.Fatalf("unexpected user push: %+v", msg)
		}
	}
}
