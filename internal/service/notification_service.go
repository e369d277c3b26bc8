package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/events"
	"github.com/spec-kit/sla-escalation-service/internal/observability"
	"github.com/spec-kit/sla-escalation-service/internal/push"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

// Push message types on user channels.
const (
	PushNotificationCreated  = "notification_created"
	PushNotificationsUpdated = "notifications_updated"
)

// Notifier records that a user must be told about an escalation.
type Notifier interface {
	Notify(ctx context.Context, escalationID, userID string, notificationType domain.NotificationType) (*domain.EscalationNotification, error)
}

// NotificationService writes escalation notifications and is the only
// producer on per-user push channels.
type NotificationService struct {
	notifications repository.NotificationRepository
	escalations   repository.EscalationRepository
	publisher     push.Publisher
	dispatcher    events.Dispatcher
	metrics       *observability.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	EscalationRepo   repository.EscalationRepository
	Publisher        push.Publisher
	Dispatcher       events.Dispatcher
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Now              func() time.Time
}

// NotificationListFilter selects a recipient's notifications.
type NotificationListFilter struct {
	IncludeRead      bool
	IncludeDismissed bool
	Limit            int
	Offset           int
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = push.Discard{}
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		escalations:   deps.EscalationRepo,
		publisher:     publisher,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        logger.Named("notifications"),
		now:           defaultClock(deps.Now),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventViolationRecorded, n.handleViolationRecorded)
}

// Notify writes one notification row for (escalation, user, type) and pushes
// it to the user. Callers invoke it once per logical event and treat errors
// as non-fatal.
func (n *NotificationService) Notify(ctx context.Context, escalationID, userID string, notificationType domain.NotificationType) (*domain.EscalationNotification, error) {
	notification := &domain.EscalationNotification{
		EscalationID:     escalationID,
		UserID:           userID,
		NotificationType: notificationType,
	}
	err := n.notifications.Upsert(ctx, notification)
	n.metrics.RecordNotification(string(notificationType), err)
	if err != nil {
		n.logger.Error("failed to write notification",
			zap.String("escalation_id", escalationID),
			zap.String("user_id", userID),
			zap.String("type", string(notificationType)),
			zap.Error(err),
		)
		return nil, err
	}

	n.push(ctx, userID, PushNotificationCreated, notification.ID, map[string]any{
		"escalation_id":     escalationID,
		"notification_type": notificationType,
	})
	return notification, nil
}

// List returns a recipient's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, userID string, filter NotificationListFilter) ([]domain.EscalationNotification, error) {
	items, err := n.notifications.ListByUser(ctx, userID, repository.NotificationFilter{
		IncludeRead:      filter.IncludeRead,
		IncludeDismissed: filter.IncludeDismissed,
		Limit:            filter.Limit,
		Offset:           filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// CountUnread returns the number of unread, undismissed notifications.
func (n *NotificationService) CountUnread(ctx context.Context, userID string) (int, error) {
	count, err := n.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications read.
func (n *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := n.notifications.MarkRead(ctx, userID, notificationID, n.now()); err != nil {
		return mapRepoError(err, "notification", map[string]any{"notification_id": notificationID})
	}
	n.pushUpdated(ctx, userID)
	return nil
}

// MarkAllRead marks every unread notification of the user read.
func (n *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := n.notifications.MarkAllRead(ctx, userID, n.now())
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if count > 0 {
		n.pushUpdated(ctx, userID)
	}
	return count, nil
}

// Dismiss hides one of the user's notifications.
func (n *NotificationService) Dismiss(ctx context.Context, userID, notificationID string) error {
	if err := n.notifications.Dismiss(ctx, userID, notificationID, n.now()); err != nil {
		return mapRepoError(err, "notification", map[string]any{"notification_id": notificationID})
	}
	n.pushUpdated(ctx, userID)
	return nil
}

// DismissAll hides every notification of the user.
func (n *NotificationService) DismissAll(ctx context.Context, userID string) (int64, error) {
	count, err := n.notifications.DismissAll(ctx, userID, n.now())
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if count > 0 {
		n.pushUpdated(ctx, userID)
	}
	return count, nil
}

// handleViolationRecorded tells the agent holding the conversation's escalation.
func (n *NotificationService) handleViolationRecorded(ctx context.Context, event events.Event) error {
	if n.escalations == nil || event.ConversationID == "" {
		return nil
	}
	item, err := n.escalations.GetActiveByConversation(ctx, event.ConversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if item.Status != domain.EscalationStatusAssigned || item.AssignedTo == nil {
		return nil
	}
	_, _ = n.Notify(ctx, item.ID, *item.AssignedTo, domain.NotificationSLAViolation)
	return nil
}

func (n *NotificationService) pushUpdated(ctx context.Context, userID string) {
	unread, err := n.notifications.CountUnread(ctx, userID)
	if err != nil {
		n.logger.Warn("failed to count unread notifications", zap.String("user_id", userID), zap.Error(err))
		return
	}
	n.push(ctx, userID, PushNotificationsUpdated, "", map[string]int{"unread": unread})
}

func (n *NotificationService) push(ctx context.Context, userID, msgType, entityID string, payload any) {
	msg, err := push.NewMessage(push.UserChannel(userID), msgType, entityID, payload, n.now())
	if err == nil {
		err = n.publisher.Publish(ctx, msg)
	}
	if err != nil {
		n.logger.Warn("failed to push notification update",
			zap.String("user_id", userID),
			zap.String("type", msgType),
			zap.Error(err),
		)
	}
}
