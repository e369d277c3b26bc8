package worker

import (
	"github.com/spec-kit/sla-escalation-service/internal/events"
	"github.com/spec-kit/sla-escalation-service/internal/push"
	"github.com/spec-kit/sla-escalation-service/internal/service"
)

// StartNotificationWorker registers the event consumers that turn domain
// events into notifications and conversation pushes.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, publisher push.Publisher) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if dispatcher != nil && publisher != nil {
		push.RegisterConversationBridge(dispatcher, publisher)
	}
}
