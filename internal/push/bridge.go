package push

import (
	"context"

	"github.com/spec-kit/sla-escalation-service/internal/events"
)

// RegisterConversationBridge republishes every domain event that names a
// conversation on that conversation's channel.
func RegisterConversationBridge(dispatcher events.Dispatcher, publisher Publisher) {
	dispatcher.SubscribeAll(func(ctx context.Context, event events.Event) error {
		if event.ConversationID == "" {
			return nil
		}
		msg, err := NewMessage(ConversationChannel(event.ConversationID), string(event.Type), event.SubjectID, event.Payload, event.Timestamp)
		if err != nil {
			return err
		}
		msg.ID = event.ID
		return publisher.Publish(ctx, msg)
	})
}
