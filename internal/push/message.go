// Package push carries best-effort realtime updates to connected UIs. Every
// message is a hint to refetch; clients reconcile against the API.
package push

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	userPrefix         = "user:"
	conversationPrefix = "conversation:"
)

// Message is one push update on a channel.
type Message struct {
	ID       string          `json:"id"`
	Channel  string          `json:"channel"`
	Type     string          `json:"type"`
	EntityID string          `json:"entity_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       time.Time       `json:"at"`
}

// Publisher sends a message to every subscriber of its channel.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// UserChannel names the channel for one user's notifications.
func UserChannel(userID string) string {
	return userPrefix + userID
}

// ConversationChannel names the channel for one conversation's ticket and queue updates.
func ConversationChannel(conversationID string) string {
	return conversationPrefix + conversationID
}

// IsUserChannel reports whether channel is a per-user channel.
func IsUserChannel(channel string) bool {
	return strings.HasPrefix(channel, userPrefix)
}

// NewMessage builds a message, encoding payload as JSON.
func NewMessage(channel, msgType, entityID string, payload any, at time.Time) (Message, error) {
	msg := Message{
		ID:       uuid.NewString(),
		Channel:  channel,
		Type:     msgType,
		EntityID: entityID,
		At:       at,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, err
		}
		msg.Payload = raw
	}
	return msg, nil
}

// coalesceKey identifies messages that refer to the same entity update.
func (m Message) coalesceKey() string {
	return m.Channel + "|" + m.Type + "|" + m.EntityID
}

// Discard drops every message.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Message) error { return nil }
