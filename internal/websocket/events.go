package websocket

import (
	"fmt"

	"go.uber.org/zap"
)

// EventBroadcaster encodes typed messages and hands them to the hub.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// SendToUser delivers text to userID as a message of the given type and
// returns how many connections received it.
func (b *EventBroadcaster) SendToUser(userID int64, msgType MessageType, text string) (int, error) {
	msg := NewMessage(msgType, ReminderPayload{UserID: userID, Text: text})
	data, err := msg.JSON()
	if err != nil {
		return 0, fmt.Errorf("encoding %s message: %w", msgType, err)
	}
	return b.hub.SendToUser(userID, data), nil
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	payload := NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}

	data, err := NewMessage(TypeNotification, payload).JSON()
	if err != nil {
		b.hub.logger.Error("encoding notification", zap.Error(err))
		return
	}
	b.hub.Broadcast(data)
}
