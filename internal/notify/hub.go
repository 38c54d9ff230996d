package notify

import (
	"context"
	"fmt"

	"github.com/shift-reminder/backend/internal/websocket"
)

// HubSender pushes notifications to the user's open WebSocket connections.
type HubSender struct {
	events *websocket.EventBroadcaster
}

// NewHubSender creates a sender on top of hub.
func NewHubSender(hub *websocket.Hub) *HubSender {
	return &HubSender{events: websocket.NewEventBroadcaster(hub)}
}

// Send implements Sender. It returns ErrNoRecipient when the user has no
// open connection.
func (s *HubSender) Send(_ context.Context, n Notification) error {
	delivered, err := s.events.SendToUser(n.UserID, messageType(n.Kind), n.Text)
	if err != nil {
		return err
	}
	if delivered == 0 {
		return fmt.Errorf("user %d: %w", n.UserID, ErrNoRecipient)
	}
	return nil
}

func messageType(k Kind) websocket.MessageType {
	switch k {
	case KindEventReminder:
		return websocket.TypeEventReminder
	case KindClassReminder:
		return websocket.TypeClassReminder
	case KindOffDayDigest:
		return websocket.TypeOffDayDigest
	default:
		return websocket.TypeNotification
	}
}
