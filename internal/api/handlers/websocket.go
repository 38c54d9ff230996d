package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shift-reminder/backend/internal/api/middleware"
	ws "github.com/shift-reminder/backend/internal/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The chat front-end may be served from another origin
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// WebSocketUpgrade returns a handler that upgrades HTTP connections to
// WebSocket for the user named by the user_id query parameter.
func WebSocketUpgrade(hub *ws.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		if err != nil || uid <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "user_id query parameter is required")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := ws.NewClient(hub, uid)
		hub.Register(client)

		go writePump(conn, client)
		go readPump(conn, client, hub, logger)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub.
func readPump(conn *websocket.Conn, client *ws.Client, hub *ws.Hub, logger *zap.Logger) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(65536)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", zap.Int64("user_id", client.UserID()), zap.Error(err))
			}
			return
		}
		handleClientMessage(message, client, hub)
	}
}

// handleClientMessage answers pings; other commands get an error reply.
func handleClientMessage(message []byte, client *ws.Client, hub *ws.Hub) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		reply(client, hub, ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: "bad_message", Message: "invalid JSON"}))
		return
	}

	switch msg.Type {
	case ws.TypePing:
		reply(client, hub, ws.NewMessage(ws.TypePong, nil))
	default:
		reply(client, hub, ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:         "unsupported",
			Message:      "unsupported message type",
			OriginalType: string(msg.Type),
		}))
	}
}

func reply(client *ws.Client, hub *ws.Hub, msg ws.Message) {
	data, err := msg.JSON()
	if err != nil {
		return
	}
	hub.SendToClient(client, data)
}
