package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const dispatchTimeout = 5 * time.Second

// maxFrameSize bounds one inbound frame: the longest valid message with every
// byte JSON-escaped, plus room for the envelope and a file descriptor.
const maxFrameSize = 6*chat.MaxMessageLength + 4096

func (m *APIModule) now() time.Time {
	return time.Now().UTC()
}

// handleWebSocket handles WebSocket connections at /ws.
// Frames are forwarded to the chat router in arrival order; every write
// back to the client goes through the hub.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	client := broadcast.NewClient(connID, c)
	c.SetReadLimit(maxFrameSize)

	m.hub.Register(client)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if _, err := m.chatAdapter.Dispatch(ctx, connID, chat.EventDisconnect, nil); err != nil {
			m.logger.Warn("Failed to dispatch disconnect", "connID", connID, "error", err)
		}
		m.hub.Unregister(client)
		// The connection must not be written after this handler returns.
		<-client.Done()
		m.logger.Info("WebSocket client disconnected", "connID", connID)
	}()

	m.logger.Info("WebSocket client connected", "connID", connID)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "connID", connID, "error", err)
			}
			return
		}
		m.handleFrame(connID, data)
	}
}

// handleFrame decodes one client frame and dispatches it.
func (m *APIModule) handleFrame(connID string, data []byte) {
	var env chat.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		m.hub.Send(connID, chat.OutError, chat.ErrorPayload{
			Code:    chat.CodeBadRequest,
			Message: "Invalid message format",
		})
		return
	}
	// disconnect is generated by the transport, never accepted from clients.
	if env.Type == chat.EventDisconnect {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	resp, err := m.chatAdapter.Dispatch(ctx, connID, env.Type, env.Payload)
	if err != nil {
		m.logger.Error("Failed to dispatch event", "connID", connID, "event", env.Type, "error", err)
		m.hub.Send(connID, chat.OutError, chat.ErrorPayload{
			Event:   env.Type,
			Code:    "internal_error",
			Message: "Event could not be processed",
		})
		return
	}
	if !resp.Accepted {
		m.logger.Debug("Event rejected", "connID", connID, "event", env.Type, "code", resp.Code)
	}
}
