package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort defines the interface for chat operations.
type ChatPort interface {
	Dispatch(ctx context.Context, connID, eventType string, payload json.RawMessage) (DispatchResponse, error)
	ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	ListConnections(ctx context.Context) ([]domain.Connection, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	Stats(ctx context.Context) (StatsResponse, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

// Dispatch forwards a client event to the router.
func (a *ChatAdapter) Dispatch(ctx context.Context, connID, eventType string, payload json.RawMessage) (DispatchResponse, error) {
	req := DispatchRequest{ConnectionID: connID, Type: eventType, Payload: payload}
	var resp DispatchResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceDispatch,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return DispatchResponse{}, fmt.Errorf("failed to dispatch %s: %w", eventType, err)
	}
	return resp, nil
}

// ListMessages returns a room log, oldest first.
func (a *ChatAdapter) ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	req := ListMessagesRequest{RoomID: roomID, Limit: limit}
	var resp ListMessagesResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListMessages,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return resp.Messages, nil
}

// ListConnections returns the online connections.
func (a *ChatAdapter) ListConnections(ctx context.Context) ([]domain.Connection, error) {
	req := ListConnectionsRequest{}
	var resp ListConnectionsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListConnections,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return resp.Connections, nil
}

// ListRooms returns all available rooms.
func (a *ChatAdapter) ListRooms(ctx context.Context) ([]domain.Room, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// Stats returns the online and room counters.
func (a *ChatAdapter) Stats(ctx context.Context) (StatsResponse, error) {
	req := StatsRequest{}
	var resp StatsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceStats,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return StatsResponse{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return resp, nil
}
