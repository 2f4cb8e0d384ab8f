package chat

import (
	"context"
	"encoding/json"
	"errors"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/go-monolith/mono"
)

// Service names exposed through the chat module's service container.
const (
	ServiceDispatch        = "dispatch"
	ServiceListMessages    = "list-messages"
	ServiceListConnections = "list-connections"
	ServiceListRooms       = "list-rooms"
	ServiceStats           = "chat-stats"
)

// DispatchRequest carries one client event into the router.
type DispatchRequest struct {
	ConnectionID string          `json:"connection_id"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// DispatchResponse reports whether the event was accepted.
type DispatchResponse struct {
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ListMessagesRequest asks for a room log.
type ListMessagesRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit"`
}

// ListMessagesResponse is a room log, oldest first.
type ListMessagesResponse struct {
	RoomID   string           `json:"room_id"`
	Messages []domain.Message `json:"messages"`
}

// ListConnectionsRequest asks for the online connections.
type ListConnectionsRequest struct{}

// ListConnectionsResponse lists connections in join order.
type ListConnectionsResponse struct {
	Connections []domain.Connection `json:"connections"`
}

// ListRoomsRequest asks for all rooms.
type ListRoomsRequest struct{}

// ListRoomsResponse lists rooms, default room first.
type ListRoomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

// StatsRequest asks for registry counters.
type StatsRequest struct{}

// StatsResponse carries the counters reported by the health probe.
type StatsResponse struct {
	OnlineUsers int `json:"online_users"`
	Rooms       int `json:"rooms"`
}

func (m *Module) handleDispatch(ctx context.Context, req DispatchRequest, _ *mono.Msg) (DispatchResponse, error) {
	err := m.router.Dispatch(ctx, req.ConnectionID, req.Type, req.Payload)
	if err == nil {
		return DispatchResponse{Accepted: true}, nil
	}
	var ee *EventError
	if errors.As(err, &ee) {
		return DispatchResponse{Code: ee.Code, Error: ee.Err.Error()}, nil
	}
	return DispatchResponse{}, err
}

func (m *Module) handleListMessages(ctx context.Context, req ListMessagesRequest, _ *mono.Msg) (ListMessagesResponse, error) {
	limit := req.Limit
	if limit <= 0 || limit > MaxMessagesPerRoom {
		limit = MaxMessagesPerRoom
	}
	resp := ListMessagesResponse{RoomID: req.RoomID}
	err := m.router.Query(ctx, func(s *State) {
		resp.Messages = s.Messages.Recent(req.RoomID, limit)
	})
	return resp, err
}

func (m *Module) handleListConnections(ctx context.Context, _ ListConnectionsRequest, _ *mono.Msg) (ListConnectionsResponse, error) {
	var resp ListConnectionsResponse
	err := m.router.Query(ctx, func(s *State) {
		resp.Connections = s.Connections.List()
	})
	return resp, err
}

func (m *Module) handleListRooms(ctx context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	var resp ListRoomsResponse
	err := m.router.Query(ctx, func(s *State) {
		resp.Rooms = s.Rooms.List()
	})
	return resp, err
}

func (m *Module) handleStats(ctx context.Context, _ StatsRequest, _ *mono.Msg) (StatsResponse, error) {
	var resp StatsResponse
	err := m.router.Query(ctx, func(s *State) {
		resp.OnlineUsers = s.Connections.Len()
		resp.Rooms = s.Rooms.Len()
	})
	return resp, err
}
