package chat

import (
	"fmt"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
)

// ConnectionRegistry maps live connection ids to joined identities.
// It is not safe for concurrent use; the Router owns it.
type ConnectionRegistry struct {
	conns map[string]*domain.Connection
	order []string
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*domain.Connection),
	}
}

// Register binds an identity to id in roomID.
func (r *ConnectionRegistry) Register(id, username, avatar, roomID string, now time.Time) (domain.Connection, error) {
	if _, exists := r.conns[id]; exists {
		return domain.Connection{}, fmt.Errorf("%w: %s", ErrDuplicateJoin, id)
	}
	conn := &domain.Connection{
		ID:       id,
		Username: username,
		Avatar:   avatar,
		JoinedAt: now,
		RoomID:   roomID,
		Status:   domain.StatusOnline,
	}
	r.conns[id] = conn
	r.order = append(r.order, id)
	return *conn, nil
}

// Resolve returns the identity bound to id.
func (r *ConnectionRegistry) Resolve(id string) (domain.Connection, bool) {
	conn, ok := r.conns[id]
	if !ok {
		return domain.Connection{}, false
	}
	return *conn, true
}

// Unregister removes and returns the identity bound to id.
func (r *ConnectionRegistry) Unregister(id string) (domain.Connection, bool) {
	conn, ok := r.conns[id]
	if !ok {
		return domain.Connection{}, false
	}
	delete(r.conns, id)
	for i, cid := range r.order {
		if cid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *conn, true
}

// Move sets the current room of id.
func (r *ConnectionRegistry) Move(id, roomID string) (domain.Connection, bool) {
	conn, ok := r.conns[id]
	if !ok {
		return domain.Connection{}, false
	}
	conn.RoomID = roomID
	return *conn, true
}

// SetStatus updates the presence status of id.
func (r *ConnectionRegistry) SetStatus(id string, status domain.Status) (domain.Connection, bool) {
	conn, ok := r.conns[id]
	if !ok {
		return domain.Connection{}, false
	}
	conn.Status = status
	return *conn, true
}

// List returns a snapshot of all connections in join order.
func (r *ConnectionRegistry) List() []domain.Connection {
	result := make([]domain.Connection, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.conns[id])
	}
	return result
}

// IDs returns all connection ids in join order.
func (r *ConnectionRegistry) IDs() []string {
	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// InRoom returns the ids of connections currently in roomID.
func (r *ConnectionRegistry) InRoom(roomID string) []string {
	var result []string
	for _, id := range r.order {
		if r.conns[id].RoomID == roomID {
			result = append(result, id)
		}
	}
	return result
}

// Len returns the number of joined connections.
func (r *ConnectionRegistry) Len() int {
	return len(r.conns)
}
