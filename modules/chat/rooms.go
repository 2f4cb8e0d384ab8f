package chat

import (
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
	nanoid "github.com/jaevor/go-nanoid"
)

// Default room constants.
const (
	DefaultRoomID   = "general"
	DefaultRoomName = "General"
	systemUser      = "system"
	roomIDLength    = 10
)

// RoomRegistry is the append-only set of rooms.
// It is not safe for concurrent use; the Router owns it.
type RoomRegistry struct {
	rooms map[string]domain.Room
	order []string
	newID func() string
}

// NewRoomRegistry creates a registry holding only the default room.
func NewRoomRegistry(now time.Time) *RoomRegistry {
	gen, err := nanoid.Standard(roomIDLength)
	if err != nil {
		// Standard only fails for lengths outside 2..255.
		panic(err)
	}
	r := &RoomRegistry{
		rooms: make(map[string]domain.Room),
		newID: gen,
	}
	r.add(domain.Room{
		ID:        DefaultRoomID,
		Name:      DefaultRoomName,
		CreatedBy: systemUser,
		CreatedAt: now,
	})
	return r
}

func (r *RoomRegistry) add(room domain.Room) {
	r.rooms[room.ID] = room
	r.order = append(r.order, room.ID)
}

// Create adds a room with a fresh id.
func (r *RoomRegistry) Create(name, creator string, isPrivate bool, now time.Time) domain.Room {
	id := r.newID()
	for r.has(id) {
		id = r.newID()
	}
	room := domain.Room{
		ID:        id,
		Name:      name,
		CreatedBy: creator,
		CreatedAt: now,
		IsPrivate: isPrivate,
	}
	r.add(room)
	return room
}

func (r *RoomRegistry) has(id string) bool {
	_, ok := r.rooms[id]
	return ok
}

// Get returns a room by id.
func (r *RoomRegistry) Get(id string) (domain.Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

// List returns all rooms, default room first.
func (r *RoomRegistry) List() []domain.Room {
	result := make([]domain.Room, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.rooms[id])
	}
	return result
}

// Len returns the number of rooms.
func (r *RoomRegistry) Len() int {
	return len(r.rooms)
}
