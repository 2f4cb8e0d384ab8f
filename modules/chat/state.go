package chat

import "time"

// State is the in-memory data the Router exclusively owns.
type State struct {
	Connections *ConnectionRegistry
	Rooms       *RoomRegistry
	Messages    *MessageStore
	Typing      *TypingTracker
}

// NewState creates a state holding the default room with an empty log and typing set.
func NewState(now time.Time) *State {
	s := &State{
		Connections: NewConnectionRegistry(),
		Rooms:       NewRoomRegistry(now),
		Messages:    NewMessageStore(),
		Typing:      NewTypingTracker(),
	}
	s.Messages.Ensure(DefaultRoomID)
	s.Typing.Ensure(DefaultRoomID)
	return s
}
