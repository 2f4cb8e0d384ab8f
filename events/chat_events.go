package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// UserConnectedEvent is emitted when a connection completes the join handshake.
type UserConnectedEvent struct {
	ConnectionID string    `json:"connection_id"`
	Username     string    `json:"username"`
	RoomID       string    `json:"room_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserDisconnectedEvent is emitted after a joined connection goes away.
type UserDisconnectedEvent struct {
	ConnectionID string    `json:"connection_id"`
	Username     string    `json:"username"`
	RoomID       string    `json:"room_id"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// StatusChangedEvent is emitted when a user changes presence status.
type StatusChangedEvent struct {
	ConnectionID string    `json:"connection_id"`
	Username     string    `json:"username"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// MessagePostedEvent is emitted when a text or file message lands in a room log.
type MessagePostedEvent struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Username  string    `json:"username"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomCreatedEvent is emitted when a new room is created.
type RoomCreatedEvent struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	CreatedBy string    `json:"created_by"`
	IsPrivate bool      `json:"is_private"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	// Subject: events.chat.v1.user-connected
	UserConnectedV1 = helper.EventDefinition[UserConnectedEvent](
		"chat",
		"UserConnected",
		"v1",
	)

	UserDisconnectedV1 = helper.EventDefinition[UserDisconnectedEvent](
		"chat",
		"UserDisconnected",
		"v1",
	)

	StatusChangedV1 = helper.EventDefinition[StatusChangedEvent](
		"chat",
		"StatusChanged",
		"v1",
	)

	MessagePostedV1 = helper.EventDefinition[MessagePostedEvent](
		"chat",
		"MessagePosted",
		"v1",
	)

	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"chat",
		"RoomCreated",
		"v1",
	)
)
