package chat

import (
	"encoding/json"
	"errors"
	"unicode/utf8"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Validation constants
const (
	MaxUsernameLength = 50
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
)

// Validation errors
var (
	ErrUsernameEmpty   = errors.New("username cannot be empty")
	ErrUsernameTooLong = errors.New("username exceeds maximum length")
	ErrUsernameInvalid = errors.New("username contains invalid characters")
	ErrRoomNameEmpty   = errors.New("room name cannot be empty")
	ErrRoomNameTooLong = errors.New("room name exceeds maximum length")
	ErrRoomNameInvalid = errors.New("room name contains invalid characters")
	ErrMessageEmpty    = errors.New("message content cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrMessageInvalid  = errors.New("message contains invalid characters")
	ErrReactionEmpty   = errors.New("reaction cannot be empty")
)

// Inbound event types.
const (
	EventJoin           = "join"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventPrivateMessage = "private_message"
	EventAddReaction    = "add_reaction"
	EventMarkAsRead     = "mark_as_read"
	EventJoinRoom       = "join_room"
	EventCreateRoom     = "create_room"
	EventFileUploaded   = "file_uploaded"
	EventUpdateStatus   = "update_status"
	EventDisconnect     = "disconnect"
)

// Outbound event types.
const (
	OutSession            = "session"
	OutOnlineUsers        = "online_users"
	OutUserJoined         = "user_joined"
	OutRoomList           = "room_list"
	OutMessageHistory     = "message_history"
	OutNewMessage         = "new_message"
	OutTypingUsers        = "typing_users"
	OutPrivateMessage     = "private_message"
	OutPrivateMessageSent = "private_message_sent"
	OutMessageUpdated     = "message_updated"
	OutMessageRead        = "message_read"
	OutUserJoinedRoom     = "user_joined_room"
	OutUserLeftRoom       = "user_left_room"
	OutRoomCreated        = "room_created"
	OutStatusChanged      = "user_status_changed"
	OutUserLeft           = "user_left"
	OutError              = "error"
)

// Envelope is the WebSocket frame format in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload is the payload of a join event.
type JoinPayload struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// SendMessagePayload is the payload of a send_message event.
type SendMessagePayload struct {
	Message string `json:"message"`
	Room    string `json:"room"`
}

// TypingPayload is the payload of a typing event.
type TypingPayload struct {
	IsTyping bool   `json:"isTyping"`
	Room     string `json:"room"`
}

// PrivateMessagePayload addresses a connection id directly.
type PrivateMessagePayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// ReactionPayload is the payload of an add_reaction event.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
	Room      string `json:"room"`
}

// MarkReadPayload is the payload of a mark_as_read event.
type MarkReadPayload struct {
	MessageID string `json:"messageId"`
	Room      string `json:"room"`
}

// JoinRoomPayload is the payload of a join_room event.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// CreateRoomPayload is the payload of a create_room event.
type CreateRoomPayload struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
}

// FileUploadedPayload carries a descriptor returned by the upload endpoint.
type FileUploadedPayload struct {
	FileData domain.FileDescriptor `json:"fileData"`
	Room     string                `json:"room"`
}

// StatusPayload is the payload of an update_status event.
type StatusPayload struct {
	Status string `json:"status"`
}

// HistoryPayload is sent to hydrate a client with a room log.
type HistoryPayload struct {
	Room     string           `json:"room"`
	Messages []domain.Message `json:"messages"`
}

// TypingUsersPayload lists who is typing in a room.
type TypingUsersPayload struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// PresencePayload announces a user entering or leaving a room.
type PresencePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Room     string `json:"room"`
}

// ReadReceiptPayload is broadcast after mark_as_read.
type ReadReceiptPayload struct {
	MessageID string `json:"messageId"`
	Room      string `json:"room"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
}

// StatusChangedPayload is broadcast after update_status.
type StatusChangedPayload struct {
	UserID   string        `json:"userId"`
	Username string        `json:"username"`
	Status   domain.Status `json:"status"`
}

// ErrorPayload reports a rejected event to its sender.
type ErrorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidateUsername validates a username.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !utf8.ValidString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

// ValidateRoomName validates a room name.
func ValidateRoomName(name string) error {
	if name == "" {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	if !utf8.ValidString(name) {
		return ErrRoomNameInvalid
	}
	return nil
}

// ValidateMessage validates a message content.
func ValidateMessage(content string) error {
	if content == "" {
		return ErrMessageEmpty
	}
	if len(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	return nil
}

// ValidateFile checks that a descriptor points at a stored upload.
func ValidateFile(f domain.FileDescriptor) error {
	if f.Filename == "" || f.URL == "" {
		return ErrInvalidFile
	}
	if f.Size < 0 {
		return ErrInvalidFile
	}
	return nil
}
