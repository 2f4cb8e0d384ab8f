package chat

import "time"

// Status is the presence status a connection advertises.
type Status string

const (
	StatusOnline Status = "online"
	StatusAway   Status = "away"
	StatusBusy   Status = "busy"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy:
		return true
	}
	return false
}

// MessageKind distinguishes the body a message carries.
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindFile    MessageKind = "file"
	KindPrivate MessageKind = "private"
)

// Connection is the identity bound to one live WebSocket session.
type Connection struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
	RoomID   string    `json:"room"`
	Status   Status    `json:"status"`
}

// Room represents a chat room.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	IsPrivate bool      `json:"isPrivate"`
}

// FileDescriptor describes a stored upload.
type FileDescriptor struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
	URL          string `json:"url"`
}

// Message represents a chat message.
// Reactions maps a reaction kind to the usernames that reacted with it.
type Message struct {
	ID        string              `json:"id"`
	Username  string              `json:"username"`
	UserID    string              `json:"userId"`
	RoomID    string              `json:"room,omitempty"`
	To        string              `json:"to,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Kind      MessageKind         `json:"type"`
	Text      string              `json:"message,omitempty"`
	File      *FileDescriptor     `json:"fileData,omitempty"`
	Reactions map[string][]string `json:"reactions"`
	ReadBy    []string            `json:"readBy"`
}
