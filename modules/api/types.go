package api

import (
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
)

// UploadResponse is the API response for a stored upload.
type UploadResponse struct {
	Success bool                  `json:"success"`
	File    domain.FileDescriptor `json:"file"`
}

// LastSeenResponse is the API response for a presence lookup.
type LastSeenResponse struct {
	Username    string    `json:"username"`
	Status      string    `json:"status"`
	Online      bool      `json:"online"`
	Connections int       `json:"connections"`
	LastSeen    time.Time `json:"lastSeen"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status      string    `json:"status"`
	OnlineUsers int       `json:"onlineUsers"`
	Rooms       int       `json:"rooms"`
	ServerTime  time.Time `json:"serverTime"`
}
