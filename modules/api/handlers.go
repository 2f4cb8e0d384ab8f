package api

import (
	"errors"
	"fmt"
	"io"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/upload"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	// Health check
	m.app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))

	// Stored uploads
	m.app.Get("/uploads/:name", m.serveUpload)

	// REST API v1
	api := m.app.Group("/api/v1")
	api.Get("/messages/:room", m.listMessages)
	api.Get("/users", m.listUsers)
	api.Get("/users/:username/last-seen", m.lastSeen)
	api.Get("/rooms", m.listRooms)
	api.Post("/upload", m.uploadFile)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	stats, err := m.chatAdapter.Stats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "unavailable",
			Message: "Chat core is not responding",
		})
	}
	return c.JSON(HealthResponse{
		Status:      "ok",
		OnlineUsers: stats.OnlineUsers,
		Rooms:       stats.Rooms,
		ServerTime:  m.now(),
	})
}

// listMessages handles GET /api/v1/messages/:room.
func (m *APIModule) listMessages(c *fiber.Ctx) error {
	messages, err := m.chatAdapter.ListMessages(c.UserContext(), c.Params("room"), c.QueryInt("limit", 0))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list messages",
		})
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return c.JSON(messages)
}

// listUsers handles GET /api/v1/users.
func (m *APIModule) listUsers(c *fiber.Ctx) error {
	conns, err := m.chatAdapter.ListConnections(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list users",
		})
	}
	if conns == nil {
		conns = []domain.Connection{}
	}
	return c.JSON(conns)
}

// listRooms handles GET /api/v1/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms, err := m.chatAdapter.ListRooms(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return c.JSON(rooms)
}

// lastSeen handles GET /api/v1/users/:username/last-seen.
func (m *APIModule) lastSeen(c *fiber.Ctx) error {
	username := c.Params("username")
	rec, found, err := m.presence.LastSeen(c.UserContext(), username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "lookup_failed",
			Message: "Failed to look up presence",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "User has never connected",
		})
	}
	return c.JSON(LastSeenResponse{
		Username:    rec.Username,
		Status:      rec.Status,
		Online:      rec.Online,
		Connections: rec.Connections,
		LastSeen:    rec.LastSeen,
	})
}

// uploadFile handles POST /api/v1/upload.
func (m *APIModule) uploadFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "No file provided",
		})
	}
	if err := m.uploads.CheckSize(fh.Size); err != nil {
		return handleUploadError(c, err)
	}

	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to read uploaded file",
		})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to read uploaded file",
		})
	}

	desc, err := m.uploads.Upload(c.UserContext(), fh.Filename, fh.Header.Get(fiber.HeaderContentType), data)
	if err != nil {
		m.logger.Error("Upload failed", "filename", fh.Filename, "error", err)
		return handleUploadError(c, err)
	}

	m.logger.Info("File uploaded", "filename", desc.Filename, "size", desc.Size)
	return c.Status(fiber.StatusCreated).JSON(UploadResponse{
		Success: true,
		File:    desc,
	})
}

// serveUpload handles GET /uploads/:name.
func (m *APIModule) serveUpload(c *fiber.Ctx) error {
	reader, desc, err := m.uploads.Open(c.Params("name"))
	if err != nil {
		return handleUploadError(c, err)
	}

	c.Set(fiber.HeaderContentType, desc.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", desc.OriginalName))
	// fasthttp closes the reader once the body is written.
	return c.SendStream(reader, int(desc.Size))
}

// handleUploadError maps upload sentinel errors to HTTP responses.
func handleUploadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{
			Error:   "file_too_large",
			Message: err.Error(),
		})
	case errors.Is(err, upload.ErrEmptyFile), errors.Is(err, upload.ErrInvalidName):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, upload.ErrFileNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "File not found",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "upload_failed",
			Message: "Failed to process file",
		})
	}
}
