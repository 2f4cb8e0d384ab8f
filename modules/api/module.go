package api

import (
	"context"
	"fmt"
	"io"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
	"github.com/example/realtime-chat/modules/presence"
	"github.com/example/realtime-chat/modules/upload"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Uploader is the upload gateway as the HTTP layer sees it.
type Uploader interface {
	CheckSize(size int64) error
	Upload(ctx context.Context, originalName, contentType string, data []byte) (domain.FileDescriptor, error)
	Open(name string) (io.ReadCloser, domain.FileDescriptor, error)
}

// Config holds the HTTP server settings.
type Config struct {
	Port           int
	AllowedOrigins string
	MaxUploadSize  int64
}

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	app          *fiber.App
	config       Config
	chatAdapter  chat.ChatPort
	presence     presence.PresencePort
	hub          *broadcast.Hub
	uploadModule *upload.Module
	uploads      Uploader
	logger       types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(config Config, logger types.Logger) *APIModule {
	if config.Port == 0 {
		config.Port = 3000
	}
	if config.AllowedOrigins == "" {
		config.AllowedOrigins = "*"
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = upload.DefaultMaxSize
	}
	return &APIModule{
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"chat", "presence"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "chat":
		m.chatAdapter = chat.NewChatAdapter(container)
	case "presence":
		m.presence = presence.NewPresenceAdapter(container)
	}
}

// SetHub sets the broadcast hub (called from main.go).
func (m *APIModule) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// SetUploadModule sets the upload gateway module (called from main.go).
func (m *APIModule) SetUploadModule(mod *upload.Module) {
	m.uploadModule = mod
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.chatAdapter == nil {
		return fmt.Errorf("chat adapter dependency not set")
	}
	if m.presence == nil {
		return fmt.Errorf("presence adapter dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("broadcast hub dependency not set")
	}
	if m.uploads == nil {
		if m.uploadModule == nil || m.uploadModule.Service() == nil {
			return fmt.Errorf("upload module dependency not set")
		}
		m.uploads = m.uploadModule.Service()
	}

	m.app = m.newApp()

	addr := fmt.Sprintf(":%d", m.config.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			errCh <- err
		}
	}()

	// Wait briefly to catch immediate startup errors
	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "addr", addr)
	return nil
}

// newApp builds the Fiber app with middleware and routes.
func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Realtime Chat",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		// Leave headroom so oversized uploads reach the gateway's own check.
		BodyLimit:    int(2*m.config.MaxUploadSize) + 1024*1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
		Next: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderUpgrade) == "websocket"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.config.AllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	m.app = app
	m.setupRoutes()
	return app
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"port": m.config.Port,
	}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

// errorHandler handles errors globally.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	kind := "server_error"
	if code == fiber.StatusRequestEntityTooLarge {
		kind = "file_too_large"
	}

	m.logger.Error("HTTP error", "code", code, "message", message, "error", err)

	return c.Status(code).JSON(ErrorResponse{
		Error:   kind,
		Message: message,
	})
}
