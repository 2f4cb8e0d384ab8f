package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/realtime-chat/modules/api"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
	"github.com/example/realtime-chat/modules/presence"
	"github.com/example/realtime-chat/modules/upload"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Realtime Chat - Fiber WebSocket + mono ===")

	// Load configuration from environment
	port := getEnvInt("PORT", 3000)
	maxUploadSize := getEnvInt64("MAX_UPLOAD_SIZE", upload.DefaultMaxSize)
	storagePath := getEnv("STORAGE_PATH", "/tmp/realtime-chat")
	allowedOrigins := getEnv("CORS_ALLOWED_ORIGINS", "*")
	historyLimit := getEnvInt("HISTORY_LIMIT", chat.DefaultHistoryLimit)

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(storagePath),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Uploaded files persist on disk under STORAGE_PATH.
	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        upload.BucketName,
				Description: "Chat file uploads",
				MaxBytes:    1024 * 1024 * 1024, // 1GB max storage
				Storage:     fsjetstream.FileStorage,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create storage plugin: %v", err)
	}
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	kvPlugin, err := kvjetstream.New(kvjetstream.Config{
		Buckets: []kvjetstream.BucketConfig{
			{
				Name:        presence.BucketName,
				Description: "Last-seen presence per username",
				TTL:         7 * 24 * time.Hour,
				Storage:     kvjetstream.MemoryStorage,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create KV plugin: %v", err)
	}
	if err := app.RegisterPlugin(kvPlugin, "kv"); err != nil {
		log.Fatalf("Failed to register KV plugin: %v", err)
	}

	// Create modules
	broadcastModule := broadcast.NewModule(app.Logger())
	uploadModule := upload.NewModule(maxUploadSize, app.Logger())
	chatModule := chat.NewModule(app.Logger(), historyLimit,
		chat.WithFileResolver(uploadModule.Describe),
	)
	presenceModule := presence.NewModule(app.Logger())
	apiModule := api.NewModule(api.Config{
		Port:           port,
		AllowedOrigins: allowedOrigins,
		MaxUploadSize:  maxUploadSize,
	}, app.Logger())

	// Wire up dependencies
	chatModule.SetDeliverer(broadcastModule.GetHub())
	apiModule.SetHub(broadcastModule.GetHub())
	apiModule.SetUploadModule(uploadModule)

	// Register modules. Order: transport and core first, then the HTTP layer.
	for _, module := range []mono.Module{
		broadcastModule,
		chatModule,
		presenceModule,
		uploadModule,
		apiModule,
	} {
		if err := app.Register(module); err != nil {
			log.Fatalf("Failed to register module %s: %v", module.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(port, storagePath, maxUploadSize)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(port int, storagePath string, maxUploadSize int64) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  - Storage path: %s", storagePath)
	log.Printf("  - Max upload size: %d bytes", maxUploadSize)
	log.Println("")
	log.Printf("Endpoints (http://localhost:%d):", port)
	log.Println("  GET    /ws                              - WebSocket chat")
	log.Println("  GET    /api/v1/messages/:room           - Room message log")
	log.Println("  GET    /api/v1/users                    - Online users")
	log.Println("  GET    /api/v1/users/:username/last-seen - Presence lookup")
	log.Println("  GET    /api/v1/rooms                    - Rooms")
	log.Println("  POST   /api/v1/upload                   - Upload a file (field: file)")
	log.Println("  GET    /uploads/:name                   - Download an upload")
	log.Println("  GET    /health                          - Health check")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns environment variable as int64 or default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}
