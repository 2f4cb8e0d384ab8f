package upload

import (
	"context"
	"fmt"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/go-monolith/mono/pkg/types"
)

// BucketName is the object store bucket uploads live in.
const BucketName = "uploads"

// Module implements the upload gateway using the fs-jetstream plugin.
type Module struct {
	storage *fsjetstream.PluginModule
	bucket  fsjetstream.FileStoragePort
	service *Service
	maxSize int64
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module          = (*Module)(nil)
	_ mono.UsePluginModule = (*Module)(nil)
)

// NewModule creates a new upload module.
func NewModule(maxSize int64, logger types.Logger) *Module {
	return &Module{
		maxSize: maxSize,
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "upload"
}

// SetPlugin receives the storage plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias == "storage" {
		storage, ok := plugin.(*fsjetstream.PluginModule)
		if !ok {
			m.logger.Error("Invalid plugin type for storage",
				"alias", alias,
				"expected", "*fsjetstream.PluginModule")
			return
		}
		m.storage = storage
		m.logger.Info("Received storage plugin", "alias", alias)
	}
}

// Start initializes the module and its service.
func (m *Module) Start(ctx context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("required plugin 'storage' not registered")
	}

	m.bucket = m.storage.Bucket(BucketName)
	if m.bucket == nil {
		return fmt.Errorf("bucket '%s' not found in storage plugin", BucketName)
	}

	service, err := NewService(m.bucket, m.maxSize)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	m.service = service

	m.logger.Info("Upload module started", "maxSize", m.service.MaxSize())
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("Upload module stopped")
	return nil
}

// Service returns the upload service instance.
func (m *Module) Service() *Service {
	return m.service
}

// Describe returns the stored descriptor for name.
func (m *Module) Describe(name string) (domain.FileDescriptor, error) {
	if m.service == nil {
		return domain.FileDescriptor{}, ErrNotStarted
	}
	return m.service.Describe(name)
}
