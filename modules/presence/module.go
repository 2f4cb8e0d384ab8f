package presence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/realtime-chat/events"
	"github.com/go-monolith/mono"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// BucketName is the KV bucket presence records live in.
const BucketName = "presence"

// Module records last-seen presence from chat events.
type Module struct {
	kv     *kvjetstream.PluginModule
	store  *Store
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule creates a new presence module.
func NewModule(logger types.Logger) *Module {
	return &Module{logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "presence"
}

// SetPlugin receives the KV plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias == "kv" {
		kv, ok := plugin.(*kvjetstream.PluginModule)
		if !ok {
			m.logger.Error("Invalid plugin type for kv",
				"alias", alias,
				"expected", "*kvjetstream.PluginModule")
			return
		}
		m.kv = kv
		m.logger.Info("Received KV plugin", "alias", alias)
	}
}

// Start binds the presence bucket.
func (m *Module) Start(ctx context.Context) error {
	if m.kv == nil {
		return fmt.Errorf("required plugin 'kv' not registered")
	}

	bucket := m.kv.Bucket(BucketName)
	if bucket == nil {
		return fmt.Errorf("bucket '%s' not found in KV plugin", BucketName)
	}
	m.store = NewStore(bucket)

	m.logger.Info("Presence module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("Presence module stopped")
	return nil
}

// RegisterServices registers the last-seen lookup.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLastSeen, json.Unmarshal, json.Marshal, m.handleLastSeen,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLastSeen, err)
	}
	return nil
}

// RegisterEventConsumers subscribes to connection lifecycle events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserConnectedV1, m.handleUserConnected, m,
	); err != nil {
		return fmt.Errorf("failed to register UserConnected consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserDisconnectedV1, m.handleUserDisconnected, m,
	); err != nil {
		return fmt.Errorf("failed to register UserDisconnected consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.StatusChangedV1, m.handleStatusChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register StatusChanged consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessagePostedV1, m.handleMessagePosted, m,
	); err != nil {
		return fmt.Errorf("failed to register MessagePosted consumer: %w", err)
	}

	m.logger.Info("Registered presence event consumers")
	return nil
}

func (m *Module) handleUserConnected(_ context.Context, event events.UserConnectedEvent, _ *mono.Msg) error {
	_, err := m.store.Update(event.Username, func(r *Record) {
		r.Connections++
		r.Online = true
		r.Status = "online"
		r.LastSeen = event.Timestamp
	})
	if err != nil {
		m.logger.Error("Failed to record connect", "username", event.Username, "error", err)
	}
	return err
}

func (m *Module) handleUserDisconnected(_ context.Context, event events.UserDisconnectedEvent, _ *mono.Msg) error {
	_, err := m.store.Update(event.Username, func(r *Record) {
		if r.Connections > 0 {
			r.Connections--
		}
		r.Online = r.Connections > 0
		r.Status = event.Status
		r.LastSeen = event.Timestamp
	})
	if err != nil {
		m.logger.Error("Failed to record disconnect", "username", event.Username, "error", err)
	}
	return err
}

func (m *Module) handleStatusChanged(_ context.Context, event events.StatusChangedEvent, _ *mono.Msg) error {
	_, err := m.store.Update(event.Username, func(r *Record) {
		r.Status = event.Status
		r.LastSeen = event.Timestamp
	})
	if err != nil {
		m.logger.Error("Failed to record status", "username", event.Username, "error", err)
	}
	return err
}

// handleMessagePosted counts posting as activity.
func (m *Module) handleMessagePosted(_ context.Context, event events.MessagePostedEvent, _ *mono.Msg) error {
	_, err := m.store.Update(event.Username, func(r *Record) {
		r.LastSeen = event.Timestamp
	})
	if err != nil {
		m.logger.Error("Failed to record activity", "username", event.Username, "error", err)
	}
	return err
}

func (m *Module) handleLastSeen(_ context.Context, req LastSeenRequest, _ *mono.Msg) (LastSeenResponse, error) {
	rec, found, err := m.store.Get(req.Username)
	if err != nil {
		return LastSeenResponse{}, err
	}
	return LastSeenResponse{Found: found, Record: rec}, nil
}
