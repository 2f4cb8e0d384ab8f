package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/realtime-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module hosts the router and exposes it through request-reply services.
type Module struct {
	state     *State
	router    *Router
	deliverer Deliverer
	eventBus  mono.EventBus
	logger    types.Logger
	cancel    context.CancelFunc
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new chat module. Extra router options are applied last.
func NewModule(logger types.Logger, historyLimit int, opts ...Option) *Module {
	m := &Module{
		state:  NewState(time.Now()),
		logger: logger,
	}
	opts = append([]Option{
		WithPublisher(m),
		WithHistoryLimit(historyLimit),
	}, opts...)
	m.router = NewRouter(m.state, m, logger, opts...)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetDeliverer sets the transport outbound events go to (called from main.go).
func (m *Module) SetDeliverer(d Deliverer) {
	m.deliverer = d
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserConnectedV1.ToBase(),
		events.UserDisconnectedV1.ToBase(),
		events.StatusChangedV1.ToBase(),
		events.MessagePostedV1.ToBase(),
		events.RoomCreatedV1.ToBase(),
	}
}

// RegisterServices registers the dispatch and query services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDispatch, json.Unmarshal, json.Marshal, m.handleDispatch,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDispatch, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListMessages, json.Unmarshal, json.Marshal, m.handleListMessages,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListMessages, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListConnections, json.Unmarshal, json.Marshal, m.handleListConnections,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListConnections, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.handleListRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceStats, json.Unmarshal, json.Marshal, m.handleStats,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceStats, err)
	}

	return nil
}

// Start runs the router loop.
func (m *Module) Start(_ context.Context) error {
	if m.deliverer == nil {
		return fmt.Errorf("deliverer dependency not set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.router.Run(ctx)

	m.logger.Info("Chat module started", "defaultRoom", DefaultRoomID)
	return nil
}

// Stop stops the router loop.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
		m.router.Wait()
	}
	m.logger.Info("Chat module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var online, rooms int
	if err := m.router.Query(ctx, func(s *State) {
		online = s.Connections.Len()
		rooms = s.Rooms.Len()
	}); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: err.Error(),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"online_users": online,
			"rooms":        rooms,
		},
	}
}

// Router returns the event router.
func (m *Module) Router() *Router {
	return m.router
}

// Deliver forwards outbound events to the configured transport.
func (m *Module) Deliver(targets []string, eventType string, payload any) {
	if m.deliverer == nil {
		return
	}
	m.deliverer.Deliver(targets, eventType, payload)
}

// Publish sends a domain event on the EventBus.
func (m *Module) Publish(event any) error {
	if m.eventBus == nil {
		return nil
	}
	switch e := event.(type) {
	case events.UserConnectedEvent:
		return events.UserConnectedV1.Publish(m.eventBus, e, nil)
	case events.UserDisconnectedEvent:
		return events.UserDisconnectedV1.Publish(m.eventBus, e, nil)
	case events.StatusChangedEvent:
		return events.StatusChangedV1.Publish(m.eventBus, e, nil)
	case events.MessagePostedEvent:
		return events.MessagePostedV1.Publish(m.eventBus, e, nil)
	case events.RoomCreatedEvent:
		return events.RoomCreatedV1.Publish(m.eventBus, e, nil)
	default:
		return fmt.Errorf("unsupported event type %T", event)
	}
}
