package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Deliverer sends an outbound event to a set of connection ids.
type Deliverer interface {
	Deliver(targets []string, eventType string, payload any)
}

// Publisher receives domain events from the router (see package events).
type Publisher interface {
	Publish(event any) error
}

// Option configures a Router.
type Option func(*Router)

// WithPublisher sets the domain event publisher.
func WithPublisher(p Publisher) Option {
	return func(r *Router) { r.pub = p }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(r *Router) { r.clock = clock }
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Router) { r.newID = gen }
}

// FileResolver looks up the stored descriptor for an uploaded file name.
type FileResolver func(filename string) (domain.FileDescriptor, error)

// WithFileResolver makes file_uploaded events reference only files the
// upload store knows about. The stored descriptor replaces the client's.
func WithFileResolver(resolve FileResolver) Option {
	return func(r *Router) { r.resolveFile = resolve }
}

// WithHistoryLimit sets how many messages hydrate a client on join or room switch.
func WithHistoryLimit(limit int) Option {
	return func(r *Router) {
		if limit > 0 {
			r.historyLimit = limit
		}
	}
}

// WithInboxSize sets the inbox buffer of the Run loop.
func WithInboxSize(size int) Option {
	return func(r *Router) {
		if size >= 0 {
			r.inbox = make(chan request, size)
		}
	}
}

type request struct {
	fn   func()
	done chan struct{}
}

// Router dispatches client events against the state it owns.
//
// Handle runs an event to completion on the caller's goroutine. Run serializes
// Dispatch and Query calls from many goroutines onto a single loop, so the
// registries never need locks.
type Router struct {
	state        *State
	out          Deliverer
	pub          Publisher
	logger       types.Logger
	clock        func() time.Time
	newID        func() string
	resolveFile  FileResolver
	historyLimit int
	inbox        chan request
	done         chan struct{}
}

// NewRouter creates a router over state.
func NewRouter(state *State, out Deliverer, logger types.Logger, opts ...Option) *Router {
	r := &Router{
		state:        state,
		out:          out,
		logger:       logger,
		clock:        time.Now,
		newID:        uuid.NewString,
		historyLimit: DefaultHistoryLimit,
		inbox:        make(chan request, 256),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes queued work until ctx is cancelled.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Router shutting down")
			close(r.done)
			return
		case req := <-r.inbox:
			req.fn()
			close(req.done)
		}
	}
}

// Wait blocks until Run has returned.
func (r *Router) Wait() {
	<-r.done
}

func (r *Router) submit(ctx context.Context, fn func()) error {
	select {
	case <-r.done:
		return ErrRouterStopped
	default:
	}
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case r.inbox <- req:
	case <-r.done:
		return ErrRouterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-r.done:
		select {
		case <-req.done:
			return nil
		default:
			return ErrRouterStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch queues an event for the Run loop and waits for it to be handled.
func (r *Router) Dispatch(ctx context.Context, connID, eventType string, payload json.RawMessage) error {
	var handleErr error
	if err := r.submit(ctx, func() {
		handleErr = r.Handle(connID, eventType, payload)
	}); err != nil {
		return err
	}
	return handleErr
}

// Query runs fn on the Run loop with read access to the state.
func (r *Router) Query(ctx context.Context, fn func(*State)) error {
	return r.submit(ctx, func() { fn(r.state) })
}

// Handle processes one event from connID. Rejections are reported to the
// sender as an "error" event and returned as *EventError.
func (r *Router) Handle(connID, eventType string, payload json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Recovered panic in event handler",
				"event", eventType,
				"connID", connID,
				"panic", rec)
			err = fmt.Errorf("panic handling %s: %v", eventType, rec)
		}
	}()

	if eventType == EventJoin {
		err = r.handleJoin(connID, payload)
	} else {
		conn, ok := r.state.Connections.Resolve(connID)
		if !ok {
			r.logger.Debug("Dropping event from connection without identity",
				"event", eventType,
				"connID", connID)
			return nil
		}
		switch eventType {
		case EventSendMessage:
			err = r.handleSendMessage(conn, payload)
		case EventTyping:
			err = r.handleTyping(conn, payload)
		case EventPrivateMessage:
			err = r.handlePrivateMessage(conn, payload)
		case EventAddReaction:
			err = r.handleAddReaction(conn, payload)
		case EventMarkAsRead:
			err = r.handleMarkAsRead(conn, payload)
		case EventJoinRoom:
			err = r.handleJoinRoom(conn, payload)
		case EventCreateRoom:
			err = r.handleCreateRoom(conn, payload)
		case EventFileUploaded:
			err = r.handleFileUploaded(conn, payload)
		case EventUpdateStatus:
			err = r.handleUpdateStatus(conn, payload)
		case EventDisconnect:
			r.handleDisconnect(conn)
		default:
			err = fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
		}
	}

	if err != nil {
		ee := eventErr(eventType, err)
		r.logger.Debug("Event rejected",
			"event", eventType,
			"connID", connID,
			"code", ee.Code,
			"error", err)
		r.send([]string{connID}, OutError, ErrorPayload{
			Event:   eventType,
			Code:    ee.Code,
			Message: err.Error(),
		})
		return ee
	}
	return nil
}

func (r *Router) send(targets []string, eventType string, payload any) {
	if len(targets) == 0 {
		return
	}
	r.out.Deliver(targets, eventType, payload)
}

func (r *Router) publish(event any) {
	if r.pub == nil {
		return
	}
	if err := r.pub.Publish(event); err != nil {
		r.logger.Warn("Failed to publish domain event",
			"event", fmt.Sprintf("%T", event),
			"error", err)
	}
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, fmt.Errorf("%w: empty payload", ErrMalformedEvent)
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return v, nil
}

func without(ids []string, id string) []string {
	result := make([]string, 0, len(ids))
	for _, cid := range ids {
		if cid != id {
			result = append(result, cid)
		}
	}
	return result
}
