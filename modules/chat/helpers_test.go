package chat

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// delivery is one recorded Deliver call fanned out to a single target.
type delivery struct {
	target    string
	eventType string
	payload   any
}

// recordingDeliverer captures every outbound event per target.
type recordingDeliverer struct {
	log []delivery
}

func (d *recordingDeliverer) Deliver(targets []string, eventType string, payload any) {
	for _, target := range targets {
		d.log = append(d.log, delivery{target: target, eventType: eventType, payload: payload})
	}
}

// to returns the events delivered to target, in order.
func (d *recordingDeliverer) to(target string) []delivery {
	var result []delivery
	for _, dl := range d.log {
		if dl.target == target {
			result = append(result, dl)
		}
	}
	return result
}

// typesTo returns the event types delivered to target, in order.
func (d *recordingDeliverer) typesTo(target string) []string {
	var result []string
	for _, dl := range d.to(target) {
		result = append(result, dl.eventType)
	}
	return result
}

// last returns the last event of eventType delivered to target.
func (d *recordingDeliverer) last(t *testing.T, target, eventType string) any {
	t.Helper()
	deliveries := d.to(target)
	for i := len(deliveries) - 1; i >= 0; i-- {
		if deliveries[i].eventType == eventType {
			return deliveries[i].payload
		}
	}
	t.Fatalf("no %q delivered to %s", eventType, target)
	return nil
}

func (d *recordingDeliverer) reset() {
	d.log = nil
}

// recordingPublisher captures domain events.
type recordingPublisher struct {
	events []any
	err    error
}

func (p *recordingPublisher) Publish(event any) error {
	p.events = append(p.events, event)
	return p.err
}

var testEpoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type routerFixture struct {
	router *Router
	state  *State
	out    *recordingDeliverer
	pub    *recordingPublisher
	ids    int
}

func newRouterFixture(t *testing.T, opts ...Option) *routerFixture {
	t.Helper()
	f := &routerFixture{
		state: NewState(testEpoch),
		out:   &recordingDeliverer{},
		pub:   &recordingPublisher{},
	}
	base := []Option{
		WithPublisher(f.pub),
		WithClock(func() time.Time { return testEpoch }),
		WithIDGenerator(func() string {
			f.ids++
			return fmt.Sprintf("msg-%d", f.ids)
		}),
	}
	f.router = NewRouter(f.state, f.out, &mockLogger{}, append(base, opts...)...)
	return f
}

func payloadOf(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func (f *routerFixture) handle(t *testing.T, connID, eventType string, payload any) error {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		raw = payloadOf(t, payload)
	}
	return f.router.Handle(connID, eventType, raw)
}

// join registers connID as username and clears recorded output.
func (f *routerFixture) join(t *testing.T, connID, username string) {
	t.Helper()
	require.NoError(t, f.handle(t, connID, EventJoin, JoinPayload{Username: username}))
	f.out.reset()
}
