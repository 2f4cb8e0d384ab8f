package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Join(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")

	err := f.handle(t, "c2", EventJoin, JoinPayload{Username: "  bob  ", Avatar: "🐶"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		OutSession,
		OutOnlineUsers,
		OutRoomList,
		OutMessageHistory,
	}, f.out.typesTo("c2"))
	assert.Equal(t, []string{OutOnlineUsers, OutUserJoined}, f.out.typesTo("c1"))

	session := f.out.last(t, "c2", OutSession).(domain.Connection)
	assert.Equal(t, "bob", session.Username)
	assert.Equal(t, "🐶", session.Avatar)
	assert.Equal(t, DefaultRoomID, session.RoomID)

	online := f.out.last(t, "c1", OutOnlineUsers).([]domain.Connection)
	require.Len(t, online, 2)
	assert.Equal(t, "alice", online[0].Username)
	assert.Equal(t, "bob", online[1].Username)

	joined := f.out.last(t, "c1", OutUserJoined).(PresencePayload)
	assert.Equal(t, "c2", joined.UserID)
	assert.Equal(t, DefaultRoomID, joined.Room)

	history := f.out.last(t, "c2", OutMessageHistory).(HistoryPayload)
	assert.Equal(t, DefaultRoomID, history.Room)
	assert.Empty(t, history.Messages)

	require.Len(t, f.pub.events, 2)
	connected, ok := f.pub.events[1].(events.UserConnectedEvent)
	require.True(t, ok)
	assert.Equal(t, "bob", connected.Username)
}

func TestRouter_JoinRejected(t *testing.T) {
	tests := []struct {
		name     string
		payload  any
		wantCode string
	}{
		{name: "empty username", payload: JoinPayload{Username: "   "}, wantCode: CodeValidation},
		{name: "missing payload", payload: nil, wantCode: CodeBadRequest},
		{name: "wrong shape", payload: []int{1}, wantCode: CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			err := f.handle(t, "c1", EventJoin, tt.payload)

			var ee *EventError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.wantCode, ee.Code)
			assert.Equal(t, []string{OutError}, f.out.typesTo("c1"))
			assert.Equal(t, 0, f.state.Connections.Len())
		})
	}
}

func TestRouter_DuplicateJoin(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")

	err := f.handle(t, "c1", EventJoin, JoinPayload{Username: "alice"})
	assert.ErrorIs(t, err, ErrDuplicateJoin)

	payload := f.out.last(t, "c1", OutError).(ErrorPayload)
	assert.Equal(t, CodeDuplicateJoin, payload.Code)
	assert.Equal(t, EventJoin, payload.Event)
	assert.Equal(t, 1, f.state.Connections.Len())
}

func TestRouter_EventsBeforeJoinAreDropped(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")

	err := f.handle(t, "ghost", EventSendMessage, SendMessagePayload{Message: "boo"})
	require.NoError(t, err)

	assert.Empty(t, f.out.log)
	assert.Equal(t, 0, f.state.Messages.Len(DefaultRoomID))
}

func TestRouter_SendMessage(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")

	require.NoError(t, f.handle(t, "c1", EventSendMessage, SendMessagePayload{Message: "hi"}))

	for _, id := range []string{"c1", "c2"} {
		msg := f.out.last(t, id, OutNewMessage).(domain.Message)
		assert.Equal(t, "hi", msg.Text)
		assert.Equal(t, "alice", msg.Username)
		assert.Equal(t, "c1", msg.UserID)
		assert.Equal(t, DefaultRoomID, msg.RoomID)
		assert.Equal(t, domain.KindText, msg.Kind)
		assert.NotNil(t, msg.Reactions)
		assert.NotNil(t, msg.ReadBy)
	}
	assert.Equal(t, 1, f.state.Messages.Len(DefaultRoomID))

	posted, ok := f.pub.events[len(f.pub.events)-1].(events.MessagePostedEvent)
	require.True(t, ok)
	assert.Equal(t, "msg-1", posted.MessageID)
}

func TestRouter_SendMessageErrors(t *testing.T) {
	tests := []struct {
		name     string
		payload  SendMessagePayload
		wantCode string
	}{
		{name: "empty message", payload: SendMessagePayload{Message: ""}, wantCode: CodeValidation},
		{name: "unknown room", payload: SendMessagePayload{Message: "hi", Room: "nope"}, wantCode: CodeRoomNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.join(t, "c1", "alice")
			f.join(t, "c2", "bob")

			err := f.handle(t, "c1", EventSendMessage, tt.payload)
			require.Error(t, err)

			payload := f.out.last(t, "c1", OutError).(ErrorPayload)
			assert.Equal(t, tt.wantCode, payload.Code)
			assert.Empty(t, f.out.to("c2"))
			assert.Equal(t, 0, f.state.Messages.Len(DefaultRoomID))
		})
	}
}

func TestRouter_ReactionScenario(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")

	require.NoError(t, f.handle(t, "c1", EventSendMessage, SendMessagePayload{Message: "hi"}))
	msgID := f.out.last(t, "c2", OutNewMessage).(domain.Message).ID
	f.out.reset()

	react := ReactionPayload{MessageID: msgID, Reaction: "👍", Room: DefaultRoomID}
	require.NoError(t, f.handle(t, "c2", EventAddReaction, react))

	for _, id := range []string{"c1", "c2"} {
		msg := f.out.last(t, id, OutMessageUpdated).(domain.Message)
		assert.Equal(t, []string{"bob"}, msg.Reactions["👍"])
	}

	require.NoError(t, f.handle(t, "c2", EventAddReaction, react))
	msg := f.out.last(t, "c1", OutMessageUpdated).(domain.Message)
	assert.Empty(t, msg.Reactions["👍"])
}

func TestRouter_UnknownIDsReportErrors(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		payload   any
		wantCode  string
	}{
		{
			name:      "reaction to unknown message",
			eventType: EventAddReaction,
			payload:   ReactionPayload{MessageID: "nope", Reaction: "👍"},
			wantCode:  CodeMessageNotFound,
		},
		{
			name:      "mark unknown message",
			eventType: EventMarkAsRead,
			payload:   MarkReadPayload{MessageID: "nope"},
			wantCode:  CodeMessageNotFound,
		},
		{
			name:      "join unknown room",
			eventType: EventJoinRoom,
			payload:   JoinRoomPayload{RoomID: "nope"},
			wantCode:  CodeRoomNotFound,
		},
		{
			name:      "typing in unknown room",
			eventType: EventTyping,
			payload:   TypingPayload{IsTyping: true, Room: "nope"},
			wantCode:  CodeRoomNotFound,
		},
		{
			name:      "empty reaction",
			eventType: EventAddReaction,
			payload:   ReactionPayload{MessageID: "msg-1"},
			wantCode:  CodeValidation,
		},
		{
			name:      "invalid status",
			eventType: EventUpdateStatus,
			payload:   StatusPayload{Status: "sleeping"},
			wantCode:  CodeValidation,
		},
		{
			name:      "unknown event type",
			eventType: "shout",
			payload:   map[string]string{},
			wantCode:  CodeUnknownEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.join(t, "c1", "alice")
			f.join(t, "c2", "bob")

			err := f.handle(t, "c1", tt.eventType, tt.payload)
			var ee *EventError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.wantCode, ee.Code)

			assert.Equal(t, []string{OutError}, f.out.typesTo("c1"))
			payload := f.out.last(t, "c1", OutError).(ErrorPayload)
			assert.Equal(t, tt.eventType, payload.Event)
			assert.NotEmpty(t, payload.Message)
			assert.Empty(t, f.out.to("c2"))
		})
	}
}

func TestRouter_MarkAsReadAlwaysBroadcasts(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")
	require.NoError(t, f.handle(t, "c1", EventSendMessage, SendMessagePayload{Message: "hi"}))
	f.out.reset()

	mark := MarkReadPayload{MessageID: "msg-1"}
	require.NoError(t, f.handle(t, "c2", EventMarkAsRead, mark))
	require.NoError(t, f.handle(t, "c2", EventMarkAsRead, mark))

	assert.Equal(t, []string{OutMessageRead, OutMessageRead}, f.out.typesTo("c1"))
	receipt := f.out.last(t, "c1", OutMessageRead).(ReadReceiptPayload)
	assert.Equal(t, "msg-1", receipt.MessageID)
	assert.Equal(t, "bob", receipt.Username)
	assert.Equal(t, DefaultRoomID, receipt.Room)

	stored, err := f.state.Messages.Find(DefaultRoomID, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, stored.ReadBy)
}

func TestRouter_Typing(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")

	require.NoError(t, f.handle(t, "c1", EventTyping, TypingPayload{IsTyping: true}))

	assert.Empty(t, f.out.to("c1"), "sender is excluded")
	payload := f.out.last(t, "c2", OutTypingUsers).(TypingUsersPayload)
	assert.Equal(t, DefaultRoomID, payload.Room)
	assert.Equal(t, []string{"alice"}, payload.Users)

	require.NoError(t, f.handle(t, "c1", EventTyping, TypingPayload{IsTyping: false}))
	payload = f.out.last(t, "c2", OutTypingUsers).(TypingUsersPayload)
	assert.Empty(t, payload.Users)
}

func TestRouter_CreateRoomScenario(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")
	require.NoError(t, f.handle(t, "c1", EventTyping, TypingPayload{IsTyping: true}))
	f.out.reset()

	require.NoError(t, f.handle(t, "c1", EventCreateRoom, CreateRoomPayload{Name: "devs"}))

	assert.Equal(t, []string{OutRoomList, OutRoomCreated}, f.out.typesTo("c1"))
	assert.Equal(t, []string{OutUserLeftRoom, OutTypingUsers, OutRoomList}, f.out.typesTo("c2"))

	room := f.out.last(t, "c1", OutRoomCreated).(domain.Room)
	assert.Equal(t, "devs", room.Name)
	assert.Equal(t, "alice", room.CreatedBy)

	list := f.out.last(t, "c2", OutRoomList).([]domain.Room)
	require.Len(t, list, 2)
	assert.Equal(t, room.ID, list[1].ID)

	conn, ok := f.state.Connections.Resolve("c1")
	require.True(t, ok)
	assert.Equal(t, room.ID, conn.RoomID)
	assert.Empty(t, f.state.Typing.Users(DefaultRoomID))
	assert.Equal(t, 0, f.state.Messages.Len(room.ID))

	created, ok := f.pub.events[len(f.pub.events)-1].(events.RoomCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, room.ID, created.RoomID)

	// Messages now go to the new room only.
	f.out.reset()
	require.NoError(t, f.handle(t, "c1", EventSendMessage, SendMessagePayload{Message: "hello devs"}))
	assert.Equal(t, []string{OutNewMessage}, f.out.typesTo("c1"))
	assert.Empty(t, f.out.to("c2"))
}

func TestRouter_JoinRoom(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")
	require.NoError(t, f.handle(t, "c1", EventCreateRoom, CreateRoomPayload{Name: "devs"}))
	roomID := f.out.last(t, "c1", OutRoomCreated).(domain.Room).ID
	require.NoError(t, f.handle(t, "c1", EventSendMessage, SendMessagePayload{Message: "first"}))
	f.out.reset()

	require.NoError(t, f.handle(t, "c2", EventJoinRoom, JoinRoomPayload{RoomID: roomID}))

	assert.Equal(t, []string{OutUserJoinedRoom}, f.out.typesTo("c1"))
	assert.Equal(t, []string{OutMessageHistory}, f.out.typesTo("c2"))

	history := f.out.last(t, "c2", OutMessageHistory).(HistoryPayload)
	assert.Equal(t, roomID, history.Room)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "first", history.Messages[0].Text)

	// Re-joining the current room only refreshes history.
	f.out.reset()
	require.NoError(t, f.handle(t, "c2", EventJoinRoom, JoinRoomPayload{RoomID: roomID}))
	assert.Empty(t, f.out.to("c1"))
	assert.Equal(t, []string{OutMessageHistory}, f.out.typesTo("c2"))
}

func TestRouter_PrivateMessage(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")
	f.join(t, "c3", "charlie")

	require.NoError(t, f.handle(t, "c1", EventPrivateMessage, PrivateMessagePayload{To: "c2", Message: "psst"}))

	received := f.out.last(t, "c2", OutPrivateMessage).(domain.Message)
	assert.Equal(t, "psst", received.Text)
	assert.Equal(t, "c2", received.To)
	assert.Equal(t, domain.KindPrivate, received.Kind)

	echoed := f.out.last(t, "c1", OutPrivateMessageSent).(domain.Message)
	assert.Equal(t, received.ID, echoed.ID)

	assert.Empty(t, f.out.to("c3"))
	assert.Equal(t, 0, f.state.Messages.Len(DefaultRoomID), "private messages are not stored")
}

func TestRouter_PrivateMessageToOfflineIsDropped(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")

	require.NoError(t, f.handle(t, "c1", EventPrivateMessage, PrivateMessagePayload{To: "gone", Message: "psst"}))
	assert.Empty(t, f.out.log)
}

func TestRouter_FileUploaded(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")

	file := domain.FileDescriptor{
		Filename:     "1700000000000-abc.png",
		OriginalName: "cat.png",
		Size:         42,
		MimeType:     "image/png",
		URL:          "/uploads/1700000000000-abc.png",
	}
	require.NoError(t, f.handle(t, "c1", EventFileUploaded, FileUploadedPayload{FileData: file}))

	msg := f.out.last(t, "c2", OutNewMessage).(domain.Message)
	assert.Equal(t, domain.KindFile, msg.Kind)
	require.NotNil(t, msg.File)
	assert.Equal(t, file, *msg.File)
	assert.Equal(t, 1, f.state.Messages.Len(DefaultRoomID))

	err := f.handle(t, "c1", EventFileUploaded, FileUploadedPayload{})
	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestRouter_FileUploadedUsesStoredDescriptor(t *testing.T) {
	stored := domain.FileDescriptor{
		Filename:     "1700000000000-abc.png",
		OriginalName: "cat.png",
		Size:         42,
		MimeType:     "image/png",
		URL:          "/uploads/1700000000000-abc.png",
	}
	resolver := func(name string) (domain.FileDescriptor, error) {
		if name != stored.Filename {
			return domain.FileDescriptor{}, errors.New("no such object")
		}
		return stored, nil
	}
	f := newRouterFixture(t, WithFileResolver(resolver))
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")

	// Client fields other than the filename are replaced by what was stored.
	claimed := stored
	claimed.URL = "https://evil.example/payload.exe"
	claimed.Size = 1
	require.NoError(t, f.handle(t, "c1", EventFileUploaded, FileUploadedPayload{FileData: claimed}))

	msg := f.out.last(t, "c2", OutNewMessage).(domain.Message)
	require.NotNil(t, msg.File)
	assert.Equal(t, stored, *msg.File)
	f.out.reset()

	forged := domain.FileDescriptor{
		Filename: "never-uploaded.exe",
		Size:     1,
		URL:      "https://evil.example/payload.exe",
	}
	err := f.handle(t, "c1", EventFileUploaded, FileUploadedPayload{FileData: forged})
	require.ErrorIs(t, err, ErrFileNotFound)
	var ee *EventError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, CodeFileNotFound, ee.Code)

	assert.Empty(t, f.out.to("c2"), "nothing is broadcast for an unknown file")
	assert.Equal(t, 1, f.state.Messages.Len(DefaultRoomID))
}

func TestRouter_UpdateStatus(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")

	require.NoError(t, f.handle(t, "c1", EventUpdateStatus, StatusPayload{Status: "away"}))

	for _, id := range []string{"c1", "c2"} {
		payload := f.out.last(t, id, OutStatusChanged).(StatusChangedPayload)
		assert.Equal(t, domain.StatusAway, payload.Status)
		assert.Equal(t, "alice", payload.Username)
	}
	conn, _ := f.state.Connections.Resolve("c1")
	assert.Equal(t, domain.StatusAway, conn.Status)
}

func TestRouter_DisconnectScenario(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")
	require.NoError(t, f.handle(t, "c1", EventTyping, TypingPayload{IsTyping: true}))
	f.out.reset()

	require.NoError(t, f.handle(t, "c1", EventDisconnect, nil))

	assert.Equal(t, []string{OutTypingUsers, OutUserLeft, OutOnlineUsers}, f.out.typesTo("c2"))
	assert.Empty(t, f.out.to("c1"))

	typing := f.out.last(t, "c2", OutTypingUsers).(TypingUsersPayload)
	assert.Empty(t, typing.Users)
	left := f.out.last(t, "c2", OutUserLeft).(PresencePayload)
	assert.Equal(t, "alice", left.Username)
	online := f.out.last(t, "c2", OutOnlineUsers).([]domain.Connection)
	require.Len(t, online, 1)
	assert.Equal(t, "bob", online[0].Username)

	_, ok := f.state.Connections.Resolve("c1")
	assert.False(t, ok)

	disconnected, ok := f.pub.events[len(f.pub.events)-1].(events.UserDisconnectedEvent)
	require.True(t, ok)
	assert.Equal(t, "alice", disconnected.Username)

	// A second disconnect for the same id is a no-op.
	f.out.reset()
	require.NoError(t, f.handle(t, "c1", EventDisconnect, nil))
	assert.Empty(t, f.out.log)
}

func TestRouter_DisconnectClearsTypingInEveryRoom(t *testing.T) {
	f := newRouterFixture(t)
	f.join(t, "c1", "alice")
	f.join(t, "c2", "bob")
	f.join(t, "c3", "carol")

	require.NoError(t, f.handle(t, "c1", EventCreateRoom, CreateRoomPayload{Name: "devs"}))
	devs := f.out.last(t, "c1", OutRoomCreated).(domain.Room).ID
	require.NoError(t, f.handle(t, "c3", EventJoinRoom, JoinRoomPayload{RoomID: devs}))

	require.NoError(t, f.handle(t, "c1", EventTyping, TypingPayload{IsTyping: true}))
	require.NoError(t, f.handle(t, "c1", EventTyping, TypingPayload{IsTyping: true, Room: DefaultRoomID}))
	require.True(t, f.state.Typing.IsTyping(devs, "alice"))
	require.True(t, f.state.Typing.IsTyping(DefaultRoomID, "alice"))
	f.out.reset()

	require.NoError(t, f.handle(t, "c1", EventDisconnect, nil))

	tests := []struct {
		connID string
		room   string
	}{
		{connID: "c2", room: DefaultRoomID},
		{connID: "c3", room: devs},
	}
	for _, tt := range tests {
		t.Run(tt.room, func(t *testing.T) {
			typing := f.out.last(t, tt.connID, OutTypingUsers).(TypingUsersPayload)
			assert.Equal(t, tt.room, typing.Room)
			assert.Empty(t, typing.Users)
			assert.False(t, f.state.Typing.IsTyping(tt.room, "alice"))
		})
	}

	assert.Equal(t, []string{OutTypingUsers, OutUserLeft, OutOnlineUsers}, f.out.typesTo("c3"))
	assert.Equal(t, []string{OutTypingUsers, OutOnlineUsers}, f.out.typesTo("c2"))
}

func TestRouter_HistoryLimitOption(t *testing.T) {
	f := newRouterFixture(t, WithHistoryLimit(2))
	f.join(t, "c1", "alice")
	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, f.handle(t, "c1", EventSendMessage, SendMessagePayload{Message: text}))
	}

	f.join(t, "c2", "bob")
	require.NoError(t, f.handle(t, "c2", EventJoinRoom, JoinRoomPayload{RoomID: DefaultRoomID}))

	history := f.out.last(t, "c2", OutMessageHistory).(HistoryPayload)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "two", history.Messages[0].Text)
	assert.Equal(t, "three", history.Messages[1].Text)
}

func TestRouter_PublishFailureDoesNotFailEvent(t *testing.T) {
	f := newRouterFixture(t)
	f.pub.err = errors.New("bus down")

	require.NoError(t, f.handle(t, "c1", EventJoin, JoinPayload{Username: "alice"}))
	assert.Equal(t, 1, f.state.Connections.Len())
}

type panickingDeliverer struct{}

func (panickingDeliverer) Deliver([]string, string, any) { panic("boom") }

func TestRouter_HandleRecoversPanics(t *testing.T) {
	state := NewState(testEpoch)
	router := NewRouter(state, panickingDeliverer{}, &mockLogger{})

	err := router.Handle("c1", EventJoin, json.RawMessage(`{"username":"alice"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRouter_RunSerializesDispatchAndQuery(t *testing.T) {
	f := newRouterFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	go f.router.Run(ctx)

	require.NoError(t, f.router.Dispatch(ctx, "c1", EventJoin, payloadOf(t, JoinPayload{Username: "alice"})))

	err := f.router.Dispatch(ctx, "c1", EventSendMessage, payloadOf(t, SendMessagePayload{Message: ""}))
	assert.ErrorIs(t, err, ErrMessageEmpty)

	var online int
	require.NoError(t, f.router.Query(ctx, func(s *State) {
		online = s.Connections.Len()
	}))
	assert.Equal(t, 1, online)

	cancel()
	f.router.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	err = f.router.Query(stopCtx, func(*State) {})
	assert.ErrorIs(t, err, ErrRouterStopped)
}
