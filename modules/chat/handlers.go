package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
)

func (r *Router) handleJoin(connID string, payload json.RawMessage) error {
	p, err := decode[JoinPayload](payload)
	if err != nil {
		return err
	}
	username := strings.TrimSpace(p.Username)
	if err := ValidateUsername(username); err != nil {
		return err
	}

	now := r.clock()
	conn, err := r.state.Connections.Register(connID, username, p.Avatar, DefaultRoomID, now)
	if err != nil {
		return err
	}

	self := []string{connID}
	r.send(self, OutSession, conn)
	r.send(r.state.Connections.IDs(), OutOnlineUsers, r.state.Connections.List())
	r.send(without(r.state.Connections.InRoom(DefaultRoomID), connID), OutUserJoined, presenceOf(conn))
	r.send(self, OutRoomList, r.state.Rooms.List())
	r.send(self, OutMessageHistory, HistoryPayload{
		Room:     DefaultRoomID,
		Messages: r.state.Messages.Recent(DefaultRoomID, r.historyLimit),
	})

	r.logger.Info("User joined", "connID", connID, "username", username)
	r.publish(events.UserConnectedEvent{
		ConnectionID: connID,
		Username:     username,
		RoomID:       DefaultRoomID,
		Timestamp:    now,
	})
	return nil
}

func (r *Router) handleSendMessage(conn domain.Connection, payload json.RawMessage) error {
	p, err := decode[SendMessagePayload](payload)
	if err != nil {
		return err
	}
	roomID, err := r.roomOf(conn, p.Room)
	if err != nil {
		return err
	}
	if err := ValidateMessage(p.Message); err != nil {
		return err
	}

	msg := r.newMessage(conn, domain.KindText)
	msg.RoomID = roomID
	msg.Text = p.Message
	r.post(msg)
	return nil
}

func (r *Router) handleTyping(conn domain.Connection, payload json.RawMessage) error {
	p, err := decode[TypingPayload](payload)
	if err != nil {
		return err
	}
	roomID, err := r.roomOf(conn, p.Room)
	if err != nil {
		return err
	}

	users := r.state.Typing.SetTyping(roomID, conn.Username, p.IsTyping)
	r.send(without(r.state.Connections.InRoom(roomID), conn.ID), OutTypingUsers, TypingUsersPayload{
		Room:  roomID,
		Users: users,
	})
	return nil
}

func (r *Router) handlePrivateMessage(conn domain.Connection, payload json.RawMessage) error {
	p, err := decode[PrivateMessagePayload](payload)
	if err != nil {
		return err
	}
	if err := ValidateMessage(p.Message); err != nil {
		return err
	}

	if _, ok := r.state.Connections.Resolve(p.To); !ok {
		r.logger.Debug("Dropping private message to offline connection",
			"from", conn.ID,
			"to", p.To)
		return nil
	}

	msg := r.newMessage(conn, domain.KindPrivate)
	msg.To = p.To
	msg.Text = p.Message
	r.send([]string{p.To}, OutPrivateMessage, msg)
	r.send([]string{conn.ID}, OutPrivateMessageSent, msg)
	return nil
}

func (r *Router) handleAddReaction(conn domain.Connection, payload json.RawMessage) error {
	p, err := decode[ReactionPayload](payload)
	if err != nil {
		return err
	}
	if p.Reaction == "" {
		return ErrReactionEmpty
	}
	roomID, err := r.roomOf(conn, p.Room)
	if err != nil {
		return err
	}

	msg, err := r.state.Messages.ToggleReaction(roomID, p.MessageID, p.Reaction, conn.Username)
	if err != nil {
		return err
	}
	r.send(r.state.Connections.InRoom(roomID), OutMessageUpdated, msg)
	return nil
}

func (r *Router) handleMarkAsRead(conn domain.Connection, payload json.RawMessage) error {
	p, err := decode[MarkReadPayload](payload)
	if err != nil {
		return err
	}
	roomID, err := r.roomOf(conn, p.Room)
	if err != nil {
		return err
	}

	if _, _, err := r.state.Messages.MarkRead(roomID, p.MessageID, conn.Username); err != nil {
		return err
	}
	r.send(r.state.Connections.InRoom(roomID), OutMessageRead, ReadReceiptPayload{
		MessageID: p.MessageID,
		Room:      roomID,
		UserID:    conn.ID,
		Username:  conn.Username,
	})
	return nil
}

func (r *Router) handleJoinRoom(conn domain.Connection, payload json.RawMessage) error {
	p, err := decode[JoinRoomPayload](payload)
	if err != nil {
		return err
	}
	if _, ok := r.state.Rooms.Get(p.RoomID); !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, p.RoomID)
	}

	if p.RoomID != conn.RoomID {
		conn = r.moveTo(conn, p.RoomID)
		r.send(without(r.state.Connections.InRoom(p.RoomID), conn.ID), OutUserJoinedRoom, presenceOf(conn))
	}
	r.send([]string{conn.ID}, OutMessageHistory, HistoryPayload{
		Room:     p.RoomID,
		Messages: r.state.Messages.Recent(p.RoomID, r.historyLimit),
	})
	return nil
}

func (r *Router) handleCreateRoom(conn domain.Connection, payload json.RawMessage) error {
	p, err := decode[CreateRoomPayload](payload)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(p.Name)
	if err := ValidateRoomName(name); err != nil {
		return err
	}

	room := r.state.Rooms.Create(name, conn.Username, p.IsPrivate, r.clock())
	r.state.Messages.Ensure(room.ID)
	r.state.Typing.Ensure(room.ID)
	r.moveTo(conn, room.ID)

	r.send(r.state.Connections.IDs(), OutRoomList, r.state.Rooms.List())
	r.send([]string{conn.ID}, OutRoomCreated, room)

	r.logger.Info("Room created", "roomID", room.ID, "name", room.Name, "createdBy", conn.Username)
	r.publish(events.RoomCreatedEvent{
		RoomID:    room.ID,
		RoomName:  room.Name,
		CreatedBy: conn.Username,
		IsPrivate: room.IsPrivate,
		Timestamp: room.CreatedAt,
	})
	return nil
}

func (r *Router) handleFileUploaded(conn domain.Connection, payload json.RawMessage) error {
	p, err := decode[FileUploadedPayload](payload)
	if err != nil {
		return err
	}
	roomID, err := r.roomOf(conn, p.Room)
	if err != nil {
		return err
	}
	if err := ValidateFile(p.FileData); err != nil {
		return err
	}

	file := p.FileData
	if r.resolveFile != nil {
		stored, err := r.resolveFile(file.Filename)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrFileNotFound, file.Filename, err)
		}
		file = stored
	}
	msg := r.newMessage(conn, domain.KindFile)
	msg.RoomID = roomID
	msg.File = &file
	r.post(msg)
	return nil
}

func (r *Router) handleUpdateStatus(conn domain.Connection, payload json.RawMessage) error {
	p, err := decode[StatusPayload](payload)
	if err != nil {
		return err
	}
	status := domain.Status(p.Status)
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, p.Status)
	}

	r.state.Connections.SetStatus(conn.ID, status)
	r.send(r.state.Connections.IDs(), OutStatusChanged, StatusChangedPayload{
		UserID:   conn.ID,
		Username: conn.Username,
		Status:   status,
	})
	r.publish(events.StatusChangedEvent{
		ConnectionID: conn.ID,
		Username:     conn.Username,
		Status:       string(status),
		Timestamp:    r.clock(),
	})
	return nil
}

func (r *Router) handleDisconnect(conn domain.Connection) {
	changed := r.state.Typing.ClearUser(conn.Username)
	r.state.Connections.Unregister(conn.ID)

	for _, roomID := range changed {
		r.send(r.state.Connections.InRoom(roomID), OutTypingUsers, TypingUsersPayload{
			Room:  roomID,
			Users: r.state.Typing.Users(roomID),
		})
	}
	r.send(r.state.Connections.InRoom(conn.RoomID), OutUserLeft, presenceOf(conn))
	r.send(r.state.Connections.IDs(), OutOnlineUsers, r.state.Connections.List())

	r.logger.Info("User left", "connID", conn.ID, "username", conn.Username, "roomID", conn.RoomID)
	r.publish(events.UserDisconnectedEvent{
		ConnectionID: conn.ID,
		Username:     conn.Username,
		RoomID:       conn.RoomID,
		Status:       string(conn.Status),
		Timestamp:    r.clock(),
	})
}

// roomOf resolves the room an event targets, defaulting to the sender's room.
func (r *Router) roomOf(conn domain.Connection, roomID string) (string, error) {
	if roomID == "" {
		roomID = conn.RoomID
	}
	if _, ok := r.state.Rooms.Get(roomID); !ok {
		return "", fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return roomID, nil
}

// moveTo switches conn to roomID and tells the old room it left.
func (r *Router) moveTo(conn domain.Connection, roomID string) domain.Connection {
	old := conn.RoomID
	wasTyping := r.state.Typing.IsTyping(old, conn.Username)
	if wasTyping {
		r.state.Typing.SetTyping(old, conn.Username, false)
	}
	moved, _ := r.state.Connections.Move(conn.ID, roomID)

	remaining := r.state.Connections.InRoom(old)
	r.send(remaining, OutUserLeftRoom, presenceOf(conn))
	if wasTyping {
		r.send(remaining, OutTypingUsers, TypingUsersPayload{
			Room:  old,
			Users: r.state.Typing.Users(old),
		})
	}
	return moved
}

func (r *Router) newMessage(conn domain.Connection, kind domain.MessageKind) domain.Message {
	return domain.Message{
		ID:        r.newID(),
		Username:  conn.Username,
		UserID:    conn.ID,
		Timestamp: r.clock(),
		Kind:      kind,
		Reactions: map[string][]string{},
		ReadBy:    []string{},
	}
}

// post appends msg to its room log and broadcasts it to the room.
func (r *Router) post(msg domain.Message) {
	r.state.Messages.Append(msg.RoomID, msg)
	r.send(r.state.Connections.InRoom(msg.RoomID), OutNewMessage, msg)
	r.publish(events.MessagePostedEvent{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		Username:  msg.Username,
		Kind:      string(msg.Kind),
		Timestamp: msg.Timestamp,
	})
}

func presenceOf(conn domain.Connection) PresencePayload {
	return PresencePayload{
		UserID:   conn.ID,
		Username: conn.Username,
		Avatar:   conn.Avatar,
		Room:     conn.RoomID,
	}
}
