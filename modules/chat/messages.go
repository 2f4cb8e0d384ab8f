package chat

import (
	"fmt"
	"sort"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Message store limits.
const (
	MaxMessagesPerRoom  = 100
	DefaultHistoryLimit = 50
)

type nameSet map[string]struct{}

func (s nameSet) sorted() []string {
	result := make([]string, 0, len(s))
	for name := range s {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// entry is a stored message with its mutable annotations.
type entry struct {
	msg       domain.Message
	reactions map[string]nameSet
	kinds     []string
	readBy    nameSet
}

func (e *entry) snapshot() domain.Message {
	msg := e.msg
	msg.Reactions = make(map[string][]string, len(e.reactions))
	for _, kind := range e.kinds {
		msg.Reactions[kind] = e.reactions[kind].sorted()
	}
	msg.ReadBy = e.readBy.sorted()
	return msg
}

// MessageStore keeps a bounded log per room.
// It is not safe for concurrent use; the Router owns it.
type MessageStore struct {
	logs     map[string][]*entry
	capacity int
}

// NewMessageStore creates a store with MaxMessagesPerRoom capacity.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		logs:     make(map[string][]*entry),
		capacity: MaxMessagesPerRoom,
	}
}

// Ensure creates an empty log for roomID if it has none.
func (s *MessageStore) Ensure(roomID string) {
	if _, ok := s.logs[roomID]; !ok {
		s.logs[roomID] = make([]*entry, 0)
	}
}

// Append adds msg to the room log, evicting the oldest entries past capacity.
func (s *MessageStore) Append(roomID string, msg domain.Message) {
	e := &entry{
		msg:       msg,
		reactions: make(map[string]nameSet),
		readBy:    make(nameSet),
	}
	e.msg.Reactions = nil
	e.msg.ReadBy = nil

	log := append(s.logs[roomID], e)
	if over := len(log) - s.capacity; over > 0 {
		// Copy so the evicted head does not pin the backing array.
		trimmed := make([]*entry, s.capacity, s.capacity+1)
		copy(trimmed, log[over:])
		log = trimmed
	}
	s.logs[roomID] = log
}

// Recent returns up to limit of the newest messages, oldest first.
func (s *MessageStore) Recent(roomID string, limit int) []domain.Message {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	log := s.logs[roomID]
	if limit > len(log) {
		limit = len(log)
	}
	result := make([]domain.Message, 0, limit)
	for _, e := range log[len(log)-limit:] {
		result = append(result, e.snapshot())
	}
	return result
}

// Len returns the number of messages held for roomID.
func (s *MessageStore) Len(roomID string) int {
	return len(s.logs[roomID])
}

func (s *MessageStore) find(roomID, messageID string) (*entry, error) {
	for _, e := range s.logs[roomID] {
		if e.msg.ID == messageID {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in room %s", ErrMessageNotFound, messageID, roomID)
}

// Find returns a message from the room log.
func (s *MessageStore) Find(roomID, messageID string) (domain.Message, error) {
	e, err := s.find(roomID, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	return e.snapshot(), nil
}

// ToggleReaction adds username to the reactors of kind, or removes it if present.
// A kind stays listed with an empty set after its last reactor leaves.
func (s *MessageStore) ToggleReaction(roomID, messageID, kind, username string) (domain.Message, error) {
	e, err := s.find(roomID, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	set, ok := e.reactions[kind]
	if !ok {
		set = make(nameSet)
		e.reactions[kind] = set
		e.kinds = append(e.kinds, kind)
	}
	if _, reacted := set[username]; reacted {
		delete(set, username)
	} else {
		set[username] = struct{}{}
	}
	return e.snapshot(), nil
}

// MarkRead adds username to the read-by set. The bool reports whether it was newly added.
func (s *MessageStore) MarkRead(roomID, messageID, username string) (domain.Message, bool, error) {
	e, err := s.find(roomID, messageID)
	if err != nil {
		return domain.Message{}, false, err
	}
	if _, read := e.readBy[username]; read {
		return e.snapshot(), false, nil
	}
	e.readBy[username] = struct{}{}
	return e.snapshot(), true, nil
}
