package chat

import "sort"

// TypingTracker holds the per-room set of usernames composing a message.
// It is not safe for concurrent use; the Router owns it.
type TypingTracker struct {
	rooms map[string]nameSet
}

// NewTypingTracker creates an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{rooms: make(map[string]nameSet)}
}

// Ensure creates an empty set for roomID.
func (t *TypingTracker) Ensure(roomID string) {
	if _, ok := t.rooms[roomID]; !ok {
		t.rooms[roomID] = make(nameSet)
	}
}

// SetTyping records the typing state and returns the room's resulting set.
func (t *TypingTracker) SetTyping(roomID, username string, isTyping bool) []string {
	t.Ensure(roomID)
	if isTyping {
		t.rooms[roomID][username] = struct{}{}
	} else {
		delete(t.rooms[roomID], username)
	}
	return t.rooms[roomID].sorted()
}

// Users returns who is typing in roomID.
func (t *TypingTracker) Users(roomID string) []string {
	set, ok := t.rooms[roomID]
	if !ok {
		return []string{}
	}
	return set.sorted()
}

// IsTyping reports whether username is in the set for roomID.
func (t *TypingTracker) IsTyping(roomID, username string) bool {
	_, ok := t.rooms[roomID][username]
	return ok
}

// ClearUser removes username from every room and returns the rooms that changed.
func (t *TypingTracker) ClearUser(username string) []string {
	var changed []string
	for roomID, set := range t.rooms {
		if _, ok := set[username]; ok {
			delete(set, username)
			changed = append(changed, roomID)
		}
	}
	sort.Strings(changed)
	return changed
}
