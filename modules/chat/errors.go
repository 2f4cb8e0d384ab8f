package chat

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry and store lookups.
var (
	ErrDuplicateJoin   = errors.New("connection already joined")
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidFile     = errors.New("invalid file descriptor")
	ErrFileNotFound    = errors.New("file not found")
	ErrUnknownEvent    = errors.New("unknown event type")
	ErrMalformedEvent  = errors.New("malformed event payload")
	ErrRouterStopped   = errors.New("router stopped")
)

// Error codes sent to clients in "error" events.
const (
	CodeDuplicateJoin   = "duplicate_join"
	CodeRoomNotFound    = "room_not_found"
	CodeMessageNotFound = "message_not_found"
	CodeFileNotFound    = "file_not_found"
	CodeValidation      = "validation_error"
	CodeBadRequest      = "bad_request"
	CodeUnknownEvent    = "unknown_event"
)

// EventError is a handler failure reported back to the originating connection.
type EventError struct {
	Event string
	Code  string
	Err   error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Event, e.Code, e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// eventErr picks the client-facing code from the wrapped sentinel.
func eventErr(event string, err error) *EventError {
	code := CodeValidation
	switch {
	case errors.Is(err, ErrDuplicateJoin):
		code = CodeDuplicateJoin
	case errors.Is(err, ErrRoomNotFound):
		code = CodeRoomNotFound
	case errors.Is(err, ErrMessageNotFound):
		code = CodeMessageNotFound
	case errors.Is(err, ErrFileNotFound):
		code = CodeFileNotFound
	case errors.Is(err, ErrMalformedEvent):
		code = CodeBadRequest
	case errors.Is(err, ErrUnknownEvent):
		code = CodeUnknownEvent
	}
	return &EventError{Event: event, Code: code, Err: err}
}
