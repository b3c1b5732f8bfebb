package server

import (
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrReadLocked         = errors.New("message has already been read")
	ErrRoomMismatch       = errors.New("room does not match participants")
	ErrInvalidParticipant = errors.New("invalid participant")
	ErrAlreadyJoined      = errors.New("connection has already joined a different room")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrMessageDeleted     = errors.New("message has been deleted")
	ErrConflict           = errors.New("message was modified concurrently")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTransportFailure   = errors.New("store unavailable")
)

// clientErrors are reported to the acting connection verbatim. Anything else
// is logged and reported as an internal error.
var clientErrors = []error{
	ErrNotFound,
	ErrUnauthorized,
	ErrReadLocked,
	ErrRoomMismatch,
	ErrInvalidParticipant,
	ErrAlreadyJoined,
	ErrInvalidMessage,
	ErrMessageDeleted,
	ErrConflict,
	ErrServiceUnavailable,
}

func errorMessage(err error) string {
	for _, e := range clientErrors {
		if errors.Is(err, e) {
			return e.Error()
		}
	}

	return "internal server error"
}

// IsClientError reports whether err belongs to the recoverable taxonomy
// surfaced to clients.
func IsClientError(err error) bool {
	for _, e := range clientErrors {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}
