package server

import (
	"fmt"

	"github.com/npezzotti/go-supportchat/internal/types"
)

// Actor is the identity and role a mutation is evaluated against. It is
// always derived from the store for the duration of a single operation.
type Actor struct {
	Id      int
	IsAdmin bool
}

type PolicyOptions struct {
	// LockDeleted rejects edits to soft-deleted messages.
	LockDeleted bool
}

// AuthorizeEdit decides whether actor may change the content of msg.
// Only the author may edit. A read message is locked unless the author is
// the admin. Editing an image message replaces its image reference.
func AuthorizeEdit(msg types.Message, actor Actor, opts PolicyOptions) error {
	if msg.SenderId != actor.Id {
		return fmt.Errorf("%w: only the author may edit message %d", ErrUnauthorized, msg.Id)
	}

	if msg.Read && !actor.IsAdmin {
		return fmt.Errorf("%w: message %d", ErrReadLocked, msg.Id)
	}

	if msg.Deleted && opts.LockDeleted {
		return fmt.Errorf("%w: message %d", ErrMessageDeleted, msg.Id)
	}

	return nil
}

// AuthorizeDelete decides whether actor may soft-delete msg. The author or
// the admin may delete, but never once the message has been read.
func AuthorizeDelete(msg types.Message, actor Actor) error {
	if msg.SenderId != actor.Id && !actor.IsAdmin {
		return fmt.Errorf("%w: only the author or the admin may delete message %d", ErrUnauthorized, msg.Id)
	}

	if msg.Read {
		return fmt.Errorf("%w: message %d", ErrReadLocked, msg.Id)
	}

	return nil
}
