package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/npezzotti/go-supportchat/internal/database"
	"github.com/npezzotti/go-supportchat/internal/types"
)

type newMessage struct {
	senderId   int
	receiverId int
	roomId     string
	msgType    types.MessageType
	content    string
}

func (cs *ChatServer) joinRoom(ctx context.Context, c *Client, id int, req Join) error {
	if req.RoomId == "" {
		return fmt.Errorf("%w: room id is required", ErrInvalidMessage)
	}

	if c.roomId != "" && c.roomId != req.RoomId {
		return fmt.Errorf("%w: joined %q, requested %q", ErrAlreadyJoined, c.roomId, req.RoomId)
	}

	user, err := getUser(ctx, cs.db, c.user.Id)
	if err != nil {
		return actorError(err)
	}

	ok, err := isParticipant(req.RoomId, user)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q is not a participant of room %q", ErrUnauthorized, user.Username, req.RoomId)
	}

	if c.roomId == "" {
		if err := cs.join(ctx, c, req.RoomId); err != nil {
			return err
		}
		c.roomId = req.RoomId
		cs.log.Printf("%q (%s) joined room %q", user.Username, req.Username, req.RoomId)
	}

	// Membership is in place before the snapshot is read, so nothing is missed.
	// A message created in between arrives live and again in the history;
	// clients drop repeats by message id.
	history, err := cs.History(ctx, req.RoomId)
	if err != nil {
		return err
	}

	c.queueMessage(MessageHistory(id, history))
	return nil
}

// History returns the visible messages of a room, oldest first.
func (cs *ChatServer) History(ctx context.Context, roomId string) ([]types.Message, error) {
	dbMessages, err := cs.db.GetMessagesByRoom(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("get messages for room %q: %w: %w", roomId, ErrTransportFailure, err)
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		if m.IsDeleted {
			continue
		}
		messages = append(messages, ToMessage(m))
	}

	return messages, nil
}

// RoomHistory returns the history of roomId if reader is one of its
// participants.
func (cs *ChatServer) RoomHistory(ctx context.Context, roomId string, reader types.User) ([]types.Message, error) {
	ok, err := isParticipant(roomId, reader)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a participant of room %q", ErrUnauthorized, reader.Username, roomId)
	}

	return cs.History(ctx, roomId)
}

func (cs *ChatServer) createMessage(ctx context.Context, c *Client, req newMessage) error {
	if req.senderId != c.user.Id {
		return fmt.Errorf("%w: cannot send as user %d", ErrUnauthorized, req.senderId)
	}

	if strings.TrimSpace(req.content) == "" {
		return fmt.Errorf("%w: empty %s message", ErrInvalidMessage, req.msgType)
	}

	if req.senderId == req.receiverId {
		return fmt.Errorf("%w: sender and receiver are the same user", ErrRoomMismatch)
	}

	customer, admin, err := resolveParticipants(ctx, cs.db, req.senderId, req.receiverId)
	if err != nil {
		return err
	}

	if RoomId(customer.Id, admin.Id) != req.roomId {
		return fmt.Errorf("%w: %q", ErrRoomMismatch, req.roomId)
	}

	dbMsg, err := cs.db.CreateMessage(ctx, database.CreateMessageParams{
		SenderId:    req.senderId,
		ReceiverId:  req.receiverId,
		RoomId:      req.roomId,
		MessageType: string(req.msgType),
		Content:     req.content,
		CreatedAt:   Now(),
	})
	if err != nil {
		return fmt.Errorf("create message: %w: %w", ErrTransportFailure, err)
	}

	cs.stats.Incr(metricMessagesCreated)
	msg := ToMessage(dbMsg)
	cs.broadcast(MessageReceived(msg))

	if req.receiverId == admin.Id {
		cs.broadcast(AdminAlertEvent(req.senderId, true))
	}

	return nil
}

func (cs *ChatServer) editMessage(ctx context.Context, c *Client, req EditMessage) error {
	if strings.TrimSpace(req.NewContent) == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidMessage)
	}

	actor, err := cs.resolveActor(ctx, c, req.UserId, req.IsAdmin)
	if err != nil {
		return err
	}

	msg, err := cs.getMessage(ctx, req.MessageId)
	if err != nil {
		return err
	}

	if err := AuthorizeEdit(msg, actor, cs.policy); err != nil {
		return err
	}

	dbMsg, err := cs.db.UpdateMessageContent(ctx, msg.Id, msg.Version, req.NewContent)
	if err != nil {
		if errors.Is(err, database.ErrVersionConflict) {
			return fmt.Errorf("edit message %d: %w", msg.Id, ErrConflict)
		}
		return fmt.Errorf("edit message %d: %w: %w", msg.Id, ErrTransportFailure, err)
	}

	cs.stats.Incr(metricMessagesEdited)
	cs.broadcast(MessageEditedEvent(ToMessage(dbMsg)))
	return nil
}

func (cs *ChatServer) deleteMessage(ctx context.Context, c *Client, req DeleteMessage) error {
	actor, err := cs.resolveActor(ctx, c, req.UserId, req.IsAdmin)
	if err != nil {
		return err
	}

	msg, err := cs.getMessage(ctx, req.MessageId)
	if err != nil {
		return err
	}

	if err := AuthorizeDelete(msg, actor); err != nil {
		return err
	}

	dbMsg, err := cs.db.SoftDeleteMessage(ctx, msg.Id, msg.Version)
	if err != nil {
		if errors.Is(err, database.ErrVersionConflict) {
			return cs.deleteConflict(ctx, msg.Id)
		}
		return fmt.Errorf("delete message %d: %w: %w", msg.Id, ErrTransportFailure, err)
	}

	cs.stats.Incr(metricMessagesDeleted)
	cs.broadcast(MessageDeletedEvent(ToMessage(dbMsg)))
	return nil
}

// deleteConflict explains a lost delete race: the message was read or
// otherwise changed after the policy check.
func (cs *ChatServer) deleteConflict(ctx context.Context, id int) error {
	cur, err := cs.getMessage(ctx, id)
	if err != nil {
		return err
	}

	if cur.Read {
		return fmt.Errorf("%w: message %d", ErrReadLocked, id)
	}

	return fmt.Errorf("delete message %d: %w", id, ErrConflict)
}

// MarkRead flags every unread message addressed to reader in the room as
// read and notifies the other members. skip is the acting connection, if any.
func (cs *ChatServer) MarkRead(ctx context.Context, roomId string, reader types.User, skip *Client) error {
	ok, err := isParticipant(roomId, reader)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q is not a participant of room %q", ErrUnauthorized, reader.Username, roomId)
	}

	n, err := cs.db.MarkRoomRead(ctx, roomId, reader.Id)
	if err != nil {
		return fmt.Errorf("mark room %q read: %w: %w", roomId, ErrTransportFailure, err)
	}

	if n > 0 {
		cs.log.Printf("marked %d message(s) read in room %q for %q", n, roomId, reader.Username)
		cs.stats.Add(metricMessagesRead, n)
	}

	cs.stats.Incr(metricReadReceipts)
	cs.broadcast(MessagesReadEvent(roomId, reader.Id, skip))
	return nil
}

func (cs *ChatServer) markAsRead(ctx context.Context, c *Client, req MarkAsRead) error {
	if req.UserId != c.user.Id {
		return fmt.Errorf("%w: cannot mark read as user %d", ErrUnauthorized, req.UserId)
	}

	reader, err := getUser(ctx, cs.db, req.UserId)
	if err != nil {
		return actorError(err)
	}

	return cs.MarkRead(ctx, req.RoomId, reader, c)
}

// resolveActor checks the claimed identity against the connection and
// re-reads the role from the store. An admin claim is honored only when the
// stored role agrees.
func (cs *ChatServer) resolveActor(ctx context.Context, c *Client, userId int, isAdmin bool) (Actor, error) {
	if userId != c.user.Id {
		return Actor{}, fmt.Errorf("%w: cannot act as user %d", ErrUnauthorized, userId)
	}

	user, err := getUser(ctx, cs.db, userId)
	if err != nil {
		return Actor{}, actorError(err)
	}

	if isAdmin && !user.IsAdmin() {
		return Actor{}, fmt.Errorf("%w: %q is not the admin", ErrUnauthorized, user.Username)
	}

	return Actor{Id: user.Id, IsAdmin: isAdmin}, nil
}

func (cs *ChatServer) getMessage(ctx context.Context, id int) (types.Message, error) {
	m, err := cs.db.GetMessageById(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, fmt.Errorf("message %d: %w", id, ErrNotFound)
		}
		return types.Message{}, fmt.Errorf("get message %d: %w: %w", id, ErrTransportFailure, err)
	}

	return ToMessage(m), nil
}

// actorError reports a vanished acting user as unauthorized.
func actorError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return err
}

// ToMessage converts a stored message to its wire form.
func ToMessage(m database.Message) types.Message {
	return types.Message{
		Id:             m.Id,
		SenderId:       m.SenderId,
		SenderUsername: m.SenderUsername,
		ReceiverId:     m.ReceiverId,
		RoomId:         m.RoomId,
		Type:           types.MessageType(m.MessageType),
		Content:        m.Content,
		Timestamp:      m.CreatedAt,
		MessageFlags: types.MessageFlags{
			Edited:  m.IsEdited,
			Deleted: m.IsDeleted,
			Read:    m.IsRead,
		},
		Version: m.Version,
	}
}
