package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/npezzotti/go-supportchat/internal/types"
)

// inbound events
const (
	EventJoinRoom      = "join-room"
	EventSendMessage   = "send-message"
	EventSendImage     = "send-image"
	EventEditMessage   = "edit-message"
	EventDeleteMessage = "delete-message"
	EventMarkAsRead    = "mark-as-read"
)

// outbound events
const (
	EventMessageHistory  = "message-history"
	EventMessageReceived = "message-received"
	EventMessageEdited   = "message-edited"
	EventMessageDeleted  = "message-deleted"
	EventMessagesRead    = "messages-read"
	EventAdminAlert      = "admin-alert"
	EventError           = "error"
)

type scope int

const (
	scopeClient scope = iota
	scopeRoom
	scopeGlobal
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Join struct {
	Username string `json:"username"`
	RoomId   string `json:"roomId"`
}

type SendMessage struct {
	SenderId   int    `json:"senderId"`
	ReceiverId int    `json:"receiverId"`
	Content    string `json:"content"`
	RoomId     string `json:"roomId"`
}

type SendImage struct {
	SenderId   int    `json:"senderId"`
	ReceiverId int    `json:"receiverId"`
	ImageUrl   string `json:"imageUrl"`
	RoomId     string `json:"roomId"`
}

type EditMessage struct {
	MessageId  int    `json:"messageId"`
	NewContent string `json:"newContent"`
	UserId     int    `json:"userId"`
	IsAdmin    bool   `json:"isAdmin"`
}

type DeleteMessage struct {
	MessageId int  `json:"messageId"`
	UserId    int  `json:"userId"`
	IsAdmin   bool `json:"isAdmin"`
}

type MarkAsRead struct {
	RoomId string `json:"roomId"`
	UserId int    `json:"userId"`
}

type ServerMessage struct {
	BaseMessage
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`

	scope      scope
	roomId     string
	skipClient *Client
}

type MessageEdited struct {
	MessageId  int    `json:"messageId"`
	NewContent string `json:"newContent"`
	Edited     bool   `json:"edited"`
}

type MessageDeleted struct {
	MessageId int `json:"messageId"`
}

type MessagesRead struct {
	ReaderId int `json:"readerId"`
}

type AdminAlert struct {
	CustomerId int  `json:"customerId"`
	HasUnread  bool `json:"hasUnread"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func decodeData(msg *ClientMessage, v any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%w: missing data for %q", ErrInvalidMessage, msg.Event)
	}

	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	return nil
}

func reply(id int, event string, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Event: event,
		Data:  data,
		scope: scopeClient,
	}
}

func roomEvent(roomId, event string, data any, skip *Client) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event:      event,
		Data:       data,
		scope:      scopeRoom,
		roomId:     roomId,
		skipClient: skip,
	}
}

func globalEvent(event string, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: event,
		Data:  data,
		scope: scopeGlobal,
	}
}

func MessageHistory(id int, messages []types.Message) *ServerMessage {
	return reply(id, EventMessageHistory, messages)
}

func MessageReceived(msg types.Message) *ServerMessage {
	return roomEvent(msg.RoomId, EventMessageReceived, msg, nil)
}

func MessageEditedEvent(msg types.Message) *ServerMessage {
	return roomEvent(msg.RoomId, EventMessageEdited, MessageEdited{
		MessageId:  msg.Id,
		NewContent: msg.Content,
		Edited:     msg.Edited,
	}, nil)
}

func MessageDeletedEvent(msg types.Message) *ServerMessage {
	return roomEvent(msg.RoomId, EventMessageDeleted, MessageDeleted{MessageId: msg.Id}, nil)
}

func MessagesReadEvent(roomId string, readerId int, skip *Client) *ServerMessage {
	return roomEvent(roomId, EventMessagesRead, MessagesRead{ReaderId: readerId}, skip)
}

func AdminAlertEvent(customerId int, hasUnread bool) *ServerMessage {
	return globalEvent(EventAdminAlert, AdminAlert{CustomerId: customerId, HasUnread: hasUnread})
}

func ErrorEvent(id int, err error) *ServerMessage {
	return reply(id, EventError, ErrorPayload{Message: errorMessage(err)})
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
