package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/npezzotti/go-supportchat/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestNewClient(t *testing.T) {
	cs := newTestChatServer(t, &database.MockSupportChatRepository{})
	c := NewClient(ToUser(customerUser), nil, cs, cs.log)

	assert.Equal(t, cs, c.chatServer)
	assert.Equal(t, customerUser.Id, c.user.Id)
	assert.NotNil(t, c.send)
	assert.NotNil(t, c.stop)
	assert.Empty(t, c.roomId)
}

func TestClientQueueMessage(t *testing.T) {
	cs := newTestChatServer(t, &database.MockSupportChatRepository{})
	c := newTestClient(t, cs, customerUser)
	c.send = make(chan *ServerMessage, 1)

	assert.True(t, c.queueMessage(AdminAlertEvent(2, true)))
	assert.False(t, c.queueMessage(AdminAlertEvent(2, true)), "expected full queue to drop message")
	assert.Len(t, c.send, 1)
}

func TestClientStopClient(t *testing.T) {
	cs := newTestChatServer(t, &database.MockSupportChatRepository{})
	c := newTestClient(t, cs, customerUser)

	c.stopClient()
	assert.NotPanics(t, c.stopClient, "expected stopping twice not to panic")

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}

func TestClientHandleMessage(t *testing.T) {
	db := &database.MockSupportChatRepository{}
	mockUsers(db)
	cs := newTestChatServer(t, db)
	c := newTestClient(t, cs, customerUser)
	ctx := context.Background()

	t.Run("unknown event", func(t *testing.T) {
		err := c.handleMessage(ctx, &ClientMessage{Event: "typing"})
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("missing payload", func(t *testing.T) {
		for _, event := range []string{EventJoinRoom, EventSendMessage, EventSendImage, EventEditMessage, EventDeleteMessage, EventMarkAsRead} {
			err := c.handleMessage(ctx, &ClientMessage{Event: event})
			assert.ErrorIs(t, err, ErrInvalidMessage, event)
		}
	})

	t.Run("dispatches send-image as image message", func(t *testing.T) {
		data, _ := json.Marshal(SendImage{SenderId: customerUser.Id, ReceiverId: adminUser.Id, RoomId: "3-1", ImageUrl: "/uploads/a.png"})
		err := c.handleMessage(ctx, &ClientMessage{Event: EventSendImage, Data: data})
		assert.ErrorIs(t, err, ErrRoomMismatch)
	})
}

func TestClientReportError(t *testing.T) {
	cs := newTestChatServer(t, &database.MockSupportChatRepository{})
	c := newTestClient(t, cs, customerUser)

	c.reportError(&ClientMessage{BaseMessage: BaseMessage{Id: 12}, Event: EventDeleteMessage}, ErrReadLocked)

	msg := expectEvent(t, c, EventError)
	assert.Equal(t, 12, msg.Id)
	assert.Equal(t, ErrorPayload{Message: ErrReadLocked.Error()}, msg.Data)
	assert.Equal(t, scopeClient, msg.scope)
}
