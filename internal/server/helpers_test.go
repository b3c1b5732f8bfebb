package server

import (
	"context"
	"testing"
	"time"

	"github.com/npezzotti/go-supportchat/internal/database"
	"github.com/npezzotti/go-supportchat/internal/stats"
	"github.com/npezzotti/go-supportchat/internal/testutil"
	"github.com/npezzotti/go-supportchat/internal/types"
	"github.com/stretchr/testify/mock"
)

var (
	adminUser    = database.User{Id: 1, Username: "admin", Role: database.RoleAdmin}
	customerUser = database.User{Id: 2, Username: "alice", Role: database.RoleCustomer}
	otherUser    = database.User{Id: 3, Username: "bob", Role: database.RoleCustomer}

	testRoom = RoomId(customerUser.Id, adminUser.Id)
)

// newTestChatServer creates a ChatServer backed by db whose stats calls are
// accepted but not asserted.
func newTestChatServer(t *testing.T, db database.SupportChatRepository) *ChatServer {
	return newTestChatServerWithPolicy(t, db, PolicyOptions{})
}

func newTestChatServerWithPolicy(t *testing.T, db database.SupportChatRepository, policy PolicyOptions) *ChatServer {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()
	su.On("Add", mock.Anything, mock.Anything).Return().Maybe()

	cs, err := NewChatServer(testutil.TestLogger(t), db, su, policy)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

// runTestChatServer starts the run loop and stops it when the test ends.
func runTestChatServer(t *testing.T, cs *ChatServer) {
	go cs.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := cs.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
}

func newTestClient(t *testing.T, cs *ChatServer, u database.User) *Client {
	return &Client{
		chatServer: cs,
		log:        testutil.TestLogger(t),
		user:       ToUser(u),
		send:       make(chan *ServerMessage, 32),
		stop:       make(chan struct{}),
	}
}

// mockUsers makes every fixture user resolvable.
func mockUsers(db *database.MockSupportChatRepository) {
	for _, u := range []database.User{adminUser, customerUser, otherUser} {
		db.On("GetUserById", mock.Anything, u.Id).Return(u, nil).Maybe()
	}
}

func dbMessage(id, sender, receiver int, flags types.MessageFlags) database.Message {
	return database.Message{
		Id:          id,
		SenderId:    sender,
		ReceiverId:  receiver,
		RoomId:      testRoom,
		MessageType: string(types.MessageTypeText),
		Content:     "hello",
		IsEdited:    flags.Edited,
		IsDeleted:   flags.Deleted,
		IsRead:      flags.Read,
		Version:     1,
		CreatedAt:   Now(),
	}
}

// nextBroadcast pops the next message handed to the run loop.
func nextBroadcast(t *testing.T, cs *ChatServer) *ServerMessage {
	t.Helper()
	select {
	case msg := <-cs.broadcastChan:
		return msg
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected a broadcast, but none was sent")
		return nil
	}
}

func assertNoBroadcast(t *testing.T, cs *ChatServer) {
	t.Helper()
	select {
	case msg := <-cs.broadcastChan:
		t.Errorf("expected no broadcast, got %q", msg.Event)
	default:
	}
}

// expectEvent reads from the client's queue until event arrives.
func expectEvent(t *testing.T, c *Client, event string) *ServerMessage {
	t.Helper()
	timeout := time.After(500 * time.Millisecond)
	for {
		select {
		case msg := <-c.send:
			if msg.Event == event {
				return msg
			}
		case <-timeout:
			t.Fatalf("timeout: %q did not receive %q", c.user.Username, event)
			return nil
		}
	}
}

// expectNoEvent fails if event arrives at the client within a short window.
func expectNoEvent(t *testing.T, c *Client, event string) {
	t.Helper()
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case msg := <-c.send:
			if msg.Event == event {
				t.Errorf("expected %q not to receive %q", c.user.Username, event)
				return
			}
		case <-timeout:
			return
		}
	}
}
