package database

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by conditional updates when the stored
// message no longer matches the version (or state) the caller read.
var ErrVersionConflict = errors.New("message version conflict")

type SupportChatRepository interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserById(ctx context.Context, id int) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetAdmin(ctx context.Context) (User, error)
	EnsureAdmin(ctx context.Context, params CreateUserParams) (User, error)
	DeleteCustomer(ctx context.Context, id int) error
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessageById(ctx context.Context, id int) (Message, error)
	GetMessagesByRoom(ctx context.Context, roomId string) ([]Message, error)
	UpdateMessageContent(ctx context.Context, id, version int, content string) (Message, error)
	SoftDeleteMessage(ctx context.Context, id, version int) (Message, error)
	MarkRoomRead(ctx context.Context, roomId string, readerId int) (int64, error)
	ListCustomerSummaries(ctx context.Context, adminId int) ([]CustomerSummary, error)
}
