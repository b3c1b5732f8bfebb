package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSupportChatRepository struct {
	mock.Mock
}

func (m *MockSupportChatRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockSupportChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSupportChatRepository) GetUserById(ctx context.Context, id int) (User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSupportChatRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSupportChatRepository) GetAdmin(ctx context.Context) (User, error) {
	args := m.Called(ctx)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSupportChatRepository) EnsureAdmin(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSupportChatRepository) DeleteCustomer(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockSupportChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockSupportChatRepository) GetMessageById(ctx context.Context, id int) (Message, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockSupportChatRepository) GetMessagesByRoom(ctx context.Context, roomId string) ([]Message, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockSupportChatRepository) UpdateMessageContent(ctx context.Context, id, version int, content string) (Message, error) {
	args := m.Called(ctx, id, version, content)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockSupportChatRepository) SoftDeleteMessage(ctx context.Context, id, version int) (Message, error) {
	args := m.Called(ctx, id, version)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockSupportChatRepository) MarkRoomRead(ctx context.Context, roomId string, readerId int) (int64, error) {
	args := m.Called(ctx, roomId, readerId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockSupportChatRepository) ListCustomerSummaries(ctx context.Context, adminId int) ([]CustomerSummary, error) {
	args := m.Called(ctx, adminId)
	return args.Get(0).([]CustomerSummary), args.Error(1)
}
