package database

import "time"

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

type User struct {
	Id           int
	Username     string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

type Message struct {
	Id             int
	SenderId       int
	SenderUsername string
	ReceiverId     int
	RoomId         string
	MessageType    string
	Content        string
	IsEdited       bool
	IsDeleted      bool
	IsRead         bool
	Version        int
	CreatedAt      time.Time
}

type CustomerSummary struct {
	Customer    User
	LastMessage *Message
	UnreadCount int
}

type CreateUserParams struct {
	Username     string
	Role         string
	PasswordHash string
}

type CreateMessageParams struct {
	SenderId    int
	ReceiverId  int
	RoomId      string
	MessageType string
	Content     string
	CreatedAt   time.Time
}
