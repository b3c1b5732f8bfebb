package types

import (
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

type User struct {
	Id        int       `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// MessageFlags holds the independent state bits of a message. Any
// combination is valid, e.g. a message can be both edited and deleted.
type MessageFlags struct {
	Edited  bool `json:"edited"`
	Deleted bool `json:"deleted"`
	Read    bool `json:"read"`
}

type Message struct {
	Id             int         `json:"id"`
	SenderId       int         `json:"senderId"`
	SenderUsername string      `json:"senderUsername,omitempty"`
	ReceiverId     int         `json:"receiverId"`
	RoomId         string      `json:"roomId"`
	Type           MessageType `json:"type"`
	// Content is the message text, or the image reference for image messages.
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	MessageFlags
	Version int `json:"version"`
}

// CustomerSummary is a dashboard row for a single customer conversation.
type CustomerSummary struct {
	Customer    User     `json:"customer"`
	RoomId      string   `json:"roomId"`
	LastMessage *Message `json:"lastMessage,omitempty"`
	UnreadCount int      `json:"unreadCount"`
}
