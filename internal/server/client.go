package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-supportchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	eventTimeout   = 10 * time.Second
)

// Client is a single websocket connection. The read pump processes one
// inbound event at a time, to completion.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	// roomId is the room this connection joined. Only the read pump touches it.
	roomId   string
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.sendMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrorEvent(0, ErrInvalidMessage))
			continue
		}
		msg.Timestamp = Now()

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		err = c.handleMessage(ctx, &msg)
		cancel()

		if err != nil {
			c.reportError(&msg, err)
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *ClientMessage) error {
	cs := c.chatServer

	switch msg.Event {
	case EventJoinRoom:
		var req Join
		if err := decodeData(msg, &req); err != nil {
			return err
		}
		return cs.joinRoom(ctx, c, msg.Id, req)
	case EventSendMessage:
		var req SendMessage
		if err := decodeData(msg, &req); err != nil {
			return err
		}
		return cs.createMessage(ctx, c, newMessage{
			senderId:   req.SenderId,
			receiverId: req.ReceiverId,
			roomId:     req.RoomId,
			msgType:    types.MessageTypeText,
			content:    req.Content,
		})
	case EventSendImage:
		var req SendImage
		if err := decodeData(msg, &req); err != nil {
			return err
		}
		return cs.createMessage(ctx, c, newMessage{
			senderId:   req.SenderId,
			receiverId: req.ReceiverId,
			roomId:     req.RoomId,
			msgType:    types.MessageTypeImage,
			content:    req.ImageUrl,
		})
	case EventEditMessage:
		var req EditMessage
		if err := decodeData(msg, &req); err != nil {
			return err
		}
		return cs.editMessage(ctx, c, req)
	case EventDeleteMessage:
		var req DeleteMessage
		if err := decodeData(msg, &req); err != nil {
			return err
		}
		return cs.deleteMessage(ctx, c, req)
	case EventMarkAsRead:
		var req MarkAsRead
		if err := decodeData(msg, &req); err != nil {
			return err
		}
		return cs.markAsRead(ctx, c, req)
	default:
		return ErrInvalidMessage
	}
}

// reportError unicasts err to this connection only.
func (c *Client) reportError(msg *ClientMessage, err error) {
	if IsClientError(err) {
		c.log.Printf("%s from %q rejected: %v", msg.Event, c.user.Username, err)
	} else {
		c.log.Printf("%s from %q failed: %v", msg.Event, c.user.Username, err)
	}

	c.queueMessage(ErrorEvent(msg.Id, err))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send queue full for %q, dropping %q", c.user.Username, msg.Event)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.deregisterClient(c)
	c.stopClient()
}
