package server

import (
	"context"
	"fmt"
	"log"

	"github.com/npezzotti/go-supportchat/internal/database"
	"github.com/npezzotti/go-supportchat/internal/stats"
)

const (
	metricConnections     = "ActiveConnections"
	metricRooms           = "ActiveRooms"
	metricMessagesCreated = "MessagesCreated"
	metricMessagesEdited  = "MessagesEdited"
	metricMessagesDeleted = "MessagesDeleted"
	metricReadReceipts    = "ReadReceipts"
	metricMessagesRead    = "MessagesRead"
)

var metrics = []string{
	metricConnections,
	metricRooms,
	metricMessagesCreated,
	metricMessagesEdited,
	metricMessagesDeleted,
	metricReadReceipts,
	metricMessagesRead,
}

type joinRequest struct {
	client *Client
	roomId string
	done   chan struct{}
}

type stopRequest struct {
	done chan struct{}
}

// ChatServer routes events to connections. Its run loop owns the registry of
// live connections and room memberships; everything else talks to it over
// channels.
type ChatServer struct {
	log    *log.Logger
	db     database.SupportChatRepository
	stats  stats.StatsProvider
	policy PolicyOptions

	clients     map[*Client]struct{}
	rooms       map[string]*Room
	memberships map[*Client]*Room

	registerChan   chan *Client
	deregisterChan chan *Client
	joinChan       chan joinRequest
	broadcastChan  chan *ServerMessage
	stop           chan stopRequest
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, db database.SupportChatRepository, su stats.StatsProvider, policy PolicyOptions) (*ChatServer, error) {
	if db == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}

	for _, m := range metrics {
		su.RegisterMetric(m)
	}

	return &ChatServer{
		log:            logger,
		db:             db,
		stats:          su,
		policy:         policy,
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		memberships:    make(map[*Client]*Room),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		joinChan:       make(chan joinRequest),
		broadcastChan:  make(chan *ServerMessage, 256),
		stop:           make(chan stopRequest),
		done:           make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case c := <-cs.registerChan:
			cs.addClient(c)
		case c := <-cs.deregisterChan:
			cs.removeClient(c)
		case req := <-cs.joinChan:
			cs.handleJoin(req)
		case msg := <-cs.broadcastChan:
			cs.handleBroadcast(msg)
		case req := <-cs.stop:
			cs.handleShutdown()
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clients[c] = struct{}{}
	cs.stats.Incr(metricConnections)
	cs.log.Printf("added connection from %q, %d connection(s)", c.user.Username, len(cs.clients))
}

func (cs *ChatServer) removeClient(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr(metricConnections)
	cs.leaveRoom(c)
	cs.log.Printf("removed connection from %q, %d connection(s)", c.user.Username, len(cs.clients))
}

func (cs *ChatServer) handleJoin(req joinRequest) {
	defer close(req.done)

	if _, ok := cs.clients[req.client]; !ok {
		cs.log.Printf("join from unregistered connection %q ignored", req.client.user.Username)
		return
	}

	if cur, ok := cs.memberships[req.client]; ok {
		if cur.id == req.roomId {
			return
		}
		cs.leaveRoom(req.client)
	}

	room, ok := cs.rooms[req.roomId]
	if !ok {
		room = newRoom(req.roomId, cs.log)
		cs.rooms[req.roomId] = room
		cs.stats.Incr(metricRooms)
	}

	room.addClient(req.client)
	cs.memberships[req.client] = room
}

func (cs *ChatServer) leaveRoom(c *Client) {
	room, ok := cs.memberships[c]
	if !ok {
		return
	}

	delete(cs.memberships, c)
	room.removeClient(c)
	if room.isEmpty() {
		delete(cs.rooms, room.id)
		cs.stats.Decr(metricRooms)
	}
}

func (cs *ChatServer) handleBroadcast(msg *ServerMessage) {
	switch msg.scope {
	case scopeGlobal:
		for c := range cs.clients {
			if c == msg.skipClient {
				continue
			}
			c.queueMessage(msg)
		}
	case scopeRoom:
		if room, ok := cs.rooms[msg.roomId]; ok {
			room.broadcast(msg)
		}
	default:
		cs.log.Printf("unroutable %q message dropped", msg.Event)
	}
}

func (cs *ChatServer) handleShutdown() {
	cs.log.Println("closing connections")
	for c := range cs.clients {
		c.stopClient()
	}

	close(cs.done)
}

// RegisterClient adds a connection to the global channel.
func (cs *ChatServer) RegisterClient(c *Client) {
	select {
	case cs.registerChan <- c:
	case <-cs.done:
		c.stopClient()
	}
}

func (cs *ChatServer) deregisterClient(c *Client) {
	select {
	case cs.deregisterChan <- c:
	case <-cs.done:
	}
}

// join adds c to the room and returns once the membership is in place.
func (cs *ChatServer) join(ctx context.Context, c *Client, roomId string) error {
	req := joinRequest{client: c, roomId: roomId, done: make(chan struct{})}

	select {
	case cs.joinChan <- req:
	case <-cs.done:
		return ErrServiceUnavailable
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, ctx.Err())
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, ctx.Err())
	}
}

// broadcast hands msg to the run loop. It never reports failure to the caller.
func (cs *ChatServer) broadcast(msg *ServerMessage) {
	select {
	case cs.broadcastChan <- msg:
	case <-cs.done:
		cs.log.Printf("chat server stopped, dropping %q broadcast", msg.Event)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")
	req := stopRequest{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
