package server

import (
	"log"
)

// Room is the set of connections joined to a conversation. It is owned by the
// ChatServer run loop and never touched from other goroutines.
type Room struct {
	id      string
	clients map[*Client]struct{}
	log     *log.Logger
}

func newRoom(id string, l *log.Logger) *Room {
	return &Room{
		id:      id,
		clients: make(map[*Client]struct{}),
		log:     l,
	}
}

func (r *Room) addClient(c *Client) {
	r.clients[c] = struct{}{}
	r.log.Printf("added %q to room %q, %d connection(s)", c.user.Username, r.id, len(r.clients))
}

func (r *Room) removeClient(c *Client) {
	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	r.log.Printf("removed %q from room %q, %d connection(s)", c.user.Username, r.id, len(r.clients))
}

func (r *Room) isEmpty() bool {
	return len(r.clients) == 0
}

// broadcast queues msg for every member except msg.skipClient. Delivery is
// best-effort: a member with a full send queue misses the event.
func (r *Room) broadcast(msg *ServerMessage) {
	for client := range r.clients {
		if client == msg.skipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
