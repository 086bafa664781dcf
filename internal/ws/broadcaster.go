package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/codeclub/liveclass/internal/event"
	"github.com/codeclub/liveclass/internal/session"
)

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	sendMu  sync.Mutex // guards send against close, and closed
	closed  bool
	userID  string
	role    event.Role
	teamID  int // 0 when the connection is class-scoped only
	classID int
}

func newClient(conn *websocket.Conn, userID string, role event.Role, teamID, classID int) *client {
	c := &client{
		conn:    conn,
		send:    make(chan []byte, 64),
		userID:  userID,
		role:    role,
		teamID:  teamID,
		classID: classID,
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// trySend queues the message for the write pump. A closed client swallows the
// message; a full buffer reports false so the caller can drop the client.
// Holding sendMu for both the send and the close keeps a concurrent remove
// from closing the channel mid-send.
func (c *client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Broadcaster fans messages out to team topics, class topics and
// single-recipient user channels. Delivery is best-effort: no subscriber, no
// delivery, and a subscriber that cannot keep up is dropped.
type Broadcaster struct {
	mu      sync.RWMutex
	teams   map[int]map[*client]bool
	classes map[int]map[*client]bool
	users   map[string]map[*client]bool
}

var _ session.Publisher = (*Broadcaster)(nil)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		teams:   make(map[int]map[*client]bool),
		classes: make(map[int]map[*client]bool),
		users:   make(map[string]map[*client]bool),
	}
}

func (b *Broadcaster) register(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.teamID != 0 {
		if b.teams[c.teamID] == nil {
			b.teams[c.teamID] = make(map[*client]bool)
		}
		b.teams[c.teamID][c] = true
	}
	if c.classID != 0 {
		if b.classes[c.classID] == nil {
			b.classes[c.classID] = make(map[*client]bool)
		}
		b.classes[c.classID][c] = true
	}
	if b.users[c.userID] == nil {
		b.users[c.userID] = make(map[*client]bool)
	}
	b.users[c.userID][c] = true
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(c)
}

func (b *Broadcaster) removeLocked(c *client) {
	removed := false
	if set, ok := b.teams[c.teamID]; ok && set[c] {
		delete(set, c)
		removed = true
		if len(set) == 0 {
			delete(b.teams, c.teamID)
		}
	}
	if set, ok := b.classes[c.classID]; ok && set[c] {
		delete(set, c)
		removed = true
		if len(set) == 0 {
			delete(b.classes, c.classID)
		}
	}
	if set, ok := b.users[c.userID]; ok && set[c] {
		delete(set, c)
		removed = true
		if len(set) == 0 {
			delete(b.users, c.userID)
		}
	}
	if removed {
		c.close()
	}
}

// ToTeam sends to every subscriber of the team topic.
func (b *Broadcaster) ToTeam(teamID int, msg Message) {
	b.fanOut(func() []*client { return b.snapshot(b.teams[teamID]) }, msg)
}

// ToClass sends to every subscriber of the class topic.
func (b *Broadcaster) ToClass(classID int, msg Message) {
	b.fanOut(func() []*client { return b.snapshot(b.classes[classID]) }, msg)
}

// ToUser sends to every connection of the user (private channel).
func (b *Broadcaster) ToUser(userID string, msg Message) {
	b.fanOut(func() []*client { return b.snapshot(b.users[userID]) }, msg)
}

// PublishEvent pushes an appended event to its team and class topics.
func (b *Broadcaster) PublishEvent(ev event.Event) {
	msg := Message{Type: MsgEvent, Payload: ev}
	if ev.TeamID != 0 {
		b.ToTeam(ev.TeamID, msg)
	}
	if ev.ClassID != 0 {
		b.ToClass(ev.ClassID, msg)
	}
}

func (b *Broadcaster) snapshot(set map[*client]bool) []*client {
	clients := make([]*client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

func (b *Broadcaster) fanOut(pick func() []*client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := pick()
	b.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(data) {
			// Client can't keep up, disconnect it
			log.Printf("ws client %s too slow, disconnecting", c.userID)
			b.remove(c)
		}
	}
}

// TeamSubscriberCount reports the live subscriber count for a team topic.
func (b *Broadcaster) TeamSubscriberCount(teamID int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.teams[teamID])
}
