package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 25 * time.Second
	maxMessageSize = 16 << 10
)

// client is one websocket connection. A connection belongs to at most
// one room at a time, after its join_room.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger

	mu        sync.Mutex
	roomID    string
	studentID string
}

func (c *client) setMembership(roomID, studentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
	c.studentID = studentID
}

func (c *client) membership() (roomID, studentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.studentID
}

// push queues one named event for delivery. A client that cannot keep up
// has its frame dropped rather than blocking the room.
func (c *client) push(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error().Err(err).Str("event", event).Msg("encode payload")
		return
	}
	frame, err := json.Marshal(transport.Envelope{Event: event, Data: data})
	if err != nil {
		c.log.Error().Err(err).Str("event", event).Msg("encode envelope")
		return
	}

	select {
	case c.send <- frame:
	default:
		c.log.Warn().Str("event", event).Msg("client send buffer full, dropping frame")
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// hub tracks which connections are in which room and fans events out.
type hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func newHub() *hub {
	return &hub{rooms: make(map[string]map[*client]struct{})}
}

func (h *hub) register(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
}

func (h *hub) unregister(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// broadcast pushes an event to every member of the room for which keep
// returns true. A nil keep delivers to everyone.
func (h *hub) broadcast(roomID, event string, payload any, keep func(*client) bool) {
	h.mu.RLock()
	members := make([]*client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if keep != nil && !keep(c) {
			continue
		}
		c.push(event, payload)
	}
}

// deliverMessage applies the production fan-out rules: public messages go
// to everyone; a whisper goes only to its sender and addressee; replies
// from the automated participant are broadcast to the whole room even
// when they carry whisper fields.
func (h *hub) deliverMessage(roomID string, msg chat.Message) {
	addressee := msg.WhisperTo
	if addressee == "" {
		addressee = msg.Target
	}

	var keep func(*client) bool
	if addressee != "" && msg.SenderID != chat.SenderGPT {
		keep = func(c *client) bool {
			_, studentID := c.membership()
			return studentID == msg.SenderID || studentID == addressee
		}
	}

	h.broadcast(roomID, transport.EventReceiveMessage, msg, keep)
}
