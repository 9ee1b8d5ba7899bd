package session

import (
	"strings"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/transport"
)

// Transport is the slice of the room socket the session depends on.
// *transport.Conn satisfies it; tests substitute an in-memory fake.
type Transport interface {
	Emit(event string, payload any) error
	Events() <-chan transport.InboundEvent
	Faults() <-chan error
	Close() error
}

// Emitter validates and sends user-initiated commands. It is the only
// path that may mutate server-side state; anything invalid is rejected
// locally before a frame is written.
type Emitter struct {
	conn   Transport
	roomID string
	selfID string
}

// NewEmitter binds an emitter to one room membership.
func NewEmitter(conn Transport, roomID, selfID string) *Emitter {
	return &Emitter{conn: conn, roomID: roomID, selfID: selfID}
}

// Join announces this participant to the room.
func (e *Emitter) Join() error {
	return e.conn.Emit(transport.EventJoinRoom, chat.JoinRoom{
		RoomID:   e.roomID,
		SenderID: e.selfID,
	})
}

// Leave announces departure. Best effort; the socket is closed right
// after.
func (e *Emitter) Leave() error {
	return e.conn.Emit(transport.EventLeaveRoom, chat.LeaveRoom{
		RoomID:   e.roomID,
		SenderID: e.selfID,
	})
}

// RequestPage asks for one page of history.
func (e *Emitter) RequestPage(page int) error {
	return e.conn.Emit(transport.EventGetMessages, chat.GetMessages{
		RoomID: e.roomID,
		Page:   page,
	})
}

// Send submits a chat message. Empty or whitespace-only text is rejected
// without a network call. A message directed at the automated
// participant is flagged as a question; the server, not the client,
// decides fan-out and visibility of the reply.
func (e *Emitter) Send(text, directedTo string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	return e.conn.Emit(transport.EventSendMessage, chat.SendMessage{
		RoomID:        e.roomID,
		SenderID:      e.selfID,
		Message:       text,
		IsGPTQuestion: directedTo == chat.SenderGPT,
		Target:        directedTo,
	})
}
