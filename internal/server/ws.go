package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/service/answer"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/transport"
)

// Server is the in-memory reference implementation of the room protocol.
// It exists so the client is runnable and testable end to end; the
// production server lives elsewhere.
type Server struct {
	store    *Store
	hub      *hub
	answer   *answer.Service
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New assembles a server over the given store. answerSvc may be in
// fallback mode; it must not be nil.
func New(store *Store, answerSvc *answer.Service, log zerolog.Logger) *Server {
	return &Server{
		store:  store,
		hub:    newHub(),
		answer: answerSvc,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 64),
		log:  s.log.With().Str("conn", uuid.NewString()[:8]).Logger(),
	}

	go c.writePump()
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.dropClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var env transport.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn().Err(err).Msg("dropping unparseable frame")
			continue
		}
		s.dispatch(c, env)
	}
}

func (s *Server) dispatch(c *client, env transport.Envelope) {
	switch env.Event {
	case transport.EventJoinRoom:
		var payload chat.JoinRoom
		if !s.decode(c, env, &payload) {
			return
		}
		if payload.RoomID == "" || payload.SenderID == "" {
			c.log.Warn().Msg("join_room without room_id or sender_id")
			return
		}
		s.join(c, payload)

	case transport.EventGetMessages:
		var payload chat.GetMessages
		if !s.decode(c, env, &payload) {
			return
		}
		roomID := payload.RoomID
		if roomID == "" {
			roomID, _ = c.membership()
		}
		if roomID == "" {
			return
		}
		c.push(transport.EventMessageHistory, s.store.Page(roomID, payload.Page))

	case transport.EventSendMessage:
		var payload chat.SendMessage
		if !s.decode(c, env, &payload) {
			return
		}
		s.receiveMessage(c, payload)

	case transport.EventLeaveRoom:
		s.dropClient(c)

	default:
		c.log.Debug().Str("event", env.Event).Msg("ignoring unknown event")
	}
}

func (s *Server) join(c *client, payload chat.JoinRoom) {
	c.setMembership(payload.RoomID, payload.SenderID)
	s.store.Join(payload.RoomID, chat.Participant{StudentID: payload.SenderID})
	s.hub.register(payload.RoomID, c)

	s.hub.broadcast(payload.RoomID, transport.EventUserJoined, chat.PresenceChange{
		SenderID: payload.SenderID,
	}, func(member *client) bool { return member != c })

	// Roster snapshot goes to the whole room so every client converges
	// even if it missed individual join events.
	s.hub.broadcast(payload.RoomID, transport.EventCurrentUsers, chat.CurrentUsers{
		Participants: s.store.Participants(payload.RoomID),
	}, nil)

	c.log.Info().Str("room", payload.RoomID).Str("user", payload.SenderID).Msg("joined room")
}

func (s *Server) receiveMessage(c *client, payload chat.SendMessage) {
	roomID, studentID := c.membership()
	if roomID == "" || strings.TrimSpace(payload.Message) == "" {
		return
	}
	if payload.SenderID == "" {
		payload.SenderID = studentID
	}

	msg := chat.Message{
		SenderID:      payload.SenderID,
		Message:       payload.Message,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Target:        payload.Target,
		IsGPTQuestion: payload.IsGPTQuestion,
	}
	s.store.Append(roomID, msg)
	s.hub.deliverMessage(roomID, msg)

	if payload.IsGPTQuestion || payload.Target == chat.SenderGPT {
		go s.answerQuestion(roomID, msg)
	}
}

// answerQuestion asks the model and pushes the reply as the automated
// participant. The reply is addressed to the asker but broadcast to the
// whole room; clients render it for everyone by design.
func (s *Server) answerQuestion(roomID string, question chat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	history := s.store.Recent(roomID, 10)
	reply, err := s.answer.Answer(ctx, question.Message, history)
	if err != nil {
		s.log.Error().Err(err).Str("room", roomID).Msg("answer generation failed")
		return
	}

	msg := chat.Message{
		SenderID:  chat.SenderGPT,
		Name:      "GPT",
		Message:   reply,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		WhisperTo: question.SenderID,
	}
	s.store.Append(roomID, msg)
	s.hub.deliverMessage(roomID, msg)
}

// dropClient removes the connection from its room, if any, and tells the
// rest of the room. Safe to call twice; the second call is a no-op.
func (s *Server) dropClient(c *client) {
	roomID, studentID := c.membership()
	if roomID == "" {
		return
	}
	c.setMembership("", "")

	s.hub.unregister(roomID, c)
	s.store.Leave(roomID, studentID)
	s.hub.broadcast(roomID, transport.EventUserLeft, chat.PresenceChange{
		SenderID: studentID,
	}, nil)

	c.log.Info().Str("room", roomID).Str("user", studentID).Msg("left room")
}

func (s *Server) decode(c *client, env transport.Envelope, dst any) bool {
	if len(env.Data) == 0 {
		c.log.Warn().Str("event", env.Event).Msg("dropping event without payload")
		return false
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		c.log.Warn().Err(err).Str("event", env.Event).Msg("dropping malformed event")
		return false
	}
	return true
}
