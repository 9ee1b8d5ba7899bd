package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
)

// Event names carried in envelopes on the room socket.
const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventGetMessages    = "get_messages"
	EventSendMessage    = "send_message"
	EventMessageHistory = "message_history"
	EventReceiveMessage = "receive_message"
	EventCurrentUsers   = "current_users"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
)

// ErrMalformedEvent flags an inbound envelope whose payload is missing or
// unparseable. Such events are dropped and logged, never fatal.
var ErrMalformedEvent = errors.New("malformed event")

// Envelope is the framing for every message on the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InboundEvent is the tagged union of everything the server may push.
// Unrecognized event names decode to UnknownEvent so the session can
// degrade gracefully instead of guessing at shapes.
type InboundEvent interface {
	inbound()
}

// HistoryEvent is one page of message history.
type HistoryEvent struct {
	chat.MessageHistory
}

// MessageEvent is a live pushed chat message.
type MessageEvent struct {
	Message chat.Message
}

// RosterEvent is the roster snapshot pushed after a join.
type RosterEvent struct {
	Participants []chat.Participant
}

// JoinedEvent announces a participant entering the room.
type JoinedEvent struct {
	chat.PresenceChange
}

// LeftEvent announces a participant leaving the room.
type LeftEvent struct {
	chat.PresenceChange
}

// UnknownEvent carries an envelope the client does not understand.
type UnknownEvent struct {
	Event string
}

func (HistoryEvent) inbound() {}
func (MessageEvent) inbound() {}
func (RosterEvent) inbound()  {}
func (JoinedEvent) inbound()  {}
func (LeftEvent) inbound()    {}
func (UnknownEvent) inbound() {}

// DecodeInbound parses one raw socket frame into a typed event.
func DecodeInbound(raw []byte) (InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	}

	switch env.Event {
	case EventMessageHistory:
		var payload chat.MessageHistory
		if err := unmarshalData(env, &payload); err != nil {
			return nil, err
		}
		return HistoryEvent{payload}, nil

	case EventReceiveMessage:
		var msg chat.Message
		if err := unmarshalData(env, &msg); err != nil {
			return nil, err
		}
		if msg.SenderID == "" && !msg.IsSystem() {
			return nil, fmt.Errorf("%w: %s without sender_id", ErrMalformedEvent, env.Event)
		}
		return MessageEvent{Message: msg}, nil

	case EventCurrentUsers:
		var payload chat.CurrentUsers
		if err := unmarshalData(env, &payload); err != nil {
			return nil, err
		}
		return RosterEvent{Participants: payload.Participants}, nil

	case EventUserJoined:
		change, err := decodePresence(env)
		if err != nil {
			return nil, err
		}
		return JoinedEvent{change}, nil

	case EventUserLeft:
		change, err := decodePresence(env)
		if err != nil {
			return nil, err
		}
		return LeftEvent{change}, nil

	default:
		return UnknownEvent{Event: env.Event}, nil
	}
}

func decodePresence(env Envelope) (chat.PresenceChange, error) {
	var change chat.PresenceChange
	if err := unmarshalData(env, &change); err != nil {
		return chat.PresenceChange{}, err
	}
	if change.SenderID == "" {
		return chat.PresenceChange{}, fmt.Errorf("%w: %s without sender_id", ErrMalformedEvent, env.Event)
	}
	return change, nil
}

func unmarshalData(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrMalformedEvent, env.Event)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformedEvent, env.Event, err)
	}
	return nil
}
