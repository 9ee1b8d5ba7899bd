package transport

import (
	"errors"
	"testing"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
)

func TestDecodeReceiveMessage(t *testing.T) {
	raw := []byte(`{"event":"receive_message","data":{"sender_id":"s2","name":"Mina","message":"hi","timestamp":"2024-03-01T10:00:00Z"}}`)

	ev, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound err: %v", err)
	}

	msg, ok := ev.(MessageEvent)
	if !ok {
		t.Fatalf("expected MessageEvent, got %T", ev)
	}
	if msg.Message.SenderID != "s2" || msg.Message.Message != "hi" {
		t.Fatalf("unexpected payload %+v", msg.Message)
	}
}

func TestDecodeWhisperFlagsSurvive(t *testing.T) {
	raw := []byte(`{"event":"receive_message","data":{"sender_id":"s2","message":"psst","whisper":true,"target":"s1"}}`)

	ev, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound err: %v", err)
	}

	msg := ev.(MessageEvent).Message
	if msg.Whisper == nil || !*msg.Whisper {
		t.Fatal("explicit whisper flag must be preserved")
	}
	if msg.Target != "s1" {
		t.Fatalf("expected target s1, got %q", msg.Target)
	}
}

func TestDecodeAbsentWhisperIsNil(t *testing.T) {
	raw := []byte(`{"event":"receive_message","data":{"sender_id":"s2","message":"hi"}}`)

	ev, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound err: %v", err)
	}

	if msg := ev.(MessageEvent).Message; msg.Whisper != nil {
		t.Fatal("absent whisper must decode to nil, not false")
	}
}

func TestDecodeHistoryPage(t *testing.T) {
	raw := []byte(`{"event":"message_history","data":{"messages":[{"sender_id":"s2","message":"a"}],"page":2,"has_more":true}}`)

	ev, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound err: %v", err)
	}

	h, ok := ev.(HistoryEvent)
	if !ok {
		t.Fatalf("expected HistoryEvent, got %T", ev)
	}
	if h.Page != 2 || !h.HasMore || len(h.Messages) != 1 {
		t.Fatalf("unexpected page %+v", h.MessageHistory)
	}
}

func TestDecodeRoster(t *testing.T) {
	raw := []byte(`{"event":"current_users","data":{"participants":[{"student_id":"s1"},{"student_id":"s2","name":"Mina"}]}}`)

	ev, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound err: %v", err)
	}

	roster, ok := ev.(RosterEvent)
	if !ok {
		t.Fatalf("expected RosterEvent, got %T", ev)
	}
	if len(roster.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(roster.Participants))
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	raw := []byte(`{"event":"typing_indicator","data":{"sender_id":"s2"}}`)

	ev, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("unknown events must not error: %v", err)
	}

	unknown, ok := ev.(UnknownEvent)
	if !ok {
		t.Fatalf("expected UnknownEvent, got %T", ev)
	}
	if unknown.Event != "typing_indicator" {
		t.Fatalf("unexpected event name %q", unknown.Event)
	}
}

func TestDecodeMalformedFrames(t *testing.T) {
	cases := map[string][]byte{
		"not json":           []byte(`{"event":`),
		"missing event name": []byte(`{"data":{}}`),
		"missing payload":    []byte(`{"event":"receive_message"}`),
		"wrong payload type": []byte(`{"event":"message_history","data":[1,2]}`),
		"missing sender":     []byte(`{"event":"user_joined","data":{"name":"Mina"}}`),
	}

	for name, raw := range cases {
		if _, err := DecodeInbound(raw); !errors.Is(err, ErrMalformedEvent) {
			t.Fatalf("%s: expected ErrMalformedEvent, got %v", name, err)
		}
	}
}

func TestDecodeSystemMessageWithoutSender(t *testing.T) {
	raw := []byte(`{"event":"receive_message","data":{"message":"room archived","type":"system"}}`)

	ev, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("system messages need no sender: %v", err)
	}
	if msg := ev.(MessageEvent).Message; msg.Type != chat.TypeSystem {
		t.Fatalf("expected system type, got %q", msg.Type)
	}
}
