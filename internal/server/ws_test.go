package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/config"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/service/answer"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/transport"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc, err := answer.NewService(context.Background(), config.AIConfig{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	srv := New(NewStore(30), svc, zerolog.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func dialSocket(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	if err := conn.WriteJSON(transport.Envelope{Event: event, Data: data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func joinRoom(t *testing.T, conn *websocket.Conn, roomID, studentID string) {
	t.Helper()
	emit(t, conn, transport.EventJoinRoom, chat.JoinRoom{RoomID: roomID, SenderID: studentID})
}

// awaitEvent reads frames until one decodes to the wanted event name,
// skipping unrelated pushes (presence and roster updates race everything
// else on the stream).
func awaitEvent(t *testing.T, conn *websocket.Conn, event string) transport.InboundEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		var env transport.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad frame while waiting for %s: %v", event, err)
		}
		if env.Event != event {
			continue
		}
		ev, err := transport.DecodeInbound(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", event, err)
		}
		return ev
	}
	t.Fatalf("timed out waiting for %s", event)
	return nil
}

func awaitMessage(t *testing.T, conn *websocket.Conn) chat.Message {
	t.Helper()
	return awaitEvent(t, conn, transport.EventReceiveMessage).(transport.MessageEvent).Message
}

func TestJoinDeliversRosterSnapshot(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSocket(t, ts)

	joinRoom(t, conn, "r1", "s1")

	roster := awaitEvent(t, conn, transport.EventCurrentUsers).(transport.RosterEvent)
	if len(roster.Participants) != 1 || roster.Participants[0].StudentID != "s1" {
		t.Fatalf("unexpected roster %+v", roster.Participants)
	}
}

func TestJoinNotifiesExistingMembers(t *testing.T) {
	ts := newTestServer(t)

	first := dialSocket(t, ts)
	joinRoom(t, first, "r1", "s1")
	awaitEvent(t, first, transport.EventCurrentUsers)

	second := dialSocket(t, ts)
	joinRoom(t, second, "r1", "s2")

	joined := awaitEvent(t, first, transport.EventUserJoined).(transport.JoinedEvent)
	if joined.SenderID != "s2" {
		t.Fatalf("expected s2 join notice, got %+v", joined.PresenceChange)
	}
}

func TestHistoryRequestReturnsPage(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSocket(t, ts)

	joinRoom(t, conn, "r1", "s1")
	emit(t, conn, transport.EventSendMessage, chat.SendMessage{RoomID: "r1", Message: "hello"})
	awaitMessage(t, conn)

	emit(t, conn, transport.EventGetMessages, chat.GetMessages{RoomID: "r1", Page: 1})

	history := awaitEvent(t, conn, transport.EventMessageHistory).(transport.HistoryEvent)
	if history.Page != 1 || history.HasMore {
		t.Fatalf("unexpected page metadata %+v", history.MessageHistory)
	}
	if len(history.Messages) != 1 || history.Messages[0].Message != "hello" {
		t.Fatalf("unexpected history %+v", history.Messages)
	}
	if history.Messages[0].Timestamp == "" {
		t.Fatal("server must stamp messages")
	}
}

func TestPublicMessageReachesEveryone(t *testing.T) {
	ts := newTestServer(t)

	a := dialSocket(t, ts)
	b := dialSocket(t, ts)
	joinRoom(t, a, "r1", "s1")
	joinRoom(t, b, "r1", "s2")
	awaitEvent(t, b, transport.EventCurrentUsers)

	emit(t, a, transport.EventSendMessage, chat.SendMessage{RoomID: "r1", SenderID: "s1", Message: "hi all"})

	for name, conn := range map[string]*websocket.Conn{"sender": a, "peer": b} {
		msg := awaitMessage(t, conn)
		if msg.Message != "hi all" || msg.SenderID != "s1" {
			t.Fatalf("%s got unexpected message %+v", name, msg)
		}
	}
}

func TestWhisperSkipsBystanders(t *testing.T) {
	ts := newTestServer(t)

	a := dialSocket(t, ts)
	b := dialSocket(t, ts)
	c := dialSocket(t, ts)
	joinRoom(t, a, "r1", "s1")
	joinRoom(t, b, "r1", "s2")
	joinRoom(t, c, "r1", "s3")
	awaitEvent(t, c, transport.EventCurrentUsers)

	emit(t, a, transport.EventSendMessage, chat.SendMessage{
		RoomID: "r1", SenderID: "s1", Message: "secret", Target: "s2",
	})

	if msg := awaitMessage(t, a); msg.Message != "secret" {
		t.Fatalf("sender must get an echo, got %+v", msg)
	}
	if msg := awaitMessage(t, b); msg.Message != "secret" {
		t.Fatalf("addressee must get the whisper, got %+v", msg)
	}

	// The bystander's next message must be the later public one, not the
	// whisper.
	emit(t, a, transport.EventSendMessage, chat.SendMessage{
		RoomID: "r1", SenderID: "s1", Message: "public after",
	})
	if msg := awaitMessage(t, c); msg.Message != "public after" {
		t.Fatalf("bystander must not see the whisper, got %+v", msg)
	}
}

func TestAutomatedReplyIsBroadcast(t *testing.T) {
	ts := newTestServer(t)

	asker := dialSocket(t, ts)
	peer := dialSocket(t, ts)
	joinRoom(t, asker, "r1", "s1")
	joinRoom(t, peer, "r1", "s2")
	awaitEvent(t, peer, transport.EventCurrentUsers)

	emit(t, asker, transport.EventSendMessage, chat.SendMessage{
		RoomID: "r1", SenderID: "s1", Message: "what is osmosis?",
		IsGPTQuestion: true, Target: chat.SenderGPT,
	})

	// Question first, then the reply addressed to the asker but delivered
	// to the whole room.
	awaitMessage(t, asker)
	reply := awaitMessage(t, asker)
	if reply.SenderID != chat.SenderGPT {
		t.Fatalf("expected automated reply, got %+v", reply)
	}
	if reply.WhisperTo != "s1" {
		t.Fatalf("reply must be addressed to the asker, got %q", reply.WhisperTo)
	}

	awaitMessage(t, peer)
	peerReply := awaitMessage(t, peer)
	if peerReply.SenderID != chat.SenderGPT {
		t.Fatalf("bystander must also receive the reply, got %+v", peerReply)
	}
}

func TestLeaveNotifiesRoom(t *testing.T) {
	ts := newTestServer(t)

	a := dialSocket(t, ts)
	b := dialSocket(t, ts)
	joinRoom(t, a, "r1", "s1")
	joinRoom(t, b, "r1", "s2")
	awaitEvent(t, a, transport.EventUserJoined)

	emit(t, b, transport.EventLeaveRoom, chat.LeaveRoom{RoomID: "r1", SenderID: "s2"})

	left := awaitEvent(t, a, transport.EventUserLeft).(transport.LeftEvent)
	if left.SenderID != "s2" {
		t.Fatalf("expected s2 leave notice, got %+v", left.PresenceChange)
	}
}

func TestEmptyMessageIgnored(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSocket(t, ts)

	joinRoom(t, conn, "r1", "s1")
	awaitEvent(t, conn, transport.EventCurrentUsers)

	emit(t, conn, transport.EventSendMessage, chat.SendMessage{RoomID: "r1", Message: "   "})
	emit(t, conn, transport.EventSendMessage, chat.SendMessage{RoomID: "r1", Message: "real"})

	if msg := awaitMessage(t, conn); msg.Message != "real" {
		t.Fatalf("blank message must be dropped, got %+v", msg)
	}
}
