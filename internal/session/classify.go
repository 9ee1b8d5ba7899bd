package session

import "github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"

// Classification is the visibility verdict for one inbound message,
// derived once at ingestion. The wire format has three equivalent
// encodings of "private reply to X" (whisper_to=X; whisper=true with
// target=X; bare target=X), so the raw fields are normalized here and
// never re-checked downstream.
type Classification struct {
	IsSystem        bool
	IsFromSelf      bool
	IsPublic        bool
	IsWhisperToSelf bool

	// Addressee is the whisper recipient, empty unless directed.
	Addressee string

	// Renderable applies the display policy: system, own, public, and
	// whisper-to-self messages render, as does anything sent by the
	// automated participant. The server already restricts delivery of
	// true whispers; this re-derivation only guards against frames the
	// transport should not have delivered.
	Renderable bool
}

// Classify derives the visibility verdict for msg as seen by selfID. It
// is a pure function of its arguments.
func Classify(msg chat.Message, selfID string) Classification {
	if msg.IsSystem() {
		return Classification{IsSystem: true, Renderable: true}
	}

	c := Classification{IsFromSelf: msg.SenderID == selfID}

	switch {
	case msg.WhisperTo != "":
		c.Addressee = msg.WhisperTo
	case msg.Whisper != nil && *msg.Whisper && msg.Target != "":
		c.Addressee = msg.Target
	case msg.Target != "" && msg.Whisper == nil && msg.WhisperTo == "":
		// A bare target with no contradicting flag is still a whisper.
		c.Addressee = msg.Target
	}

	c.IsPublic = c.Addressee == ""
	c.IsWhisperToSelf = c.Addressee != "" && c.Addressee == selfID

	// GPT replies are rendered by everyone who receives them; fan-out
	// restriction is the server's job, not ours.
	c.Renderable = c.IsFromSelf || c.IsPublic || c.IsWhisperToSelf ||
		msg.SenderID == chat.SenderGPT

	return c
}
