package chat

import "time"

// SenderGPT is the distinguished automated participant. Its replies are
// broadcast by the server to the whole room even when they carry whisper
// fields, so clients must never hide them.
const SenderGPT = "gpt"

// TypeSystem marks locally synthesized notices (joins, leaves). System
// messages have no sender and never travel over the wire.
const TypeSystem = "system"

// Message is the wire shape of a single chat message. The whisper fields
// are legacy and overlapping: "this is a private reply to X" may arrive as
// whisper_to=X, as whisper=true with target=X, or as a bare target=X.
// Whisper is a pointer so an explicit false can be told apart from absent.
type Message struct {
	SenderID      string `json:"sender_id,omitempty"`
	Name          string `json:"name,omitempty"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
	Target        string `json:"target,omitempty"`
	Whisper       *bool  `json:"whisper,omitempty"`
	WhisperTo     string `json:"whisper_to,omitempty"`
	IsGPTQuestion bool   `json:"is_gpt_question,omitempty"`
	Reasoning     string `json:"reasoning,omitempty"`
	Type          string `json:"type,omitempty"`
}

// IsSystem reports whether the message is a locally synthesized notice.
func (m Message) IsSystem() bool {
	return m.Type == TypeSystem
}

// Key identifies a message for duplicate detection when merging history
// pages against the live tail.
func (m Message) Key() string {
	return m.Timestamp + "\x00" + m.SenderID
}

// NewSystemNotice synthesizes a system message stamped with the current
// time.
func NewSystemNotice(text string) Message {
	return Message{
		Message:   text,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Type:      TypeSystem,
	}
}
