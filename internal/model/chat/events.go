package chat

// Wire payloads for the room socket. Outbound payloads are emitted by the
// client; inbound payloads arrive inside named envelopes.

// JoinRoom announces a participant entering a room.
type JoinRoom struct {
	RoomID   string `json:"room_id"`
	SenderID string `json:"sender_id"`
}

// LeaveRoom announces a participant leaving a room.
type LeaveRoom struct {
	RoomID   string `json:"room_id"`
	SenderID string `json:"sender_id"`
}

// GetMessages requests one page of history. Page 1 is the newest page;
// higher pages cover strictly older time ranges.
type GetMessages struct {
	RoomID string `json:"room_id"`
	Page   int    `json:"page,omitempty"`
}

// SendMessage carries a user-authored message to the server. The server
// assigns the timestamp and decides fan-out of any reply.
type SendMessage struct {
	RoomID        string `json:"room_id"`
	SenderID      string `json:"sender_id"`
	Message       string `json:"message"`
	IsGPTQuestion bool   `json:"is_gpt_question,omitempty"`
	Target        string `json:"target,omitempty"`
}

// MessageHistory is the response to GetMessages.
type MessageHistory struct {
	Messages []Message `json:"messages"`
	Page     int       `json:"page"`
	HasMore  bool      `json:"has_more"`
}

// CurrentUsers is the roster snapshot pushed after a join.
type CurrentUsers struct {
	Participants []Participant `json:"participants"`
}

// PresenceChange is the payload of user_joined and user_left pushes.
type PresenceChange struct {
	SenderID string `json:"sender_id"`
	Name     string `json:"name,omitempty"`
}
