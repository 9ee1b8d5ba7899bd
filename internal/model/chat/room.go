package chat

// Room is the metadata record served by the data API.
type Room struct {
	RoomID string `json:"room_id"`
	Title  string `json:"title"`
}

// Participant is one member of a room's live roster, keyed by StudentID.
type Participant struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name,omitempty"`
}

// DisplayName returns the participant's name, falling back to the id.
func (p Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.StudentID
}
