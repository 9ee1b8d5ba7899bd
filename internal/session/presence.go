package session

import (
	"fmt"
	"sort"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
)

// Tracker maintains the authoritative room roster from the snapshot and
// the joined/left push stream. Joins and leaves are idempotent set
// operations, so an event racing ahead of the snapshot cannot corrupt
// the roster.
type Tracker struct {
	selfID       string
	participants map[string]chat.Participant
}

// NewTracker creates an empty roster for the given local user.
func NewTracker(selfID string) *Tracker {
	return &Tracker{
		selfID:       selfID,
		participants: make(map[string]chat.Participant),
	}
}

// ApplySnapshot replaces the roster wholesale. Used once, on the join
// response.
func (t *Tracker) ApplySnapshot(list []chat.Participant) {
	t.participants = make(map[string]chat.Participant, len(list))
	for _, p := range list {
		if p.StudentID == "" {
			continue
		}
		t.participants[p.StudentID] = p
	}
}

// ApplyJoined inserts or renames a participant. A join for an id already
// present is not an error; the last writer wins for the name. For anyone
// but self it returns a synthesized "X joined" notice.
func (t *Tracker) ApplyJoined(id, name string) (chat.Message, bool) {
	existing, present := t.participants[id]
	if present && name == "" {
		name = existing.Name
	}
	t.participants[id] = chat.Participant{StudentID: id, Name: name}

	if id == t.selfID {
		return chat.Message{}, false
	}
	display := chat.Participant{StudentID: id, Name: name}.DisplayName()
	return chat.NewSystemNotice(fmt.Sprintf("%s joined", display)), true
}

// ApplyLeft removes a participant; leaving an unknown id is a no-op on
// the roster. The notice uses the most recently known display name at
// the moment of the event, falling back to the id.
func (t *Tracker) ApplyLeft(id, name string) (chat.Message, bool) {
	if existing, present := t.participants[id]; present {
		if name == "" {
			name = existing.Name
		}
		delete(t.participants, id)
	}

	if id == t.selfID {
		return chat.Message{}, false
	}
	display := chat.Participant{StudentID: id, Name: name}.DisplayName()
	return chat.NewSystemNotice(fmt.Sprintf("%s left", display)), true
}

// Participants returns a copy of the roster ordered by id.
func (t *Tracker) Participants() []chat.Participant {
	list := make([]chat.Participant, 0, len(t.participants))
	for _, p := range t.participants {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].StudentID < list[j].StudentID
	})
	return list
}

// DisplayName resolves the current display name for an id, falling back
// to the id itself.
func (t *Tracker) DisplayName(id string) string {
	if p, ok := t.participants[id]; ok {
		return p.DisplayName()
	}
	return id
}
