package server

import (
	"fmt"
	"sync"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
)

// Store keeps room state in memory: the full message log and the current
// roster per room. It is a development stand-in for the production
// persistence layer, not a scaling target.
type Store struct {
	mu       sync.RWMutex
	rooms    map[string]*roomState
	pageSize int
}

// NewStore creates an empty store serving history pages of the given
// size.
func NewStore(pageSize int) *Store {
	if pageSize < 1 {
		pageSize = 30
	}
	return &Store{
		rooms:    make(map[string]*roomState),
		pageSize: pageSize,
	}
}

// Metadata returns the data-API view of a room.
func (s *Store) Metadata(roomID string) chat.Room {
	room := s.room(roomID)
	room.mu.RLock()
	defer room.mu.RUnlock()
	return chat.Room{RoomID: roomID, Title: room.title}
}

// Append stores one message at the tail of the room log.
func (s *Store) Append(roomID string, msg chat.Message) {
	room := s.room(roomID)
	room.mu.Lock()
	defer room.mu.Unlock()
	room.messages = append(room.messages, msg)
}

// Recent returns up to limit of the newest messages, oldest first. Used
// as model context for the automated participant.
func (s *Store) Recent(roomID string, limit int) []chat.Message {
	room := s.room(roomID)
	room.mu.RLock()
	defer room.mu.RUnlock()

	start := len(room.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]chat.Message, len(room.messages)-start)
	copy(out, room.messages[start:])
	return out
}

// Page slices the room log into reverse-chronological pages: page 1 is
// the newest messages, higher pages strictly older ones. Within a page
// messages stay in chronological order. Pages never overlap.
func (s *Store) Page(roomID string, page int) chat.MessageHistory {
	if page < 1 {
		page = 1
	}

	room := s.room(roomID)
	room.mu.RLock()
	defer room.mu.RUnlock()

	total := len(room.messages)
	end := total - (page-1)*s.pageSize
	if end < 0 {
		end = 0
	}
	start := end - s.pageSize
	if start < 0 {
		start = 0
	}

	msgs := make([]chat.Message, end-start)
	copy(msgs, room.messages[start:end])

	return chat.MessageHistory{
		Messages: msgs,
		Page:     page,
		HasMore:  start > 0,
	}
}

// Join adds a participant to the roster. Re-joining is idempotent.
func (s *Store) Join(roomID string, p chat.Participant) {
	room := s.room(roomID)
	room.mu.Lock()
	defer room.mu.Unlock()
	room.participants[p.StudentID] = p
}

// Leave removes a participant from the roster.
func (s *Store) Leave(roomID, studentID string) {
	room := s.room(roomID)
	room.mu.Lock()
	defer room.mu.Unlock()
	delete(room.participants, studentID)
}

// Participants returns a copy of the room roster.
func (s *Store) Participants(roomID string) []chat.Participant {
	room := s.room(roomID)
	room.mu.RLock()
	defer room.mu.RUnlock()

	list := make([]chat.Participant, 0, len(room.participants))
	for _, p := range room.participants {
		list = append(list, p)
	}
	return list
}

// room returns the state for roomID, creating it on first use.
func (s *Store) room(roomID string) *roomState {
	s.mu.RLock()
	room, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if ok {
		return room
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok = s.rooms[roomID]; ok {
		return room
	}
	room = &roomState{
		title:        fmt.Sprintf("Discussion %s", roomID),
		participants: make(map[string]chat.Participant),
	}
	s.rooms[roomID] = room
	return room
}

type roomState struct {
	mu           sync.RWMutex
	title        string
	messages     []chat.Message
	participants map[string]chat.Participant
}
