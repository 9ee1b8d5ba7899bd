package session

import "github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"

// Log is the session's ordered message sequence. It is append-only for
// live traffic; history pages are prepended ahead of everything already
// loaded so the live tail is never disturbed. Chat messages are keyed by
// (timestamp, sender) to drop duplicates; locally synthesized system
// notices bypass the key set.
type Log struct {
	messages []chat.Message
	seen     map[string]struct{}
}

// NewLog creates an empty message log.
func NewLog() *Log {
	return &Log{seen: make(map[string]struct{})}
}

// Append adds one live message to the tail. It reports false when the
// message was already present.
func (l *Log) Append(msg chat.Message) bool {
	if !msg.IsSystem() {
		key := msg.Key()
		if _, dup := l.seen[key]; dup {
			return false
		}
		l.seen[key] = struct{}{}
	}
	l.messages = append(l.messages, msg)
	return true
}

// Prepend merges one history page ahead of all previously loaded
// messages. Records already present — a re-requested page, or an overlap
// with the live tail — are dropped rather than corrupting the log. It
// returns the number of messages kept.
func (l *Log) Prepend(page []chat.Message) int {
	kept := make([]chat.Message, 0, len(page))
	for _, msg := range page {
		key := msg.Key()
		if _, dup := l.seen[key]; dup {
			continue
		}
		l.seen[key] = struct{}{}
		kept = append(kept, msg)
	}
	if len(kept) == 0 {
		return 0
	}

	merged := make([]chat.Message, 0, len(kept)+len(l.messages))
	merged = append(merged, kept...)
	merged = append(merged, l.messages...)
	l.messages = merged
	return len(kept)
}

// Messages returns a copy of the log.
func (l *Log) Messages() []chat.Message {
	out := make([]chat.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len reports the number of messages in the log.
func (l *Log) Len() int {
	return len(l.messages)
}

// Paginator tracks backward pagination: which page is the oldest loaded,
// whether older pages remain, and whether a request is in flight. Only
// one page request may be outstanding at a time.
type Paginator struct {
	oldestLoaded int
	pending      int
	hasMore      bool
}

// NewPaginator starts before page 1 with history assumed available.
func NewPaginator() *Paginator {
	return &Paginator{hasMore: true}
}

// RequestNext reserves the next older page for fetching. It fails
// locally, without a round trip, once history is exhausted or while a
// request is still pending.
func (p *Paginator) RequestNext() (int, error) {
	if !p.hasMore {
		return 0, ErrHistoryExhausted
	}
	if p.pending != 0 {
		return 0, ErrPageRequestPending
	}
	p.pending = p.oldestLoaded + 1
	return p.pending, nil
}

// Cancel clears an in-flight request that will never be answered.
func (p *Paginator) Cancel() {
	p.pending = 0
}

// Apply merges a history response into the log and advances pagination
// state. Duplicate records are dropped by the log; the count of newly
// merged messages is returned.
func (p *Paginator) Apply(log *Log, h chat.MessageHistory) int {
	page := h.Page
	if page == 0 {
		page = p.pending
	}
	p.pending = 0
	if page > p.oldestLoaded {
		p.oldestLoaded = page
		p.hasMore = h.HasMore
	}
	return log.Prepend(h.Messages)
}

// HasMore reports whether older pages remain on the server.
func (p *Paginator) HasMore() bool {
	return p.hasMore
}

// OldestLoaded reports the highest page index merged so far.
func (p *Paginator) OldestLoaded() int {
	return p.oldestLoaded
}
