package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/transport"
)

// Phase is the connection lifecycle of one room session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseJoining
	PhaseActive
	PhaseLeaving
	PhaseFaulted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseJoining:
		return "joining"
	case PhaseActive:
		return "active"
	case PhaseLeaving:
		return "leaving"
	case PhaseFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Dialer opens the room socket. Production sessions dial a websocket;
// tests inject an in-memory transport.
type Dialer func(ctx context.Context) (Transport, error)

// WebSocketDialer returns a Dialer for the given socket URL.
func WebSocketDialer(url string, opts transport.Options, log zerolog.Logger) Dialer {
	return func(ctx context.Context) (Transport, error) {
		return transport.Dial(ctx, url, opts, log)
	}
}

// RoomDirectory looks up room metadata on the data API. Consulted once
// per session entry.
type RoomDirectory interface {
	Room(ctx context.Context, roomID string) (chat.Room, error)
}

// Config describes one room membership.
type Config struct {
	RoomID string
	SelfID string

	Dial      Dialer
	Directory RoomDirectory // optional

	// RequestTimeout bounds request/response calls (dial, metadata,
	// pagination). Zero means 15s.
	RequestTimeout time.Duration

	Logger zerolog.Logger
}

// Snapshot is the consistent view the presentation layer renders from.
// Slices are copies; the controller retains sole ownership of the
// underlying state.
type Snapshot struct {
	Phase          Phase
	RoomID         string
	SelfID         string
	Title          string
	Messages       []chat.Message
	Participants   []chat.Participant
	HasMoreHistory bool
	Err            error
}

// Controller owns one session: the connection lifecycle, the message
// log, and the roster. Every inbound event is applied strictly in
// arrival order by a single run loop, so the log and roster stay
// consistent without coordination between components. Session state is
// created on room entry, discarded on leave, and never persisted;
// reconnecting starts from scratch.
type Controller struct {
	roomID  string
	selfID  string
	dial    Dialer
	dir     RoomDirectory
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	phase   Phase
	title   string
	msgs    *Log
	tracker *Tracker
	pager   *Paginator
	emitter *Emitter
	conn    Transport
	err     error

	cancel  context.CancelFunc
	updates chan struct{}
}

// NewController creates an Idle session for the given room membership.
func NewController(cfg Config) *Controller {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Controller{
		roomID:  cfg.RoomID,
		selfID:  cfg.SelfID,
		dial:    cfg.Dial,
		dir:     cfg.Directory,
		timeout: timeout,
		log: cfg.Logger.With().
			Str("room", cfg.RoomID).
			Str("user", cfg.SelfID).
			Logger(),
		phase:   PhaseIdle,
		msgs:    NewLog(),
		tracker: NewTracker(cfg.SelfID),
		pager:   NewPaginator(),
		updates: make(chan struct{}, 1),
	}
}

// Start connects, joins the room, and requests the first history page.
// Join and history are two independent requests and may be answered in
// either order; the session leaves the loading state on the first
// history response. A missing room or user id faults immediately so the
// caller can redirect to login.
func (c *Controller) Start(ctx context.Context) error {
	if c.roomID == "" || c.selfID == "" {
		c.mu.Lock()
		c.phase = PhaseFaulted
		c.err = ErrMissingSessionContext
		c.mu.Unlock()
		c.notify()
		return ErrMissingSessionContext
	}

	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return errors.New("session already started")
	}
	c.phase = PhaseConnecting
	c.mu.Unlock()
	c.notify()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	var (
		conn  Transport
		title string
	)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		dialCtx, done := context.WithTimeout(gctx, c.timeout)
		defer done()
		var err error
		conn, err = c.dial(dialCtx)
		return err
	})
	if c.dir != nil {
		g.Go(func() error {
			metaCtx, done := context.WithTimeout(gctx, c.timeout)
			defer done()
			room, err := c.dir.Room(metaCtx, c.roomID)
			if err != nil {
				// Metadata is cosmetic; the session proceeds untitled.
				c.log.Warn().Err(err).Msg("room metadata fetch failed")
				return nil
			}
			title = room.Title
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cancel()
		c.fail("connect", err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.title = title
	c.emitter = NewEmitter(conn, c.roomID, c.selfID)
	c.phase = PhaseJoining
	page, _ := c.pager.RequestNext()
	emitter := c.emitter
	c.mu.Unlock()
	c.notify()

	if err := emitter.Join(); err != nil {
		conn.Close()
		cancel()
		c.fail("join", err)
		return err
	}
	if err := emitter.RequestPage(page); err != nil {
		conn.Close()
		cancel()
		c.fail("history", err)
		return err
	}

	go c.run(runCtx, conn)
	return nil
}

// run applies inbound events one at a time until teardown or fault.
func (c *Controller) run(ctx context.Context, conn Transport) {
	for {
		select {
		case <-ctx.Done():
			return

		case err := <-conn.Faults():
			conn.Close()
			c.fail("stream", err)
			return

		case ev, ok := <-conn.Events():
			if !ok {
				// Read pump ended. If we did not initiate the close,
				// a fault should be waiting; otherwise treat the EOF
				// itself as the fault.
				select {
				case err := <-conn.Faults():
					c.fail("stream", err)
				default:
					c.fail("stream", errors.New("connection closed by server"))
				}
				return
			}
			c.apply(ev)
			c.notify()
		}
	}
}

// apply routes one inbound event to the classifier, tracker, or
// paginator. Bad records are skipped; they must never take the session
// down.
func (c *Controller) apply(ev transport.InboundEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev := ev.(type) {
	case transport.HistoryEvent:
		added := c.pager.Apply(c.msgs, ev.MessageHistory)
		if c.phase == PhaseJoining {
			c.phase = PhaseActive
		}
		c.log.Debug().
			Int("page", ev.Page).
			Int("merged", added).
			Bool("has_more", ev.HasMore).
			Msg("history page merged")

	case transport.MessageEvent:
		verdict := Classify(ev.Message, c.selfID)
		if !verdict.Renderable {
			// A whisper between two other users. The server should not
			// have delivered it; drop it rather than display it.
			c.log.Debug().
				Str("sender", ev.Message.SenderID).
				Msg("dropping message not addressed to this user")
			return
		}
		c.msgs.Append(ev.Message)

	case transport.RosterEvent:
		c.tracker.ApplySnapshot(ev.Participants)

	case transport.JoinedEvent:
		if notice, ok := c.tracker.ApplyJoined(ev.SenderID, ev.Name); ok {
			c.msgs.Append(notice)
		}

	case transport.LeftEvent:
		if notice, ok := c.tracker.ApplyLeft(ev.SenderID, ev.Name); ok {
			c.msgs.Append(notice)
		}

	case transport.UnknownEvent:
		c.log.Debug().Str("event", ev.Event).Msg("ignoring unknown event")
	}
}

// SendMessage submits a chat message. directedTo may be empty for a
// public message, a participant id for a whisper, or the automated
// participant's id to ask it a question.
func (c *Controller) SendMessage(text, directedTo string) error {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	emitter := c.emitter
	c.mu.Unlock()

	if err := emitter.Send(text, directedTo); err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			return err
		}
		c.fail("send", err)
		return err
	}
	return nil
}

// LoadOlder requests the next older history page. Exhausted history and
// an already pending request are rejected locally. A response that never
// arrives is abandoned after the request timeout so load-more does not
// wedge forever.
func (c *Controller) LoadOlder() error {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	page, err := c.pager.RequestNext()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	emitter := c.emitter
	c.mu.Unlock()

	if err := emitter.RequestPage(page); err != nil {
		c.mu.Lock()
		c.pager.Cancel()
		c.mu.Unlock()
		c.fail("pagination", err)
		return err
	}

	time.AfterFunc(c.timeout, func() {
		c.mu.Lock()
		abandoned := c.pager.pending == page
		if abandoned {
			c.pager.Cancel()
		}
		c.mu.Unlock()
		if abandoned {
			c.log.Warn().Int("page", page).Msg("history page request timed out")
			c.notify()
		}
	})
	return nil
}

// Leave tears the session down: departure is announced best effort, the
// socket is closed, in-flight requests are cancelled, and session state
// is discarded. The controller returns to Idle.
func (c *Controller) Leave() {
	c.mu.Lock()
	if c.phase == PhaseIdle {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseLeaving
	emitter := c.emitter
	conn := c.conn
	c.mu.Unlock()
	c.notify()

	if c.cancel != nil {
		c.cancel()
	}
	if emitter != nil {
		emitter.Leave()
	}
	if conn != nil {
		conn.Close()
	}

	c.mu.Lock()
	c.phase = PhaseIdle
	c.msgs = NewLog()
	c.tracker = NewTracker(c.selfID)
	c.pager = NewPaginator()
	c.emitter = nil
	c.conn = nil
	c.err = nil
	c.mu.Unlock()
	c.notify()
}

// Snapshot returns a consistent copy of the session for rendering. After
// a fault the last rendered log and roster remain available — frozen,
// not cleared — alongside the error.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:          c.phase,
		RoomID:         c.roomID,
		SelfID:         c.selfID,
		Title:          c.title,
		Messages:       c.msgs.Messages(),
		Participants:   c.tracker.Participants(),
		HasMoreHistory: c.pager.HasMore(),
		Err:            c.err,
	}
}

// Err returns the session-level fault, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Updates signals, coalesced, whenever the snapshot may have changed.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// fail moves the session to Faulted unless it is already tearing down.
// State is frozen, never cleared, so the user keeps the log they had.
func (c *Controller) fail(op string, err error) {
	c.mu.Lock()
	if c.phase == PhaseLeaving || c.phase == PhaseIdle || c.phase == PhaseFaulted {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseFaulted
	c.err = &TransportFault{Op: op, Err: err}
	c.mu.Unlock()

	c.log.Error().Err(err).Str("op", op).Msg("session faulted")
	c.notify()
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
