package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Options tunes socket timeouts. Zero values fall back to the defaults.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PongWait         time.Duration
	PingInterval     time.Duration
}

// DefaultOptions returns the timeouts used by the production client.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PongWait:         60 * time.Second,
		PingInterval:     25 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = def.HandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.PongWait <= 0 {
		o.PongWait = def.PongWait
	}
	if o.PingInterval <= 0 {
		o.PingInterval = def.PingInterval
	}
	return o
}

// Conn is one persistent room socket. Inbound frames are decoded on a
// dedicated read pump and delivered, in arrival order, on Events().
// Connection-level failures surface once on Faults(); the Conn never
// reconnects on its own.
type Conn struct {
	ws   *websocket.Conn
	opts Options
	log  zerolog.Logger

	writeMu sync.Mutex

	events chan InboundEvent
	faults chan error

	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens a websocket to the room server.
func Dial(ctx context.Context, url string, opts Options, log zerolog.Logger) (*Conn, error) {
	opts = opts.withDefaults()

	dialer := &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	c := &Conn{
		ws:     ws,
		opts:   opts,
		log:    log,
		events: make(chan InboundEvent, 32),
		faults: make(chan error, 1),
		done:   make(chan struct{}),
	}

	ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	go c.readPump()
	go c.pingLoop()

	return c, nil
}

// Events yields decoded inbound events in arrival order. The channel is
// closed when the read pump stops.
func (c *Conn) Events() <-chan InboundEvent {
	return c.events
}

// Faults yields at most one connection-level error.
func (c *Conn) Faults() <-chan error {
	return c.faults
}

// Emit sends one named event. Writes are serialized so callers on
// different goroutines cannot interleave frames.
func (c *Conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}

	c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.ws.WriteJSON(Envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Close tears the socket down. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readPump() {
	defer close(c.events)

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.fault(fmt.Errorf("websocket read: %w", err))
			}
			return
		}

		event, err := DecodeInbound(raw)
		if err != nil {
			// Malformed frames are dropped; the session must keep going.
			c.log.Warn().Err(err).Msg("dropping malformed event")
			continue
		}

		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.fault(fmt.Errorf("websocket ping: %w", err))
				return
			}
		}
	}
}

func (c *Conn) fault(err error) {
	select {
	case c.faults <- err:
	default:
	}
}
