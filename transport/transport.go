// Package transport carries text frames between the client and the world
// server over a WebSocket. Socket I/O runs on background goroutines; the
// game loop drains typed events with Poll.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// EventKind tags an Event.
type EventKind uint8

const (
	EventOpen EventKind = iota
	EventMessage
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	}
	return "close"
}

// Event is one transport notification. Data is set for EventMessage, Err
// for EventError, Code and Reason for EventClose.
type Event struct {
	Kind   EventKind
	Data   []byte
	Err    error
	Code   int
	Reason string
	At     time.Time
}

// ConnState is the connection lifecycle state.
type ConnState uint32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// ErrNotConnected is returned by Send while the socket is not open.
var ErrNotConnected = errors.New("transport: not connected")

// ErrQueueFull is returned by Send when the outbound queue is full.
var ErrQueueFull = errors.New("transport: send queue full")

// Config holds transport settings.
type Config struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	MaxMessageSize   int64
	EventQueueSize   int
	SendQueueSize    int
}

// DefaultConfig returns the stock settings for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteWait:        10 * time.Second,
		PongWait:         60 * time.Second,
		PingPeriod:       54 * time.Second,
		MaxMessageSize:   4 << 20,
		EventQueueSize:   1024,
		SendQueueSize:    256,
	}
}

// Client is one WebSocket session.
type Client struct {
	cfg    Config
	events chan Event
	send   chan []byte
	state  atomic.Uint32

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	wg     sync.WaitGroup

	dropped atomic.Uint64
}

// New returns an unconnected client.
func New(cfg Config) *Client {
	def := DefaultConfig(cfg.URL)
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.EventQueueSize <= 0 {
		cfg.EventQueueSize = def.EventQueueSize
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:    cfg,
		events: make(chan Event, cfg.EventQueueSize),
		send:   make(chan []byte, cfg.SendQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// State returns the connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Connect dials in the background. The outcome arrives as EventOpen, or as
// EventError followed by EventClose.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.State() != StateDisconnected {
		return
	}
	c.state.Store(uint32(StateConnecting))
	c.wg.Add(1)
	go c.dial()
}

func (c *Client) dial() {
	defer c.wg.Done()
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(c.ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		c.state.Store(uint32(StateDisconnected))
		c.emit(Event{Kind: EventError, Err: fmt.Errorf("dial %v: %w", c.cfg.URL, err)})
		c.emit(Event{Kind: EventClose, Code: websocket.CloseAbnormalClosure, Reason: "dial failed"})
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})
	c.state.Store(uint32(StateConnected))
	c.emit(Event{Kind: EventOpen})

	done := make(chan struct{})
	c.wg.Add(1)
	go c.writeLoop(conn, done)
	c.readLoop(conn)
	close(done)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			c.state.Store(uint32(StateDisconnected))
			code, reason := websocket.CloseAbnormalClosure, err.Error()
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				code, reason = ce.Code, ce.Text
			}
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.emit(Event{Kind: EventError, Err: err})
			}
			c.emit(Event{Kind: EventClose, Code: code, Reason: reason})
			conn.Close()
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		if kind != websocket.TextMessage {
			log.Printf("transport: ignoring %d byte binary frame", len(data))
			continue
		}
		c.emit(Event{Kind: EventMessage, Data: data})
	}
}

func (c *Client) writeLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-c.ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutting down"))
			conn.Close()
			return
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("transport: write: %v", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("transport: ping: %v", err)
				conn.Close()
				return
			}
		}
	}
}

// emit queues ev for Poll. Frames, Open and Close wait for room so they
// reach the game loop in arrival order; only error reports are dropped when
// the queue is full.
func (c *Client) emit(ev Event) {
	ev.At = time.Now()
	if ev.Kind != EventError {
		select {
		case c.events <- ev:
		case <-c.ctx.Done():
		}
		return
	}
	select {
	case c.events <- ev:
	default:
		if n := c.dropped.Add(1); n == 1 || n%100 == 0 {
			log.Printf("transport: event queue full, dropped %d error events", n)
		}
	}
}

// Send queues one text frame.
func (c *Client) Send(msg []byte) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Poll returns the events received since the last call, in order. It never
// blocks.
func (c *Client) Poll() []Event {
	var out []Event
	for {
		select {
		case ev := <-c.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Dropped returns how many error events were discarded because the queue
// was full.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Close shuts the session and waits for its goroutines.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
	c.state.Store(uint32(StateDisconnected))
}
