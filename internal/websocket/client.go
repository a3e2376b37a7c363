// Package websocket maintains the persistent connection to the conversation
// server: dialing, reconnect with backoff, outbound queuing and heartbeats.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 16 << 20 // inline audio responses

	// Slots in the write channel beyond the queue capacity.
	sendHeadroom = 64

	eventBuffer = 256
)

var (
	// ErrNotConnected is returned by Send when disconnected and queuing is not allowed
	ErrNotConnected = errors.New("not connected")
	// ErrSendBufferFull is returned by Send when the writer is saturated and queuing is not allowed
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrSerialization is returned when a message cannot be encoded
	ErrSerialization = errors.New("message serialization failed")
	// ErrTimeout is returned when the connection attempt exceeds its deadline
	ErrTimeout = errors.New("connection attempt timed out")
	// ErrReconnectFailed is reported once every reconnect attempt has failed
	ErrReconnectFailed = errors.New("reconnect failed")
)

// Config holds connection settings
type Config struct {
	URL                  string
	QueueCapacity        int
	StaleAfter           time.Duration
	HeartbeatInterval    time.Duration
	BackoffBase          time.Duration
	MaxReconnectAttempts int
	ConnectTimeout       time.Duration
	WriteWait            time.Duration
}

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// TokenSource supplies the bearer token sent on the handshake
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// EventKind identifies what an Event carries
type EventKind int

const (
	// EventMessage carries a validated inbound message
	EventMessage EventKind = iota
	// EventStateChanged carries the new connection state
	EventStateChanged
	// EventReconnectFailed is emitted once when reconnecting is given up
	EventReconnectFailed
)

// Event is delivered to the owner of the client on Events()
type Event struct {
	Kind    EventKind
	Message interface{}
	State   entities.ConnectionState
	Err     error
}

// Client is the client side of the conversation connection. Send may be
// called from any goroutine; inbound traffic and state changes are delivered
// on Events for the scheduling goroutine to apply.
type Client struct {
	cfg       Config
	dialer    Dialer
	tokens    TokenSource
	metrics   *metrics.Metrics
	logger    *zap.Logger
	validator *MessageValidator
	queue     *Queue
	events    chan Event

	ctx    context.Context
	cancel context.CancelFunc

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu            sync.Mutex
	state         entities.ConnectionState
	conn          *websocket.Conn
	send          chan outbound
	wake          chan struct{}
	done          chan struct{}
	heartbeat     *Heartbeat
	sessionActive bool
	reconnecting  bool
	closed        bool
}

type outbound struct {
	msgType string
	payload []byte
}

// NewClient creates a disconnected client. dialer may be nil to use
// websocket.DefaultDialer; tokens and m may be nil.
func NewClient(cfg Config, dialer Dialer, tokens TokenSource, m *metrics.Metrics, logger *zap.Logger) *Client {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 50
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 10 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:       cfg,
		dialer:    dialer,
		tokens:    tokens,
		metrics:   m,
		logger:    logger,
		validator: NewMessageValidator(),
		queue:     NewQueue(cfg.QueueCapacity, cfg.StaleAfter),
		events:    make(chan Event, eventBuffer),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
		sleep:     sleepContext,
		state:     entities.ConnectionDisconnected,
		heartbeat: NewHeartbeat(cfg.HeartbeatInterval),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the channel of inbound messages and state changes
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the current connection state
func (c *Client) State() entities.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// QueueLen returns the number of messages waiting for a connection
func (c *Client) QueueLen() int {
	return c.queue.Len()
}

// SetSessionActive controls whether an unexpected disconnect is followed by
// reconnect attempts
func (c *Client) SetSessionActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionActive = active
}

// Connect dials the server. On success queued messages are flushed oldest
// first, dropping stale ones.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("client closed")
	}
	if c.state == entities.ConnectionConnected || c.state == entities.ConnectionConnecting {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(entities.ConnectionConnecting)
	if err := c.dial(ctx); err != nil {
		c.setState(entities.ConnectionDisconnected)
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	header := http.Header{}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get device token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			if inv, ok := c.tokens.(interface{ Invalidate() }); ok {
				inv.Invalidate()
			}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s", ErrTimeout, c.cfg.URL, c.cfg.ConnectTimeout)
		}
		return fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}

	c.attach(conn)
	return nil
}

// attach installs a fresh connection, flushes the queue and starts the pumps
func (c *Client) attach(conn *websocket.Conn) {
	now := c.now()

	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return
	}
	send := make(chan outbound, c.cfg.QueueCapacity+sendHeadroom)
	wake := make(chan struct{}, 1)
	done := make(chan struct{})
	c.conn = conn
	c.send = send
	c.wake = wake
	c.done = done
	c.state = entities.ConnectionConnected
	c.reconnecting = false
	c.heartbeat.Reset(now)

	// Flushed under the lock so nothing sent concurrently overtakes the backlog.
	fresh, stale := c.queue.Drain(now)
	for _, e := range fresh {
		send <- outbound{msgType: e.Type, payload: e.Payload}
	}
	c.mu.Unlock()

	c.metrics.SetConnected(true)
	c.metrics.SetQueueDepth(0)
	for i := 0; i < stale; i++ {
		c.metrics.RecordQueueDrop("stale")
	}
	c.logger.Info("Connected to server",
		zap.String("url", c.cfg.URL),
		zap.Int("flushed", len(fresh)),
		zap.Int("dropped", stale))
	c.emit(Event{Kind: EventStateChanged, State: entities.ConnectionConnected})

	go c.writePump(conn, send, wake, done)
	go c.readPump(conn)
}

// Send writes msg when connected. While the writer is saturated, or a
// backlog from an earlier saturation is still pending, msg joins the queue
// behind it. When disconnected it is queued if allowQueue is set, otherwise
// ErrNotConnected is returned.
func (c *Client) Send(msg interface{}, allowQueue bool) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	msgType := typeOf(msg)
	now := c.now()

	c.mu.Lock()
	connected := c.state.CanSend()
	if connected && c.queue.Len() == 0 {
		select {
		case c.send <- outbound{msgType: msgType, payload: payload}:
			c.heartbeat.Sent(now)
			c.mu.Unlock()
			return nil
		default:
		}
	}
	if !allowQueue {
		c.mu.Unlock()
		if connected {
			return fmt.Errorf("%w: %s", ErrSendBufferFull, msgType)
		}
		return fmt.Errorf("%w: %s", ErrNotConnected, msgType)
	}
	evicted, dropped := c.queue.Push(Entry{Type: msgType, Payload: payload, EnqueuedAt: now})
	depth := c.queue.Len()
	if connected {
		c.heartbeat.Sent(now)
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
	c.mu.Unlock()

	c.metrics.SetQueueDepth(depth)
	if dropped {
		c.metrics.RecordQueueDrop("evicted")
		c.logger.Warn("Outbound queue full, evicted oldest message",
			zap.String("evictedType", evicted.Type),
			zap.Int("capacity", c.cfg.QueueCapacity))
	}
	return nil
}

func typeOf(msg interface{}) string {
	if t, ok := msg.(interface{ MessageType() domain.MessageType }); ok {
		return string(t.MessageType())
	}
	return "unknown"
}

// Tick runs the heartbeat. busy halves the interval while the server is
// working on a turn. A ping unanswered for two intervals drops the
// connection so the reconnect logic takes over.
func (c *Client) Tick(now time.Time, busy bool, sessionID string) {
	c.mu.Lock()
	if !c.state.CanSend() {
		c.mu.Unlock()
		return
	}
	if c.heartbeat.Overdue(now, busy) {
		conn := c.conn
		c.mu.Unlock()
		c.logger.Warn("Heartbeat unanswered, dropping connection",
			zap.Duration("interval", c.heartbeat.Interval(busy)))
		conn.Close()
		return
	}
	due := c.heartbeat.Due(now, busy)
	c.mu.Unlock()
	if !due {
		return
	}

	if err := c.Send(domain.NewPingMessage(sessionID, now), false); err != nil {
		c.logger.Debug("Failed to send heartbeat", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.heartbeat.Pinged(now)
	c.mu.Unlock()
	c.metrics.RecordHeartbeat()
}

// writePump pumps messages from the send channel to the websocket
// connection. Once the channel is empty it writes the backlog queued while
// the channel was full.
func (c *Client) writePump(conn *websocket.Conn, send <-chan outbound, wake <-chan struct{}, done <-chan struct{}) {
	for {
		select {
		case msg := <-send:
			if !c.write(conn, msg) {
				return
			}
		case <-wake:
		case <-done:
			return
		}

		if len(send) == 0 && !c.flushBacklog(conn) {
			return
		}
	}
}

// flushBacklog writes every fresh queued entry. Sends made meanwhile go to
// the channel and are written after the backlog.
func (c *Client) flushBacklog(conn *websocket.Conn) bool {
	c.mu.Lock()
	if c.conn != conn || c.queue.Len() == 0 {
		c.mu.Unlock()
		return true
	}
	fresh, stale := c.queue.Drain(c.now())
	c.mu.Unlock()

	c.metrics.SetQueueDepth(0)
	for i := 0; i < stale; i++ {
		c.metrics.RecordQueueDrop("stale")
	}
	for _, e := range fresh {
		if !c.write(conn, outbound{msgType: e.Type, payload: e.Payload}) {
			return false
		}
	}
	return true
}

func (c *Client) write(conn *websocket.Conn, msg outbound) bool {
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
		c.logger.Error("Failed to write message",
			zap.String("type", msg.msgType),
			zap.Error(err))
		c.handleDisconnect(conn, err)
		return false
	}
	c.metrics.RecordMessageSent(msg.msgType)
	return true
}

// readPump pumps messages from the websocket connection to the event channel.
func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			c.handleDisconnect(conn, err)
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}

		msg, err := c.validator.ValidateMessage(message)
		if err != nil {
			c.logger.Warn("Dropping invalid message", zap.Error(err))
			continue
		}
		c.metrics.RecordMessageReceived(typeOf(msg))

		switch m := msg.(type) {
		case *domain.PingMessage:
			if err := c.Send(domain.NewPongMessage(m.SessionID, c.now()), false); err != nil {
				c.logger.Debug("Failed to answer ping", zap.Error(err))
			}
			continue
		case *domain.PongMessage:
			c.mu.Lock()
			rtt, ok := c.heartbeat.Ponged(c.now())
			c.mu.Unlock()
			if ok {
				c.metrics.ObserveHeartbeatLatency(rtt)
			}
			continue
		}

		c.emit(Event{Kind: EventMessage, Message: msg})
	}
}

// handleDisconnect tears down conn once and starts reconnecting when a
// session is active
func (c *Client) handleDisconnect(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	close(c.done)
	conn.Close()

	reconnect := c.sessionActive && !c.closed && !c.reconnecting
	if reconnect {
		c.state = entities.ConnectionReconnecting
		c.reconnecting = true
	} else {
		c.state = entities.ConnectionDisconnected
	}
	state := c.state
	c.mu.Unlock()

	c.metrics.SetConnected(false)
	c.logger.Warn("Disconnected from server",
		zap.Bool("reconnect", reconnect),
		zap.Error(cause))
	c.emit(Event{Kind: EventStateChanged, State: state})

	if reconnect {
		go c.reconnectLoop()
	}
}

// reconnectLoop dials with exponential backoff until connected, cancelled or
// out of attempts
func (c *Client) reconnectLoop() {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		delay := BackoffDelay(c.cfg.BackoffBase, attempt)
		c.logger.Info("Reconnecting",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", c.cfg.MaxReconnectAttempts),
			zap.Duration("delay", delay))

		if err := c.sleep(c.ctx, delay); err != nil {
			c.giveUp()
			return
		}

		c.mu.Lock()
		abort := c.closed || !c.sessionActive
		c.mu.Unlock()
		if abort {
			c.giveUp()
			return
		}

		c.setState(entities.ConnectionConnecting)
		c.metrics.RecordReconnectAttempt()
		lastErr = c.dial(c.ctx)
		if lastErr == nil {
			return
		}
		c.logger.Warn("Reconnect attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if c.ctx.Err() != nil {
			c.giveUp()
			return
		}
		c.setState(entities.ConnectionReconnecting)
	}

	c.giveUp()
	c.metrics.RecordReconnectFailure()
	c.logger.Error("Giving up reconnecting",
		zap.Int("attempts", c.cfg.MaxReconnectAttempts),
		zap.Error(lastErr))
	c.emit(Event{
		Kind: EventReconnectFailed,
		Err:  fmt.Errorf("%w after %d attempts: %v", ErrReconnectFailed, c.cfg.MaxReconnectAttempts, lastErr),
	})
}

// giveUp ends a reconnect cycle without a connection
func (c *Client) giveUp() {
	c.mu.Lock()
	c.reconnecting = false
	c.mu.Unlock()
	c.setState(entities.ConnectionDisconnected)
}

func (c *Client) setState(state entities.ConnectionState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.emit(Event{Kind: EventStateChanged, State: state})
}

// emit delivers an event unless the client is closed
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

// Close stops reconnecting and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	if c.done != nil && conn != nil {
		close(c.done)
	}
	c.state = entities.ConnectionDisconnected
	c.mu.Unlock()

	c.cancel()
	c.metrics.SetConnected(false)
	if conn == nil {
		return nil
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)

// DialContext implements Dialer
func (f DialerFunc) DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error) {
	return f(ctx, urlStr, requestHeader)
}
