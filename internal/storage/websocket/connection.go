package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/pitlane/kart/pkg/streaming"
)

const (
	sendChSize   = 1024
	maxReconnect = 10
	minBackoff   = time.Second
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection owns one websocket at a time. Frames are written by a single
// writer goroutine; acks are routed by message type to whoever waits on them.
type connection struct {
	mu      sync.Mutex
	conn    *ws.Conn
	gen     int // bumped on every attach so stale loops stop reconnecting
	hello   []byte
	waiters map[string][]chan struct{}

	sendCh chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	endpoint string
	logger   *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &connection{
		waiters: make(map[string][]chan struct{}),
		sendCh:  make(chan []byte, sendChSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// dial opens the first socket. The secret travels as a query parameter.
func (c *connection) dial(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	c.endpoint = u.String()

	conn, err := c.open()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *connection) open() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.DialContext(c.ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// attach installs conn as the live socket and starts its loops.
func (c *connection) attach(conn *ws.Conn) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn, gen)
	go c.readLoop(conn, gen)
}

func writeFrame(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func (c *connection) writeLoop(conn *ws.Conn, gen int) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.sendCh:
			if err := writeFrame(conn, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.lost(gen)
				return
			}
		}
	}
}

func (c *connection) readLoop(conn *ws.Conn, gen int) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("WebSocket read error", "error", err)
				c.lost(gen)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Ignoring non-ack message", "raw", string(message))
			continue
		}
		c.resolve(ack.For)
	}
}

// lost reacts to a failed socket. Only the first loop of the current
// generation starts a reconnect.
func (c *connection) lost(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.conn == nil || c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	go c.reconnect()
}

func nextBackoff(d time.Duration) time.Duration {
	return min(2*d, maxBackoff)
}

// reconnect redials with exponential backoff and replays the session hello
// before resuming the loops.
func (c *connection) reconnect() {
	backoff := minBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := c.open()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = nextBackoff(backoff)
			continue
		}

		c.mu.Lock()
		hello := c.hello
		c.mu.Unlock()
		if hello != nil {
			if err := writeFrame(conn, hello); err != nil {
				c.logger.Warn("Failed to replay session_start after reconnect", "error", err)
				_ = conn.Close()
				backoff = nextBackoff(backoff)
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		c.attach(conn)
		return
	}
	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send queues a frame without blocking. Frames are dropped when the queue is
// full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

func (c *connection) wait(msgType string) chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters[msgType] = append(c.waiters[msgType], ch)
	c.mu.Unlock()
	return ch
}

// resolve wakes the oldest waiter for msgType.
func (c *connection) resolve(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.waiters[msgType]
	if len(queue) == 0 {
		c.logger.Debug("Unexpected ack", "for", msgType)
		return
	}
	close(queue[0])
	c.waiters[msgType] = queue[1:]
}

func (c *connection) forget(msgType string, ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.waiters[msgType]
	for i, w := range queue {
		if w == ch {
			c.waiters[msgType] = append(queue[:i:i], queue[i+1:]...)
			return
		}
	}
}

// sendAndWait queues data and blocks until the server acks msgType or the
// timeout expires.
func (c *connection) sendAndWait(data []byte, msgType string, timeout time.Duration) error {
	acked := c.wait(msgType)
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-acked:
		return nil
	case <-timer.C:
		c.forget(msgType, acked)
		return fmt.Errorf("timeout waiting for ack of %q", msgType)
	case <-c.ctx.Done():
		c.forget(msgType, acked)
		return fmt.Errorf("connection closed while waiting for ack of %q", msgType)
	}
}

func (c *connection) setHello(data []byte) {
	c.mu.Lock()
	c.hello = data
	c.mu.Unlock()
}

// close sends a close frame and stops all loops. It is safe to call twice.
func (c *connection) close() error {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return nil
	}
	c.cancel()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return conn.Close()
}
