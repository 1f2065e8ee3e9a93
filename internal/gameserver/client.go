package gameserver

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/gomokugo/internal/protocol"
)

// Default write queue / timeout constants. Overridden by config values.
const (
	defaultSendQueueSize = 64
	defaultWriteTimeout  = 5 * time.Second
)

// Client represents one accepted connection. Connection plumbing (send
// queue, activity stamp) is thread-safe; the identity fields (name, token,
// room) are owned by the dispatcher goroutine and must only be touched there.
type Client struct {
	id   string
	conn net.Conn
	ip   string

	// Per-client write queue: the dispatcher enqueues encoded lines, a
	// dedicated writePump goroutine owns the socket's write half.
	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration

	// lastActivity is read by the reaper, updated by the reader.
	lastActivity atomic.Int64 // unix nanos

	// Dispatcher-owned state.
	name         string
	sessionToken string
	roomID       string
}

// NewClient wraps an accepted connection.
func NewClient(id string, conn net.Conn, sendQueueSize int, writeTimeout time.Duration) *Client {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	c := &Client{
		id:           id,
		conn:         conn,
		ip:           host,
		sendCh:       make(chan []byte, sendQueueSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	c.Touch()
	return c
}

// ID returns the server-assigned client id.
func (c *Client) ID() string { return c.id }

// IP returns the client's remote IP address.
func (c *Client) IP() string { return c.ip }

// Conn returns the underlying network connection.
func (c *Client) Conn() net.Conn { return c.conn }

// Touch stamps the activity clock. Called by the reader on every frame.
func (c *Client) Touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last inbound traffic.
func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// writePump is the dedicated writer goroutine for this client. It drains
// queued lines and batches them through net.Buffers when more are pending.
func (c *Client) writePump() {
	bufs := make(net.Buffers, 0, 16)

	for {
		select {
		case line, ok := <-c.sendCh:
			if !ok {
				return
			}

			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				slog.Warn("set write deadline failed", "client", c.id, "error", err)
				return
			}

			queued := len(c.sendCh)
			if queued == 0 {
				if _, err := c.conn.Write(line); err != nil {
					slog.Warn("write failed", "client", c.id, "error", err)
					return
				}
				continue
			}

			bufs = bufs[:0]
			bufs = append(bufs, line)
			for i := 0; i < queued; i++ {
				bufs = append(bufs, <-c.sendCh)
			}
			if _, err := bufs.WriteTo(c.conn); err != nil {
				slog.Warn("batch write failed", "client", c.id, "error", err)
				return
			}

		case <-c.closeCh:
			return
		}
	}
}

// Send queues one encoded line for async delivery. Non-blocking: a full
// queue means a slow client, which gets disconnected.
func (c *Client) Send(line []byte) error {
	select {
	case <-c.closeCh:
		return fmt.Errorf("client %s closed", c.id)
	case c.sendCh <- line:
		return nil
	default:
		slog.Warn("send queue full, disconnecting slow client", "client", c.id)
		c.CloseAsync()
		return fmt.Errorf("send queue full")
	}
}

// SendMessage encodes m and queues it.
func (c *Client) SendMessage(m protocol.Message) error {
	line, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return c.Send(line)
}

// CloseAsync signals the writePump to stop without blocking.
// Safe to call multiple times.
func (c *Client) CloseAsync() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
}

// Close closes the connection and stops the writePump.
func (c *Client) Close() error {
	c.CloseAsync()
	return c.conn.Close()
}
