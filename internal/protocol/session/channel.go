package session

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/newswire/internal/observability"
	"github.com/danmuck/newswire/internal/protocol/frame"
)

// Conn is the capability surface both ends of a session work against.
type Conn interface {
	Send(text string) error
	Receive() (string, error)
	State() State
}

// Channel frames messages over one net.Conn and carries its menu state.
// Send is safe for concurrent use; Receive must only be called by the owner.
type Channel struct {
	conn   net.Conn
	reader *bufio.Reader
	cfg    Config
	role   string

	writeMu sync.Mutex
	state   atomic.Int32
}

var _ Conn = (*Channel)(nil)

// NewChannel wraps conn. role labels message metrics ("server" or "client").
func NewChannel(conn net.Conn, cfg Config, role string) *Channel {
	cfg = cfg.WithDefaults()
	return &Channel{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, cfg.Limits.ChunkSize),
		cfg:    cfg,
		role:   role,
	}
}

// Send writes text as one frame.
func (c *Channel) Send(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := frame.WriteMessage(c.conn, text, c.cfg.Limits); err != nil {
		return err
	}
	observability.RecordMessage(c.role, "out", len(text))
	return nil
}

// Receive blocks for the next complete frame.
func (c *Channel) Receive() (string, error) {
	if c.cfg.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
	text, err := frame.ReadMessage(c.reader, c.cfg.Limits)
	if err != nil {
		return "", err
	}
	observability.RecordMessage(c.role, "in", len(text))
	return text, nil
}

func (c *Channel) State() State {
	return State(c.state.Load())
}

func (c *Channel) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Channel) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *Channel) Close() error {
	c.setState(StateClosed)
	return c.conn.Close()
}
