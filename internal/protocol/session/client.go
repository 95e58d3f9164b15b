package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/danmuck/newswire/internal/protocol"
	"github.com/danmuck/newswire/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnexpectedReply = errors.New("session: unexpected reply")
	// ErrRejected reports an ERROR token from the server. The session stays
	// usable in its previous state.
	ErrRejected      = errors.New("session: request rejected")
	ErrWrongState    = errors.New("session: operation not valid in current state")
	ErrSessionClosed = errors.New("session: closed")
)

// Client drives the initiator side of one session.
type Client struct {
	ch *Channel
}

// Dial connects to addr, retrying with backoff up to cfg.MaxConnectAttempts.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxConnectAttempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			log.Debug().Msgf("session.Dial addr=%q attempt=%d connected", addr, attempt)
			return NewClient(conn, cfg), nil
		}
		lastErr = err
		if attempt == cfg.MaxConnectAttempts {
			break
		}
		delay := cfg.Backoff.Delay(attempt)
		log.Warn().Err(err).Msgf("session.Dial addr=%q attempt=%d retry_in=%s", addr, attempt, delay)
		if err := sleepContext(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: dial %s: %w", frame.ErrTransport, addr, err)
		}
	}
	return nil, fmt.Errorf("%w: dial %s after %d attempts: %w", frame.ErrTransport, addr, cfg.MaxConnectAttempts, lastErr)
}

func NewClient(conn net.Conn, cfg Config) *Client {
	return &Client{ch: NewChannel(conn, cfg, "client")}
}

func (c *Client) State() State {
	return c.ch.State()
}

// Target reports which submenu the client is in.
func (c *Client) Target() (protocol.Target, bool) {
	switch c.ch.State() {
	case StateHeadlinesMenu:
		return protocol.TargetHeadlines, true
	case StateSourcesMenu:
		return protocol.TargetSources, true
	default:
		return "", false
	}
}

func (c *Client) Close() error {
	return c.ch.Close()
}

// Hello introduces the client by name.
func (c *Client) Hello(name string) error {
	if err := c.require(StateAwaitingName); err != nil {
		return err
	}
	if err := c.exchange(name, protocol.ReplyConnected); err != nil {
		return err
	}
	c.ch.setState(StateMainMenu)
	return nil
}

func (c *Client) OpenHeadlines() error {
	if err := c.require(StateMainMenu); err != nil {
		return err
	}
	if err := c.exchange(protocol.MainHeadlines, protocol.ReplyHeadlines); err != nil {
		return err
	}
	c.ch.setState(StateHeadlinesMenu)
	return nil
}

func (c *Client) OpenSources() error {
	if err := c.require(StateMainMenu); err != nil {
		return err
	}
	if err := c.exchange(protocol.MainSources, protocol.ReplySources); err != nil {
		return err
	}
	c.ch.setState(StateSourcesMenu)
	return nil
}

// Search runs one filtered query from the current submenu and returns the
// raw JSON payload, which may itself carry status "error".
func (c *Client) Search(kind protocol.FilterKind, value string) (json.RawMessage, error) {
	target, ok := c.Target()
	if !ok {
		return nil, fmt.Errorf("%w: search from %s", ErrWrongState, c.ch.State())
	}
	if !protocol.NeedsValue(kind) {
		return c.ListAll()
	}
	choice, err := protocol.OptionChoice(target, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %s by %s", err, target, kind)
	}
	menu := c.ch.State()
	if err := c.exchange(choice, protocol.ReplyReady); err != nil {
		return nil, err
	}
	c.ch.setState(StateAwaitingFilterValue)
	if err := c.send(value); err != nil {
		return nil, err
	}
	return c.awaitPayload(menu)
}

// ListAll requests the unfiltered listing for the current submenu.
func (c *Client) ListAll() (json.RawMessage, error) {
	if _, ok := c.Target(); !ok {
		return nil, fmt.Errorf("%w: list from %s", ErrWrongState, c.ch.State())
	}
	menu := c.ch.State()
	if err := c.send(protocol.SubListAll); err != nil {
		return nil, err
	}
	return c.awaitPayload(menu)
}

// Back returns to the main menu. The server does not reply.
func (c *Client) Back() error {
	if _, ok := c.Target(); !ok {
		return fmt.Errorf("%w: back from %s", ErrWrongState, c.ch.State())
	}
	if err := c.send(protocol.SubBack); err != nil {
		return err
	}
	c.ch.setState(StateMainMenu)
	return nil
}

// Quit says goodbye and closes the connection.
func (c *Client) Quit() error {
	if err := c.require(StateMainMenu); err != nil {
		return err
	}
	err := c.exchange(protocol.MainQuit, protocol.ReplyBye)
	_ = c.ch.Close()
	return err
}

func (c *Client) require(want State) error {
	if got := c.ch.State(); got != want {
		if got == StateClosed {
			return ErrSessionClosed
		}
		return fmt.Errorf("%w: want %s have %s", ErrWrongState, want, got)
	}
	return nil
}

func (c *Client) send(text string) error {
	if err := c.ch.Send(text); err != nil {
		c.ch.setState(StateClosed)
		return err
	}
	return nil
}

func (c *Client) receive() (string, error) {
	reply, err := c.ch.Receive()
	if err != nil {
		if !errors.Is(err, frame.ErrInvalidUTF8) {
			c.ch.setState(StateClosed)
		}
		if errors.Is(err, frame.ErrClosed) {
			return "", ErrSessionClosed
		}
		return "", err
	}
	return reply, nil
}

// exchange sends text and expects the token want. ERROR leaves the state
// untouched and returns ErrRejected.
func (c *Client) exchange(text, want string) error {
	if err := c.send(text); err != nil {
		return err
	}
	reply, err := c.receive()
	if err != nil {
		return err
	}
	switch reply {
	case want:
		return nil
	case protocol.ReplyError:
		return ErrRejected
	default:
		return fmt.Errorf("%w: want %s got %q", ErrUnexpectedReply, want, reply)
	}
}

func (c *Client) awaitPayload(menu State) (json.RawMessage, error) {
	c.ch.setState(StateAwaitingResponse)
	reply, err := c.receive()
	if errors.Is(err, frame.ErrInvalidUTF8) {
		c.ch.setState(menu)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	c.ch.setState(menu)
	if reply == protocol.ReplyError {
		return nil, ErrRejected
	}
	return json.RawMessage(reply), nil
}
