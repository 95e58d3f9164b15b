package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/danmuck/newswire/internal/news"
	"github.com/danmuck/newswire/internal/observability"
	"github.com/danmuck/newswire/internal/protocol"
	"github.com/danmuck/newswire/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// DefaultGroupID is appended to every persisted result key.
const DefaultGroupID = "GB5"

var errBye = errors.New("session: client quit")

// ServerOptions configures one server-side session.
type ServerOptions struct {
	ID           string
	GroupID      string
	Transport    Config
	FetchTimeout time.Duration
	Logger       *zerolog.Logger
}

// Info is a point-in-time view of a session.
type Info struct {
	ID        string    `json:"id"`
	Remote    string    `json:"remote"`
	Name      string    `json:"name,omitempty"`
	State     string    `json:"state"`
	Awaiting  string    `json:"awaiting,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Server runs the menu state machine for one accepted connection.
type Server struct {
	ch      *Channel
	fetcher news.Fetcher
	sink    news.Sink
	opts    ServerOptions
	log     zerolog.Logger
	started time.Time

	mu       sync.RWMutex
	name     string
	awaiting protocol.FilterKind
}

// NewServer binds a session to conn. sink may be nil to skip persistence.
func NewServer(conn net.Conn, fetcher news.Fetcher, sink news.Sink, opts ServerOptions) *Server {
	if strings.TrimSpace(opts.GroupID) == "" {
		opts.GroupID = DefaultGroupID
	}
	ch := NewChannel(conn, opts.Transport, "server")
	base := observability.Component("session")
	if opts.Logger != nil {
		base = *opts.Logger
	}
	return &Server{
		ch:      ch,
		fetcher: fetcher,
		sink:    sink,
		opts:    opts,
		log:     observability.SessionLogger(base, opts.ID, ch.RemoteAddr()),
		started: time.Now(),
	}
}

func (s *Server) ID() string {
	return s.opts.ID
}

func (s *Server) State() State {
	return s.ch.State()
}

func (s *Server) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Awaiting returns the filter kind whose value the session is waiting for,
// or "" outside StateAwaitingFilterValue.
func (s *Server) Awaiting() protocol.FilterKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.awaiting
}

func (s *Server) setAwaiting(kind protocol.FilterKind) {
	s.mu.Lock()
	s.awaiting = kind
	s.mu.Unlock()
}

func (s *Server) Info() Info {
	return Info{
		ID:        s.opts.ID,
		Remote:    s.ch.RemoteAddr(),
		Name:      s.Name(),
		State:     s.State().String(),
		Awaiting:  string(s.Awaiting()),
		StartedAt: s.started,
	}
}

// Close drops the connection; a blocked Serve returns shortly after.
func (s *Server) Close() error {
	return s.ch.Close()
}

// Serve drives the session until the peer quits, disconnects, or ctx ends.
// It returns nil for every orderly ending and the transport or protocol error
// otherwise. The connection is closed on return.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.ch.conn.Close() })
	defer stop()
	defer s.ch.Close()

	s.log.Debug().Msg("session.Server.Serve start")
	for {
		var err error
		switch state := s.ch.State(); state {
		case StateAwaitingName:
			err = s.awaitName()
		case StateMainMenu:
			err = s.mainMenu()
		case StateHeadlinesMenu:
			err = s.submenu(ctx, protocol.TargetHeadlines)
		case StateSourcesMenu:
			err = s.submenu(ctx, protocol.TargetSources)
		case StateClosed:
			return nil
		default:
			err = fmt.Errorf("session: unexpected state %s", state)
		}
		if err != nil {
			return s.finish(ctx, err)
		}
	}
}

func (s *Server) finish(ctx context.Context, err error) error {
	s.ch.setState(StateClosed)
	switch {
	case errors.Is(err, errBye):
		s.log.Info().Str("name", s.Name()).Msg("session.Server.Serve bye")
		return nil
	case errors.Is(err, frame.ErrClosed):
		s.log.Info().Str("name", s.Name()).Msg("session.Server.Serve peer closed")
		return nil
	case ctx.Err() != nil:
		s.log.Info().Str("name", s.Name()).Msg("session.Server.Serve shutdown")
		return nil
	default:
		s.log.Warn().Err(err).Str("name", s.Name()).Msg("session.Server.Serve dropped")
		return err
	}
}

// recv reads the next message. A payload that is not valid UTF-8 is answered
// with ERROR in place and reported as ok=false.
func (s *Server) recv() (string, bool, error) {
	text, err := s.ch.Receive()
	if errors.Is(err, frame.ErrInvalidUTF8) {
		s.log.Warn().Str("state", s.ch.State().String()).Msg("session.Server.recv invalid utf-8")
		return "", false, s.ch.Send(protocol.ReplyError)
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (s *Server) awaitName() error {
	text, ok, err := s.recv()
	if !ok {
		return err
	}
	name := strings.TrimSpace(text)
	if name == "" {
		return s.ch.Send(protocol.ReplyError)
	}
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()

	s.log = s.log.With().Str("name", name).Logger()
	s.log.Info().Msgf("session.Server.awaitName name=%q", name)
	if err := s.ch.Send(protocol.ReplyConnected); err != nil {
		return err
	}
	s.ch.setState(StateMainMenu)
	return nil
}

func (s *Server) mainMenu() error {
	choice, ok, err := s.recv()
	if !ok {
		return err
	}
	switch choice {
	case protocol.MainHeadlines:
		if err := s.ch.Send(protocol.ReplyHeadlines); err != nil {
			return err
		}
		s.ch.setState(StateHeadlinesMenu)
	case protocol.MainSources:
		if err := s.ch.Send(protocol.ReplySources); err != nil {
			return err
		}
		s.ch.setState(StateSourcesMenu)
	case protocol.MainQuit:
		if err := s.ch.Send(protocol.ReplyBye); err != nil {
			return err
		}
		return errBye
	default:
		s.log.Debug().Msgf("session.Server.mainMenu unknown choice=%q", choice)
		return s.ch.Send(protocol.ReplyError)
	}
	return nil
}

func (s *Server) submenu(ctx context.Context, target protocol.Target) error {
	menu := s.ch.State()
	choice, ok, err := s.recv()
	if !ok {
		return err
	}
	if choice == protocol.SubBack {
		s.ch.setState(StateMainMenu)
		return nil
	}
	kind, err := protocol.OptionFilter(target, choice)
	if err != nil {
		s.log.Debug().Msgf("session.Server.submenu target=%s unknown choice=%q", target, choice)
		return s.ch.Send(protocol.ReplyError)
	}

	q := news.Query{Target: target, Filter: kind}
	if protocol.NeedsValue(kind) {
		if err := s.ch.Send(protocol.ReplyReady); err != nil {
			return err
		}
		s.setAwaiting(kind)
		s.ch.setState(StateAwaitingFilterValue)
		value, ok, err := s.recv()
		s.setAwaiting("")
		if !ok {
			s.ch.setState(menu)
			return err
		}
		q.Value = value
	}

	s.ch.setState(StateAwaitingResponse)
	payload := s.answer(ctx, q)
	if err := s.ch.Send(string(payload)); err != nil {
		return err
	}
	s.ch.setState(menu)
	return nil
}

// answer resolves q into the payload sent back. Every failure becomes an
// in-band error payload; only successful upstream results are persisted.
func (s *Server) answer(ctx context.Context, q news.Query) []byte {
	if err := q.Validate(); err != nil {
		s.log.Debug().Err(err).Msgf("session.Server.answer rejected query=%s", q)
		return news.ErrorPayload(err.Error())
	}

	start := time.Now()
	payload, err := s.safeFetch(ctx, q)
	elapsed := time.Since(start)
	if err != nil {
		observability.RecordFetch(string(q.Target), string(q.Filter), "error", elapsed)
		s.log.Warn().Err(err).Msgf("session.Server.answer fetch failed query=%s", q)
		return news.ErrorPayload(err.Error())
	}
	if err := s.frameable(payload); err != nil {
		observability.RecordFetch(string(q.Target), string(q.Filter), "malformed", elapsed)
		s.log.Warn().Err(err).Msgf("session.Server.answer unsendable payload query=%s", q)
		return news.ErrorPayload(err.Error())
	}

	status, err := news.PayloadStatus(payload)
	if err != nil {
		observability.RecordFetch(string(q.Target), string(q.Filter), "malformed", elapsed)
		s.log.Warn().Err(err).Msgf("session.Server.answer bad payload query=%s", q)
		return news.ErrorPayload(err.Error())
	}
	observability.RecordFetch(string(q.Target), string(q.Filter), status, elapsed)
	if status != news.StatusOK {
		return payload
	}

	s.persist(q, payload)
	s.log.Info().Int("bytes", len(payload)).Msgf("session.Server.answer query=%s", q)
	return payload
}

// frameable reports whether payload can go out as a single message.
func (s *Server) frameable(payload []byte) error {
	if limit := uint64(s.ch.cfg.Limits.MaxPayloadBytes); uint64(len(payload)) > limit {
		return fmt.Errorf("%w: result of %d bytes exceeds message limit %d", news.ErrUpstream, len(payload), limit)
	}
	if !utf8.Valid(payload) {
		return fmt.Errorf("%w: result is not valid utf-8", news.ErrUpstream)
	}
	return nil
}

func (s *Server) safeFetch(ctx context.Context, q news.Query) (payload []byte, err error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher configured", news.ErrUpstream)
	}
	if s.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = fmt.Errorf("%w: fetcher panic: %v", news.ErrUpstream, r)
		}
	}()
	return s.fetcher.Fetch(ctx, q)
}

func (s *Server) persist(q news.Query, payload []byte) {
	if s.sink == nil {
		return
	}
	key := ResultKey(s.Name(), q, s.opts.GroupID)
	if err := s.sink.Persist(payload, key); err != nil {
		s.log.Warn().Err(err).Msgf("session.Server.persist key=%q", key)
	}
}

// ResultKey names a persisted result: <client>_<option>_<group>.json.
func ResultKey(name string, q news.Query, group string) string {
	return fmt.Sprintf("%s_%s_%s.json", name, q.Option(), group)
}
