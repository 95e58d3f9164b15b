// Package server accepts newsd connections and runs one session goroutine per
// client, plus the optional admin HTTP endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/newswire/internal/news"
	"github.com/danmuck/newswire/internal/observability"
	"github.com/danmuck/newswire/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ServiceConfig is the newsd runtime configuration.
type ServiceConfig struct {
	ListenAddr      string
	AdminListenAddr string
	// AdminToken guards /sessions with a bearer token when set.
	AdminToken string
	GroupID    string
	// MaxSessions caps concurrent sessions; 0 means unlimited.
	MaxSessions  int
	FetchTimeout time.Duration
	Session      session.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr: "127.0.0.1:5000",
		GroupID:    session.DefaultGroupID,
		Session:    session.DefaultConfig(),
	}
}

// Service owns the listener, tracked connections and live sessions.
type Service struct {
	cfg     ServiceConfig
	fetcher news.Fetcher
	sink    news.Sink
	log     zerolog.Logger
	started time.Time

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	sessionsMu sync.RWMutex
	sessions   map[string]*session.Server

	wg     sync.WaitGroup
	active atomic.Int64
	ready  atomic.Bool
}

// NewService builds a service around one shared fetcher. sink may be nil.
func NewService(cfg ServiceConfig, fetcher news.Fetcher, sink news.Sink) *Service {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = DefaultServiceConfig().ListenAddr
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		cfg.GroupID = session.DefaultGroupID
	}
	cfg.Session = cfg.Session.WithDefaults()
	return &Service{
		cfg:      cfg,
		fetcher:  fetcher,
		sink:     sink,
		log:      observability.Component("server"),
		started:  time.Now(),
		conns:    make(map[net.Conn]struct{}),
		sessions: make(map[string]*session.Server),
	}
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext binds the configured addresses and serves until ctx ends or a
// listener fails.
func (s *Service) RunContext(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.log.Info().Msgf("server.Service.Run listening addr=%q", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(gctx, ln)
	})
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		g.Go(func() error {
			return s.serveAdmin(gctx, addr)
		})
	}
	err = g.Wait()
	s.log.Info().Msg("server.Service.Run stopped")
	return err
}

// Serve accepts connections on ln until ctx ends. On return every tracked
// connection has been closed and every session goroutine has exited.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() {
		s.closeAllConns()
		_ = ln.Close()
	})
	defer stop()

	s.ready.Store(true)
	defer s.ready.Store(false)
	defer s.wg.Wait()
	defer s.closeAllConns()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !s.reserve() {
			s.log.Warn().Msgf("server.Service.Serve rejected remote=%q max_sessions=%d", conn.RemoteAddr().String(), s.cfg.MaxSessions)
			observability.SessionRejected()
			_ = conn.Close()
			continue
		}
		s.trackConn(conn)
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// ActiveSessions reports sessions currently being served.
func (s *Service) ActiveSessions() int64 {
	return s.active.Load()
}

// Sessions returns a snapshot of live sessions ordered by start time.
func (s *Service) Sessions() []session.Info {
	s.sessionsMu.RLock()
	out := make([]session.Info, 0, len(s.sessions))
	for _, srv := range s.sessions {
		out = append(out, srv.Info())
	}
	s.sessionsMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (s *Service) reserve() bool {
	n := s.active.Add(1)
	if s.cfg.MaxSessions > 0 && n > int64(s.cfg.MaxSessions) {
		s.active.Add(-1)
		return false
	}
	return true
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrackConn(conn)
	defer conn.Close()

	id := uuid.NewString()
	remote := conn.RemoteAddr().String()
	srv := session.NewServer(conn, s.fetcher, s.sink, session.ServerOptions{
		ID:           id,
		GroupID:      s.cfg.GroupID,
		Transport:    s.cfg.Session,
		FetchTimeout: s.cfg.FetchTimeout,
	})
	s.addSession(id, srv)
	defer s.removeSession(id)

	observability.SessionStarted()
	s.log.Info().Str("session_id", id).Msgf("server.session connected remote=%q active=%d", remote, s.active.Load())

	outcome := "closed"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			s.log.Error().
				Str("session_id", id).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msgf("server.session recovered remote=%q", remote)
		}
		remaining := s.active.Add(-1)
		observability.SessionEnded(outcome)
		s.log.Info().Str("session_id", id).Msgf("server.session disconnected remote=%q outcome=%s active=%d", remote, outcome, remaining)
	}()

	if err := srv.Serve(ctx); err != nil {
		outcome = "error"
	}
}

func (s *Service) addSession(id string, srv *session.Server) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[id] = srv
}

func (s *Service) removeSession(id string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, id)
}

func (s *Service) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

// closeAllConns force-closes in-flight sessions during shutdown.
func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
