package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/newswire/internal/auth"
	"github.com/danmuck/newswire/internal/observability"
	"github.com/gin-gonic/gin"
)

const (
	// ServiceName tags admin logs, metrics and the health body.
	ServiceName          = "newsd"
	adminShutdownTimeout = 5 * time.Second
)

// AdminHandler serves health, readiness, metrics and the live session list.
func (s *Service) AdminHandler() http.Handler {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.log, ServiceName))
	r.Use(observability.RequestMetricsMiddleware(ServiceName))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": ServiceName,
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		ready := s.ready.Load()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":  ready,
			"active": s.ActiveSessions(),
		})
	})
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	guard := []gin.HandlerFunc{}
	if token := strings.TrimSpace(s.cfg.AdminToken); token != "" {
		guard = append(guard, auth.RequireBearer(auth.StaticToken{Token: token}))
	}
	r.GET("/sessions", append(guard, func(c *gin.Context) {
		sessions := s.Sessions()
		c.JSON(http.StatusOK, gin.H{
			"count":    len(sessions),
			"sessions": sessions,
		})
	})...)
	return r
}

func (s *Service) serveAdmin(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.AdminHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	s.log.Info().Msgf("server.Service.serveAdmin listening addr=%q", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
