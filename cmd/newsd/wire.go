package main

import (
	"github.com/danmuck/newswire/internal/config"
	"github.com/danmuck/newswire/internal/news"
	"github.com/danmuck/newswire/internal/news/newsapi"
	"github.com/danmuck/newswire/internal/server"
	"github.com/danmuck/newswire/internal/store"
)

func serviceConfig(cfg config.ServerConfig) server.ServiceConfig {
	sc := server.DefaultServiceConfig()
	sc.ListenAddr = cfg.Addr
	sc.AdminListenAddr = cfg.AdminAddr
	sc.AdminToken = cfg.AdminToken
	sc.GroupID = cfg.GroupID
	sc.MaxSessions = cfg.MaxSessions
	sc.FetchTimeout = cfg.FetchTimeout
	sc.Session.ReadTimeout = cfg.ReadTimeout
	sc.Session.WriteTimeout = cfg.WriteTimeout
	sc.Session.Limits.MaxPayloadBytes = cfg.MaxPayloadBytes
	return sc
}

func fetcherFor(cfg config.ServerConfig) *newsapi.Client {
	return newsapi.New(newsapi.Config{
		BaseURL:           cfg.NewsAPI.BaseURL,
		APIKey:            cfg.NewsAPI.APIKey,
		PageSize:          cfg.NewsAPI.PageSize,
		Timeout:           cfg.NewsAPI.Timeout,
		RequestsPerSecond: cfg.NewsAPI.RequestsPerSecond,
		Burst:             max(1, int(cfg.NewsAPI.RequestsPerSecond)),
	})
}

// sinkFor returns nil when persistence is disabled.
func sinkFor(cfg config.ServerConfig) news.Sink {
	if !cfg.PersistEnabled {
		return nil
	}
	return store.New(cfg.OutputDir)
}

func buildService(cfg config.ServerConfig) *server.Service {
	return server.NewService(serviceConfig(cfg), fetcherFor(cfg), sinkFor(cfg))
}
