// Package newsapi fetches headlines and sources from the NewsAPI v2 HTTP API.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/newswire/internal/news"
	"github.com/danmuck/newswire/internal/protocol"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	headlinesPath = "/top-headlines"
	sourcesPath   = "/top-headlines/sources"
)

type Config struct {
	BaseURL           string
	APIKey            string
	PageSize          int
	DefaultCountry    string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://newsapi.org/v2",
		PageSize:          15,
		DefaultCountry:    "us",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
	}
}

// Client is a news.Fetcher backed by NewsAPI. It is safe for concurrent use;
// all sessions share one limiter so the upstream quota is spent fairly.
type Client struct {
	cfg     Config
	http    *resty.Client
	limiter *rate.Limiter
}

var _ news.Fetcher = (*Client)(nil)

func New(cfg Config) *Client {
	d := DefaultConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = d.BaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = d.PageSize
	}
	if strings.TrimSpace(cfg.DefaultCountry) == "" {
		cfg.DefaultCountry = d.DefaultCountry
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		cfg:     cfg,
		http:    cli,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Fetch runs q against the matching NewsAPI endpoint and returns the body
// untouched.
func (c *Client) Fetch(ctx context.Context, q news.Query) (json.RawMessage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, news.ErrNoAPIKey
	}
	path, params := c.route(q)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", news.ErrUpstream, err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.cfg.APIKey).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", news.ErrUpstream, path, err)
	}
	body := resp.Body()
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s", news.ErrUpstream, upstreamMessage(resp.StatusCode(), body))
	}
	if _, err := news.PayloadStatus(body); err != nil {
		return nil, fmt.Errorf("%w: %w", news.ErrUpstream, err)
	}
	return json.RawMessage(body), nil
}

// route maps a query onto endpoint and query string. Category headlines and
// the unfiltered headline listing are scoped to the default country, which
// NewsAPI requires for /top-headlines without a keyword.
func (c *Client) route(q news.Query) (string, map[string]string) {
	params := make(map[string]string)
	if q.Target == protocol.TargetSources {
		switch q.Filter {
		case protocol.FilterCategory:
			params["category"] = q.Value
		case protocol.FilterCountry:
			params["country"] = q.Value
		case protocol.FilterLanguage:
			params["language"] = q.Value
		}
		return sourcesPath, params
	}

	params["pageSize"] = strconv.Itoa(c.cfg.PageSize)
	switch q.Filter {
	case protocol.FilterKeyword:
		params["q"] = q.Value
	case protocol.FilterCategory:
		params["category"] = q.Value
		params["country"] = c.cfg.DefaultCountry
	case protocol.FilterCountry:
		params["country"] = q.Value
	case protocol.FilterAll:
		params["country"] = c.cfg.DefaultCountry
	}
	return headlinesPath, params
}

func upstreamMessage(status int, body []byte) string {
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != "" {
			return fmt.Sprintf("status=%d code=%s: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status=%d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status=%d", status)
}
