package news

import (
	"context"
	"encoding/json"
)

// Fetcher resolves one query against the upstream provider.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) (json.RawMessage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, q Query) (json.RawMessage, error)

func (f FetcherFunc) Fetch(ctx context.Context, q Query) (json.RawMessage, error) {
	return f(ctx, q)
}

// Sink stores a fetched payload under key. Failures never reach the peer.
type Sink interface {
	Persist(payload json.RawMessage, key string) error
}
