package news

import (
	"fmt"

	"github.com/danmuck/newswire/internal/protocol"
)

// Query is the descriptor built from one submenu exchange.
type Query struct {
	Target protocol.Target
	Filter protocol.FilterKind
	Value  string
}

func Headlines(filter protocol.FilterKind, value string) Query {
	return Query{Target: protocol.TargetHeadlines, Filter: filter, Value: value}
}

func Sources(filter protocol.FilterKind, value string) Query {
	return Query{Target: protocol.TargetSources, Filter: filter, Value: value}
}

func (q Query) Validate() error {
	switch q.Target {
	case protocol.TargetHeadlines, protocol.TargetSources:
	default:
		return fmt.Errorf("%w: unknown target %q", protocol.ErrInvalidFilter, q.Target)
	}
	if q.Target == protocol.TargetSources && q.Filter == protocol.FilterKeyword {
		return fmt.Errorf("%w: sources cannot be searched by keyword", protocol.ErrInvalidFilter)
	}
	if q.Target == protocol.TargetHeadlines && q.Filter == protocol.FilterLanguage {
		return fmt.Errorf("%w: headlines cannot be filtered by language", protocol.ErrInvalidFilter)
	}
	return protocol.ValidateFilter(q.Filter, q.Value)
}

// Option names the query for persisted file keys, e.g. "sources_country".
func (q Query) Option() string {
	if q.Filter == protocol.FilterAll {
		return "all_" + string(q.Target)
	}
	if q.Target == protocol.TargetSources {
		return "sources_" + string(q.Filter)
	}
	return string(q.Filter)
}

func (q Query) String() string {
	if q.Filter == protocol.FilterAll {
		return fmt.Sprintf("%s/all", q.Target)
	}
	return fmt.Sprintf("%s/%s=%q", q.Target, q.Filter, q.Value)
}
