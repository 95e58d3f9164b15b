package news

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceRef is the short source reference embedded in an article.
type SourceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Article struct {
	Source      SourceRef `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage"`
	PublishedAt string    `json:"publishedAt"`
	Content     string    `json:"content"`
}

// Published parses PublishedAt as RFC 3339.
func (a Article) Published() (time.Time, bool) {
	if a.PublishedAt == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, a.PublishedAt)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

type Source struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	Country     string `json:"country"`
}

// Result is the decoded view of a payload used by the terminal client.
type Result struct {
	Status       string    `json:"status"`
	Code         string    `json:"code,omitempty"`
	Message      string    `json:"message,omitempty"`
	TotalResults int       `json:"totalResults,omitempty"`
	Articles     []Article `json:"articles,omitempty"`
	Sources      []Source  `json:"sources,omitempty"`
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

func DecodeResult(raw []byte) (Result, error) {
	var out Result
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if out.Status == "" {
		return Result{}, fmt.Errorf("%w: missing status", ErrMalformedPayload)
	}
	return out, nil
}
