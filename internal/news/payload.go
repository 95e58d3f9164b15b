package news

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	ErrUpstream         = errors.New("news: upstream request failed")
	ErrNoAPIKey         = errors.New("news: api key not configured")
	ErrMalformedPayload = errors.New("news: malformed payload")
)

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorPayload builds the in-band failure payload sent in place of a result.
func ErrorPayload(message string) json.RawMessage {
	raw, err := json.Marshal(errorBody{Status: StatusError, Message: message})
	if err != nil {
		return json.RawMessage(`{"status":"error","message":"internal error"}`)
	}
	return raw
}

// PayloadStatus returns the status field of a JSON object payload.
func PayloadStatus(raw []byte) (string, error) {
	var head struct {
		Status *string `json:"status"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if head.Status == nil {
		return "", fmt.Errorf("%w: missing status", ErrMalformedPayload)
	}
	return *head.Status, nil
}
