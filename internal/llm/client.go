// Package llm defines the language-model call boundary the agent pipeline
// depends on, plus the OpenAI-backed implementation used in production.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message is one role-tagged turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrorKind classifies a failed model call.
type ErrorKind string

const (
	ErrTimeout         ErrorKind = "timeout"
	ErrRateLimited     ErrorKind = "rate_limited"
	ErrInvalidResponse ErrorKind = "invalid_response"
)

// Error is a classified language-model call failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm call failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client is the language-model call boundary. Implementations own retry
// policy at the transport level, authentication, and model selection; the
// caller only supplies messages and receives a structured JSON completion.
type Client interface {
	// CompleteJSON sends messages and returns the model's completion, which
	// is guaranteed to be a syntactically valid JSON document. A non-JSON
	// completion surfaces as *Error with Kind ErrInvalidResponse.
	CompleteJSON(ctx context.Context, messages []Message, temperature float64) (json.RawMessage, error)
}
