// Package agents implements the specialist language-model agents of the
// widget-builder pipeline. Each agent owns its system prompt, temperature,
// and output shape; orchestration across agents lives in
// internal/orchestration.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/bizmatters/agent-builder/widget-studio/internal/llm"
)

// Agent names, as reported in progress events.
const (
	NameRequestAnalyzer = "request_analyzer"
	NameSchemaAnalyzer  = "schema_analyzer"
	NameQueryBuilder    = "query_builder"
	NameFilterBuilder   = "filter_builder"
	NameChartBuilder    = "chart_builder"
	NameSummarizer      = "summarizer"
)

// ErrorKind classifies an agent failure.
type ErrorKind string

const (
	ErrMalformedOutput ErrorKind = "malformed_output"
	ErrTimeout         ErrorKind = "timeout"
	ErrRateLimited     ErrorKind = "rate_limited"
)

// Error is a fatal agent failure. Any agent error aborts the whole pipeline
// invocation; there are no partial results.
type Error struct {
	Agent string
	Kind  ErrorKind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent %s failed (%s): %v", e.Agent, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// callJSON sends messages through the model client and unmarshals the JSON
// completion into out. A single transient failure (transport error or
// undecodable output) is retried once; a second failure is fatal.
func callJSON(ctx context.Context, client llm.Client, agent string, messages []llm.Message, temperature float64, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			log.Printf("[%s] retrying after error: %v", agent, lastErr)
		}
		raw, err := client.CompleteJSON(ctx, messages, temperature)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if err := json.Unmarshal(raw, out); err != nil {
			lastErr = &llm.Error{Kind: llm.ErrInvalidResponse, Err: fmt.Errorf("decode %s output: %w", agent, err)}
			continue
		}
		return nil
	}
	return classifyAgentError(agent, lastErr)
}

func classifyAgentError(agent string, err error) error {
	kind := ErrMalformedOutput
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		switch lerr.Kind {
		case llm.ErrTimeout:
			kind = ErrTimeout
		case llm.ErrRateLimited:
			kind = ErrRateLimited
		}
	}
	return &Error{Agent: agent, Kind: kind, Err: err}
}
