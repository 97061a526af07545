package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIClient implements Client against the OpenAI chat completions API in
// JSON mode. A circuit breaker guards the upstream so a dead API fails fast
// instead of stalling every pipeline invocation.
type OpenAIClient struct {
	client  openai.Client
	model   string
	tracer  trace.Tracer
	breaker *gobreaker.CircuitBreaker
}

// NewOpenAIClient creates an OpenAI-backed client.
func NewOpenAIClient(baseURL, apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	settings := gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	}

	return &OpenAIClient{
		client:  client,
		model:   model,
		tracer:  otel.Tracer("llm-client"),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}, nil
}

// CompleteJSON sends messages to the chat completions API with JSON response
// format enforced and returns the raw completion document.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, messages []Message, temperature float64) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "llm.complete_json")
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.message_count", len(messages)),
	)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.completeInternal(ctx, messages, temperature)
	})

	if err != nil {
		span.RecordError(err)
		return nil, classify(err)
	}

	return result.(json.RawMessage), nil
}

func (c *OpenAIClient) completeInternal(ctx context.Context, messages []Message, temperature float64) (json.RawMessage, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    convertMessages(messages),
		Temperature: openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, &Error{Kind: ErrInvalidResponse, Err: fmt.Errorf("completion has no choices")}
	}

	content := resp.Choices[0].Message.Content
	if !json.Valid([]byte(content)) {
		return nil, &Error{Kind: ErrInvalidResponse, Err: fmt.Errorf("completion is not valid JSON: %.200s", content)}
	}

	return json.RawMessage(content), nil
}

// convertMessages maps role-tagged messages to the SDK's parameter union.
func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case "system":
			result[i] = openai.SystemMessage(msg.Content)
		case "assistant":
			result[i] = openai.AssistantMessage(msg.Content)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}
	return result
}

// classify maps transport failures onto the Error taxonomy. Errors that are
// already classified pass through unchanged.
func classify(err error) error {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 {
			return &Error{Kind: ErrRateLimited, Err: err}
		}
		return &Error{Kind: ErrInvalidResponse, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Err: err}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Kind: ErrRateLimited, Err: err}
	}

	return &Error{Kind: ErrTimeout, Err: err}
}
