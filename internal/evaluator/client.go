// Package evaluator grades free-text answers and generates comprehension questions with OpenAI chat models
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	// ErrNotConfigured is returned when no API key was provided
	ErrNotConfigured = errors.New("openai api key not configured")
	// ErrMalformedResponse is returned when the model reply cannot be parsed into the expected shape
	ErrMalformedResponse = errors.New("malformed model response")
)

const systemPrompt = "You are an expert reading comprehension teacher for school students. Always answer with JSON only."

// ChatCompleter is the part of the OpenAI client used here
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client talks to the chat completion API, retrying once on a fallback model when rate limited
type Client struct {
	chat          ChatCompleter
	model         string
	fallbackModel string
	logger        *zap.Logger
}

// NewClient creates a client backed by the OpenAI API
func NewClient(apiKey, model, fallbackModel string, timeout time.Duration, logger *zap.Logger) *Client {
	var chat ChatCompleter
	if apiKey != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.HTTPClient = &http.Client{Timeout: timeout}
		chat = openai.NewClientWithConfig(cfg)
	}
	return NewClientWithChat(chat, model, fallbackModel, logger)
}

// NewClientWithChat creates a client over an existing chat completer
func NewClientWithChat(chat ChatCompleter, model, fallbackModel string, logger *zap.Logger) *Client {
	return &Client{
		chat:          chat,
		model:         model,
		fallbackModel: fallbackModel,
		logger:        logger,
	}
}

// complete sends the prompt and returns the text of the first choice
func (c *Client) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	if c.chat == nil {
		return "", ErrNotConfigured
	}

	reply, err := c.completeWith(ctx, c.model, prompt, temperature)
	if err != nil && isRateLimited(err) && c.fallbackModel != "" && c.fallbackModel != c.model {
		c.logger.Warn("rate limited, trying fallback model",
			zap.String("model", c.model),
			zap.String("fallback_model", c.fallbackModel),
		)
		reply, err = c.completeWith(ctx, c.fallbackModel, prompt, temperature)
		if err != nil {
			return "", fmt.Errorf("fallback model also failed: %w", err)
		}
	}
	if err != nil {
		return "", err
	}

	return reply, nil
}

func (c *Client) completeWith(ctx context.Context, model, prompt string, temperature float32) (string, error) {
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

// isRateLimited reports whether the API rejected the call with HTTP 429
func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
