/*
Package ai wraps the AI completion collaborator behind a small interface.

The real-time layer only needs blocking completions: the caller assembles a
bounded message history, the client returns the generated text or an error.
Timeouts are enforced here so handlers treat a slow model identically to a
failed one.
*/
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Message roles accepted by Complete.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of completion context.
type Message struct {
	Role    string
	Content string
}

// Options control a single completion call.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client is the completion contract consumed by the chat and guest handlers.
type Client interface {
	// Complete generates a reply for the given message history.
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// OpenAIClient implements Client against the OpenAI chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	timeout time.Duration
}

// NewOpenAIClient builds a client with the given API key and per-call timeout.
func NewOpenAIClient(apiKey string, timeout time.Duration) *OpenAIClient {
	return &OpenAIClient{
		client:  openai.NewClient(apiKey),
		timeout: timeout,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    chatMessages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
