// Package openai adapts an OpenAI-compatible chat completion endpoint to the
// planner client boundary. The model is pinned to a JSON-object response and
// a system prompt enumerating the recognized step kinds; rate-limit and
// server errors are retried with capped exponential backoff.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gopenai "github.com/sashabaranov/go-openai"
	"github.com/viant/toolbox"

	"github.com/viant/opsly/service/planner"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultMaxRetries = 3
	defaultRetryDelay = 3 * time.Second
)

const systemPrompt = `You plan one step at a time for operating a remote Linux host on the user's behalf.
Respond with a single JSON object and nothing else:
{"kind": "...", "payload": {...}, "done": false, "reason": ""}
Recognized kinds:
- "ShellCommand": payload {"command": string, "timeoutMs": int (optional)} runs one shell command.
- "CloneRepository": payload {"url": string, "destination": string (optional)} clones a git repository.
- "AskUser": payload {"question": string} asks the user and suspends until they reply.
- "Terminate": payload {"reason": string} stops working on the intent.
Set "done": true with a "reason" once the intent is satisfied.
Propose exactly one next step for the request context. Prefer small verifiable commands.
Never propose a command that already failed twice.`

// Config holds the endpoint settings.
type Config struct {
	APIKey       string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`
	BaseURL      string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	TimeoutMs    int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	MaxRetries   int    `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	RetryDelayMs int    `json:"retryDelayMs,omitempty" yaml:"retryDelayMs,omitempty"`
}

// Client asks a chat completion endpoint for the next step.
type Client struct {
	client     *gopenai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
}

// New creates a planner client for an OpenAI-compatible endpoint.
func New(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	clientConfig := gopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.TimeoutMs > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: time.Duration(config.TimeoutMs) * time.Millisecond}
	}

	model := config.Model
	if model == "" {
		model = defaultModel
	}
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := defaultRetryDelay
	if config.RetryDelayMs > 0 {
		retryDelay = time.Duration(config.RetryDelayMs) * time.Millisecond
	}
	return &Client{
		client:     gopenai.NewClientWithConfig(clientConfig),
		model:      model,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// ProposeStep renders the request as JSON, asks the model and decodes the
// returned proposal.
func (c *Client) ProposeStep(ctx context.Context, request *planner.Request) (*planner.Proposal, error) {
	content, err := renderRequest(request)
	if err != nil {
		return nil, fmt.Errorf("failed to render planner request: %w", err)
	}

	chatRequest := gopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: gopenai.ChatMessageRoleUser, Content: content},
		},
		ResponseFormat: &gopenai.ChatCompletionResponseFormat{
			Type: gopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
		response, err := c.client.CreateChatCompletion(ctx, chatRequest)
		if err != nil {
			lastErr = err
			if !retryable(err) {
				return nil, fmt.Errorf("chat completion failed: %w", err)
			}
			continue
		}
		if len(response.Choices) == 0 {
			return nil, fmt.Errorf("chat completion returned no choices")
		}
		return decodeProposal(response.Choices[0].Message.Content)
	}
	return nil, fmt.Errorf("chat completion failed after %d retries: %w", c.maxRetries, lastErr)
}

// backoff doubles the delay per attempt, capped at five times the base so
// the default 3s base tops out at 15s.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.retryDelay << (attempt - 1)
	if limit := 5 * c.retryDelay; delay > limit {
		delay = limit
	}
	return delay
}

// retryable reports whether the endpoint error is worth another attempt.
func retryable(err error) bool {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	return false
}

// renderRequest converts the request into a compact JSON object with empty
// keys dropped.
func renderRequest(request *planner.Request) (string, error) {
	aMap := map[string]interface{}{}
	if err := toolbox.DefaultConverter.AssignConverted(&aMap, request); err != nil {
		return "", err
	}
	aMap = toolbox.DeleteEmptyKeys(aMap)
	data, err := json.Marshal(aMap)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeProposal parses the model output, tolerating markdown fences and
// surrounding prose.
func decodeProposal(content string) (*planner.Proposal, error) {
	text := extractJSON(content)
	proposal := &planner.Proposal{}
	if err := json.Unmarshal([]byte(text), proposal); err != nil {
		return nil, fmt.Errorf("failed to decode proposal %q: %w", content, err)
	}
	return proposal, nil
}

// extractJSON strips fences and prose around the outermost JSON object.
func extractJSON(content string) string {
	text := strings.TrimSpace(content)
	if idx := strings.Index(text, "```"); idx != -1 {
		text = strings.TrimPrefix(text[idx+3:], "json")
		if end := strings.Index(text, "```"); end != -1 {
			text = text[:end]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

var _ planner.Client = (*Client)(nil)
