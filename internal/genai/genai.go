// Package genai provides the chat completion gateway used by TerraPipe.
//
// The gateway talks to an OpenAI-compatible endpoint (DeepSeek by default)
// through the openai-go SDK. It is stateless: callers pass the full turn
// history on every call.
package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/BTreeMap/TerraPipe/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default gateway configuration
const (
	DefaultBaseURL     = "https://api.deepseek.com/v1"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
	DefaultTimeout     = 60 * time.Second
)

// ErrMissingAPIKey is returned before any network call when no API key is configured.
var ErrMissingAPIKey = errors.New("completion API key is not configured")

// TransportError reports a failed exchange with the completion endpoint.
// StatusCode is zero when no HTTP response was received.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("completion request failed: %v", e.Err)
	}
	return fmt.Sprintf("completion request failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a 2xx response that carries no usable reply.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed completion response: %s: %v", e.Reason, e.Err)
	}
	return "malformed completion response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Gateway turns a chat history plus a new user message into the assistant reply.
type Gateway interface {
	Converse(ctx context.Context, prior []models.Turn, newUserMessage string) (string, error)
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the completion client.
type Opts struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	MaxTokens    int64
	SystemPrompt string
	HTTPClient   *http.Client
}

// Option defines a configuration option for the completion client.
type Option func(*Opts)

// WithAPIKey sets the bearer credential.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithSystemPrompt replaces the default system instruction.
func WithSystemPrompt(p string) Option {
	return func(o *Opts) { o.SystemPrompt = p }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client implements Gateway on top of the openai-go SDK.
type Client struct {
	chat         chatService
	apiKey       string
	model        string
	temperature  float64
	maxTokens    int64
	systemPrompt string
}

// NewClient builds a completion client. A missing API key is not an error
// here; Converse reports ErrMissingAPIKey so the service can still start.
func NewClient(opts ...Option) *Client {
	cfg := Opts{
		BaseURL:      DefaultBaseURL,
		Model:        DefaultModel,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
		SystemPrompt: LegalSystemPrompt,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	slog.Debug("genai.NewClient: configured", "base_url", cfg.BaseURL, "model", cfg.Model, "api_key_set", cfg.APIKey != "")

	cli := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(cfg.HTTPClient),
		option.WithMaxRetries(0),
	)
	return &Client{
		chat:         &cli.Chat.Completions,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		systemPrompt: cfg.SystemPrompt,
	}
}

// Converse sends the history plus the new user message and returns the reply text.
// The system instruction is prepended unless prior already starts with a system turn.
// prior is never modified.
func (c *Client) Converse(ctx context.Context, prior []models.Turn, newUserMessage string) (string, error) {
	if c.apiKey == "" {
		slog.Error("Client.Converse: API key missing")
		return "", ErrMissingAPIKey
	}

	messages := c.buildMessages(prior, newUserMessage)
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	}

	slog.Debug("Client.Converse: sending request", "model", c.model, "messages", len(messages))
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		classified := classifyError(err)
		slog.Error("Client.Converse: request failed", "error", classified)
		return "", classified
	}
	if resp == nil || len(resp.Choices) == 0 {
		slog.Warn("Client.Converse: response has no choices")
		return "", &MalformedResponseError{Reason: "no choices returned"}
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		slog.Warn("Client.Converse: first choice has empty content")
		return "", &MalformedResponseError{Reason: "empty message content"}
	}
	slog.Debug("Client.Converse: reply received", "length", len(content))
	return content, nil
}

func (c *Client) buildMessages(prior []models.Turn, newUserMessage string) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(prior)+2)
	if len(prior) == 0 || prior[0].Role != models.RoleSystem {
		messages = append(messages, openai.SystemMessage(c.systemPrompt))
	}
	for _, turn := range prior {
		switch turn.Role {
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	return append(messages, openai.UserMessage(newUserMessage))
}

// maxErrorBody caps how much of a non-JSON error body is kept.
const maxErrorBody = 4096

// errorBody returns the raw error payload. Proxies in front of the vendor
// often answer with HTML or plain text, which the SDK cannot decode, so the
// body it buffered on the response is read instead.
func errorBody(apiErr *openai.Error) string {
	if raw := apiErr.RawJSON(); raw != "" {
		return raw
	}
	if apiErr.Response != nil && apiErr.Response.Body != nil {
		data, err := io.ReadAll(io.LimitReader(apiErr.Response.Body, maxErrorBody))
		if err == nil && len(data) > 0 {
			return string(data)
		}
	}
	return apiErr.Error()
}

// classifyError maps SDK errors onto the gateway error taxonomy.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.StatusCode, Body: errorBody(apiErr), Err: err}
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Err: err}
	}
	return &MalformedResponseError{Reason: "undecodable body", Err: err}
}
