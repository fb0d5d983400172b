// Package openai talks to OpenAI-compatible Chat Completions endpoints.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"wisegpt/internal/domain"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultTimeout     = 60 * time.Second
	defaultTemperature = 0.6
	defaultTopP        = 0.9
	defaultMaxTokens   = 1000

	maxErrorBody    = 4 << 10
	maxResponseBody = 1 << 20
)

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	TopP        float64              `json:"top_p"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	N           int                  `json:"n"`
}

type chatChoice struct {
	Index        int                `json:"index"`
	Message      domain.ChatMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

type chatResponse struct {
	ID      string             `json:"id"`
	Choices []chatChoice       `json:"choices"`
	Usage   *domain.TokenUsage `json:"usage"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	URL        string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Type != "" {
		msg = e.Type + ": " + msg
	}
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, msg)
}

func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// newAPIError reads the provider error body. OpenAI wraps errors in an
// {"error": {...}} envelope; anything else is kept verbatim.
func newAPIError(res *http.Response, url string) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: res.StatusCode, URL: url, Message: strings.TrimSpace(string(raw))}
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		apiErr.Type = env.Error.Type
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// keyCache holds the API key once a fetch succeeded. Failed fetches are not
// remembered, so the next call tries again.
type keyCache struct {
	getter Getter
	name   string

	mu  sync.Mutex
	key string
}

func (k *keyCache) get(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.key != "" {
		return k.key, nil
	}
	key, err := fetchAPIKeyFromParamStore(ctx, k.getter, k.name)
	if err != nil {
		return "", err
	}
	k.key = key
	return key, nil
}

// Client is a focused OpenAI-compatible client for chat completions.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	key         *keyCache
	temperature float64
	topP        float64
	maxTokens   int
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithSampling overrides the temperature and nucleus sampling of every request.
func WithSampling(temperature, topP float64) Option {
	return func(c *Client) {
		c.temperature = temperature
		c.topP = topP
	}
}

// WithMaxTokens caps the completion length. Zero leaves it to the provider.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// NewClient creates a Client reading its API key from the
// <paramPrefix>/open-ai-token parameter on first use.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		key:         &keyCache{getter: ps, name: paramPrefix + "/open-ai-token"},
		temperature: defaultTemperature,
		topP:        defaultTopP,
		maxTokens:   defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxTokens < 0 {
		return nil, errors.New("openai: max tokens must not be negative")
	}
	return c, nil
}

func (c *Client) tokenParameterName() string {
	return c.key.name
}

func endpoint(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + path
}

// Chat requests a single chat completion and returns its text together with
// the token usage the provider reported for the whole request.
func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (domain.ChatCompletion, error) {
	if model == "" {
		return domain.ChatCompletion{}, errors.New("openai: model must not be empty")
	}

	var res chatResponse
	err := c.post(ctx, "/chat/completions", chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
		N:           1,
	}, &res)
	if err != nil {
		return domain.ChatCompletion{}, err
	}
	if len(res.Choices) == 0 {
		return domain.ChatCompletion{}, errors.New("openai: no choices in response")
	}
	if res.Usage == nil {
		return domain.ChatCompletion{}, errors.New("openai: no usage in response")
	}
	return domain.ChatCompletion{
		Text:  res.Choices[0].Message.Content,
		Usage: *res.Usage,
	}, nil
}

// post sends in as JSON to path and decodes a 2xx answer into out.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	apiKey, err := c.key.get(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("openai: marshal request: %w", err)
	}

	url := endpoint(c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return newAPIError(res, url)
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("openai: read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("openai: decode response: %w", err)
	}
	return nil
}

// fetchAPIKeyFromParamStore reads a {"token": "..."} document.
func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token %s: %w", name, err)
	}
	var doc struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("openai: token %s is not valid JSON (unmarshal): %w", name, err)
	}
	if strings.TrimSpace(doc.Token) == "" {
		return "", fmt.Errorf("openai: API token is empty in %s", name)
	}
	return doc.Token, nil
}
