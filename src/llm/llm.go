package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultEndpoint  = "https://openrouter.ai/api/v1/chat/completions"
	defaultMaxTokens = 500
)

var (
	ErrNotConfigured = errors.New("llm client not configured")
	ErrEmptyAnswer   = errors.New("model returned no usable text")
)

// Config describes how to reach the API. Timeout bounds one request; zero leaves the call
// bounded only by the API itself.
type Config struct {
	APIKey     string
	Model      string
	ImageModel string
	Providers  []string
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Part is one piece of a prompt: either text or an encoded image.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

func TextPart(text string) Part { return Part{Text: text} }

func ImagePart(data []byte, mimeType string) Part {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return Part{Data: data, MIMEType: mimeType}
}

func (p Part) IsImage() bool { return len(p.Data) > 0 }

// OpenRouter API structures
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ProviderPreferences struct {
	Order          []string `json:"order,omitempty"`
	Quantizations  []string `json:"quantizations,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type ChatRequest struct {
	Model       string               `json:"model"`
	Messages    []Message            `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Provider    *ProviderPreferences `json:"provider,omitempty"`
}

type ChatResponse struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Message ResponseMessage `json:"message"`
}

type ResponseMessage struct {
	Content string `json:"content"`
}

type APIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"` // Can be string or number
}

// Client talks to the OpenRouter chat/completions endpoint. Every Generate call is
// exactly one HTTP request; there are no retries. Safe for concurrent use.
type Client struct {
	mu   sync.RWMutex
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

// SetModels swaps the model routing used by subsequent requests.
func (c *Client) SetModels(model, imageModel string, providers []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Model = model
	c.cfg.ImageModel = imageModel
	c.cfg.Providers = append([]string(nil), providers...)
}

func (c *Client) snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg := c.cfg
	cfg.Providers = append([]string(nil), c.cfg.Providers...)
	return cfg
}

// Ping checks that the client has what it needs to issue a request.
func (c *Client) Ping() error {
	if c == nil {
		return ErrNotConfigured
	}
	cfg := c.snapshot()
	if cfg.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrNotConfigured)
	}
	if cfg.Model == "" {
		return fmt.Errorf("%w: model is required", ErrNotConfigured)
	}
	return nil
}

// Generate sends parts as one user message and returns the answer text.
func (c *Client) Generate(ctx context.Context, parts []Part) (string, error) {
	if err := c.Ping(); err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", errors.New("empty prompt")
	}
	cfg := c.snapshot()

	request := BuildRequest(cfg, parts)
	start := time.Now()
	response, err := c.do(ctx, cfg, request)
	if err != nil {
		slog.Warn("inference request failed", "model", request.Model, "elapsed", time.Since(start), "err", err)
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in API response", ErrEmptyAnswer)
	}
	answer := strings.TrimSpace(response.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	slog.Debug("inference request done", "model", request.Model, "elapsed", time.Since(start), "chars", len(answer))
	return answer, nil
}

// BuildRequest turns parts into the OpenRouter payload. Image-bearing prompts use the image
// model when one is configured.
func BuildRequest(cfg Config, parts []Part) ChatRequest {
	model := cfg.Model
	content := make([]Content, 0, len(parts))
	for _, p := range parts {
		if p.IsImage() {
			if cfg.ImageModel != "" {
				model = cfg.ImageModel
			}
			content = append(content, Content{
				Type:     "image_url",
				ImageURL: &ImageURL{URL: DataURL(p.Data, p.MIMEType)},
			})
			continue
		}
		content = append(content, Content{Type: "text", Text: p.Text})
	}

	return ChatRequest{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: content}},
		Temperature: 0.1,
		MaxTokens:   defaultMaxTokens,
		Provider:    providerPreferences(cfg.Providers),
	}
}

func DataURL(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// providerPreferences pins routing to the configured providers, without fallbacks.
func providerPreferences(providers []string) *ProviderPreferences {
	if len(providers) == 0 {
		return nil
	}
	allowFallbacks := false
	return &ProviderPreferences{
		Order:          providers,
		AllowFallbacks: &allowFallbacks,
	}
}

func (c *Client) do(ctx context.Context, cfg Config, request ChatRequest) (*ChatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("HTTP-Referer", "https://github.com/screen-answer-llm/screen-answer-llm")
	req.Header.Set("X-Title", "Screen Answer Tool")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s (type: %s, code: %v)", response.Error.Message, response.Error.Type, response.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	return &response, nil
}
