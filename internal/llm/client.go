package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "openai/gpt-oss-120b"
	DefaultTemperature = 0.7
	defaultTimeout     = 120 * time.Second
	maxRetries         = 3
	initialBackoff     = 500 * time.Millisecond
)

// Config selects the provider endpoint and sampling for a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client talks to an OpenAI-compatible chat completions API (Groq by
// default, or OpenAI and compatible gateways).
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Client. Empty config fields take the package defaults; a
// zero Temperature is kept as zero.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the model completions are requested from.
func (c *Client) Model() string { return c.cfg.Model }

// Generate sends prompt as a single user message and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Complete(ctx, []Message{{Role: "user", Content: prompt}})
}

// Complete sends a chat completion request and returns the first choice's
// content. HTTP 429 responses are retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	temp := c.cfg.Temperature
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := range maxRetries {
		out, err := c.doComplete(ctx, body)
		if err == nil {
			slog.Debug("llm completion", "model", c.cfg.Model, "attempts", attempt+1, "duration_ms", time.Since(start).Milliseconds())
			return out, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return "", err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			slog.Warn("llm rate limited, retrying", "model", c.cfg.Model, "backoff_ms", backoff.Milliseconds())
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) doComplete(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(resp)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("llm: response has no choices")
	}
	if cr.Usage != nil {
		slog.Debug("llm usage", "prompt_tokens", cr.Usage.PromptTokens, "completion_tokens", cr.Usage.CompletionTokens)
	}
	return cr.Choices[0].Message.Content, nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
		apiErr.Type = body.Error.Type
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
