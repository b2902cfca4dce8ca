// Package ollama is a small HTTP client for the parts of the Ollama REST API
// that skillgap uses: listing and pulling models, chat and embeddings.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"
)

const (
	probeTimeout = 2 * time.Second
	listTimeout  = 10 * time.Second
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions holds per-call settings; zero fields leave the model defaults.
type ChatOptions struct {
	Temperature *float64
	// Format is passed through as the request "format": "json" or a schema.
	Format any
}

// PullProgress is one status object from a streamed pull.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// APIError is a non-200 answer from Ollama.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("ollama %s: %d %s", e.Op, e.Status, msg)
}

// Client calls one Ollama server. It sets no overall timeout: pulls and
// cold model loads are bounded by the caller's context.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: &http.Client{}}
}

// send performs a request and returns the open body of a 200 response.
func (c *Client) send(ctx context.Context, op, method, path string, in any) (io.ReadCloser, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("ollama %s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("ollama %s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama %s: %w", op, err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	apiErr := &APIError{Op: op, Status: resp.StatusCode}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		apiErr.Message = e.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return nil, apiErr
}

// call is send followed by decoding the JSON reply into out.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	body, err := c.send(ctx, op, method, path, in)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("ollama %s: decoding reply: %w", op, err)
	}
	return nil
}

// IsRunning probes /api/tags with a short timeout.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	body, err := c.send(ctx, "probe", http.MethodGet, "/api/tags", nil)
	if err != nil {
		return false
	}
	body.Close()
	return true
}

// ListModels returns the local model names, tags included.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.call(ctx, "list models", http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HasModel reports whether name is installed. An untagged name matches any
// tag of that model.
func (c *Client) HasModel(ctx context.Context, name string) bool {
	names, err := c.ListModels(ctx)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(names, func(n string) bool {
		base, _, _ := strings.Cut(n, ":")
		return n == name || (!strings.Contains(name, ":") && base == name)
	})
}

// PullModel downloads name, calling onProgress (if set) for each streamed
// status. An error object in the stream fails the pull.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	op := "pull " + name
	body, err := c.send(ctx, op, http.MethodPost, "/api/pull", map[string]any{"name": name, "stream": true})
	if err != nil {
		return err
	}
	defer body.Close()

	dec := json.NewDecoder(body)
	for {
		var p PullProgress
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ollama %s: %w", op, err)
		}
		if p.Error != "" {
			return fmt.Errorf("ollama %s: %s", op, p.Error)
		}
		if onProgress != nil {
			onProgress(p)
		}
	}
}

// Chat runs one non-streaming chat completion and returns the reply text.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, error) {
	req := struct {
		Model    string         `json:"model"`
		Messages []Message      `json:"messages"`
		Stream   bool           `json:"stream"`
		Format   any            `json:"format,omitempty"`
		Options  map[string]any `json:"options,omitempty"`
	}{Model: model, Messages: messages, Format: opts.Format}
	if opts.Temperature != nil {
		req.Options = map[string]any{"temperature": *opts.Temperature}
	}

	var resp struct {
		Message Message `json:"message"`
	}
	if err := c.call(ctx, "chat", http.MethodPost, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// Embed embeds texts in one request; vectors come back in input order.
func (c *Client) Embed(ctx context.Context, model string, texts ...string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := c.call(ctx, "embed", http.MethodPost, "/api/embed", map[string]any{"model": model, "input": texts}, &resp)
	if err != nil {
		return nil, err
	}
	if got := len(resp.Embeddings); got != len(texts) {
		return nil, fmt.Errorf("ollama embed: %d vectors for %d inputs", got, len(texts))
	}
	return resp.Embeddings, nil
}
