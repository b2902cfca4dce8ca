package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kalambet/skillgap/internal/config"
)

// apiClient is the CLI side of the local HTTP API.
type apiClient struct {
	endpoint string
	token    string
	hc       *http.Client
}

// newAPIClient is a variable so tests can point commands at a fake server.
var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	// An analysis can make two model round trips.
	timeout := 2*cfg.LLM.TimeoutDuration() + 30*time.Second
	return &apiClient{
		endpoint: serverURL(cfg.Server),
		token:    cfg.Server.APIToken,
		hc:       &http.Client{Timeout: timeout},
	}, nil
}

// serverURL returns the base URL a local client should dial. Wildcard
// listen addresses are reached over loopback.
func serverURL(s config.ServerConfig) string {
	host := s.Host
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.jsonRequest(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	return c.jsonRequest(ctx, http.MethodPost, path, payload)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.jsonRequest(ctx, http.MethodDelete, path, nil)
}

func (c *apiClient) jsonRequest(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var (
		body        io.Reader
		contentType string
	)
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}
	return c.roundTrip(ctx, method, path, body, contentType)
}

// postFile uploads data as the multipart part "file", plus any non-empty
// form fields.
func (c *apiClient) postFile(ctx context.Context, path, filename string, data []byte, fields map[string]string) (*http.Response, error) {
	form := new(bytes.Buffer)
	mw := multipart.NewWriter(form)
	for name, value := range fields {
		if value != "" {
			if err := mw.WriteField(name, value); err != nil {
				return nil, err
			}
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err == nil {
		_, err = part.Write(data)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("building upload of %s: %w", filename, err)
	}
	return c.roundTrip(ctx, http.MethodPost, path, form, mw.FormDataContentType())
}

func (c *apiClient) roundTrip(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is skillgap running? (%w)", err)
	}
	return resp, nil
}

// decodeJSON closes resp after decoding it into v (v may be nil). Error
// statuses become errors carrying the API's message when it sent one.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 400 {
		if v == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(v)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return errors.Join(fmt.Errorf("server returned %d", resp.StatusCode), err)
	}
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(bytes.TrimSpace(raw))
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		msg = env.Error.Message
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
}
