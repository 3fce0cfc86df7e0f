// Package genai talks to the model backend and turns its replies into
// file edits.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/orcalabs/orcad/internals/timeouts"
)

const (
	productionBaseURL = "https://api.anthropic.com"
	stagingBaseURL    = "https://api.staging.anthropic.com"
)

// BaseURLFor maps a session environment to the backend endpoint.
// Anything that is not production goes to staging.
func BaseURLFor(environment string) string {
	if strings.EqualFold(environment, "PRODUCTION") {
		return productionBaseURL
	}
	return stagingBaseURL
}

// BackendError is a non-2xx reply from the model backend.
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("model backend returned %d: %s", e.StatusCode, e.Body)
}

// Generator produces model output for a prompt. The runner depends on
// this interface so tests can substitute a canned backend. The
// environment is the session's, not the daemon's, so each call lands
// on the endpoint the submitter asked for.
type Generator interface {
	Generate(ctx context.Context, environment, model, system, prompt string) (string, error)
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	maxTokens  int
}

type Option func(*Client)

// WithEndpoint pins the client to a fixed URL instead of resolving it
// from the session environment.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.endpoint = url
	}
}

func NewClient(token string, maxTokens int, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeouts.GenerateCall},
		token:      token,
		maxTokens:  maxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpointFor(environment string) string {
	if c.endpoint != "" {
		return c.endpoint
	}
	return BaseURLFor(environment)
}

type generateRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Generate sends one user turn and returns the concatenated text
// blocks of the reply.
func (c *Client) Generate(ctx context.Context, environment, model, system, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointFor(environment)+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model backend: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("reading model response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &BackendError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	parsed := generateResponse{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}
	var out strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "" || block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}
