package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Message is one conversation message written back to the memory service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to the long-term memory service. Both operations are no-ops
// when the service is unconfigured; callers additionally treat failures as
// non-fatal.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Config configures the memory client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a long-term memory client. An empty BaseURL yields a
// disabled client: GetContext returns "", AddMessages does nothing.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a memory service is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// GetContext retrieves the memory context for a session. Returns "" without
// error when the service is unconfigured.
func (c *Client) GetContext(ctx context.Context, sessionID, userID string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	endpoint := fmt.Sprintf("%s/context?session_id=%s&user_id=%s",
		c.baseURL, url.QueryEscape(sessionID), url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("memory service error: %s - %s", resp.Status, string(respBody))
	}

	var result struct {
		Context string `json:"context"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Context, nil
}

// AddMessages writes an exchange to the session's long-term memory.
// Best-effort by contract: the caller logs and swallows any error.
func (c *Client) AddMessages(ctx context.Context, sessionID, userID string, messages []Message) error {
	if !c.Enabled() || len(messages) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"session_id": sessionID,
		"user_id":    userID,
		"messages":   messages,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("memory service error: %s - %s", resp.Status, string(respBody))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
