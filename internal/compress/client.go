package compress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable is returned for any transport failure or non-2xx response.
// Callers treat the compressor as absent and fall back to uncompressed text.
var ErrUnavailable = errors.New("compression service unavailable")

// Policy is the fixed compression policy applied to pinned context. Static
// configuration, never user-supplied.
type Policy struct {
	Aggressiveness  float64
	MaxOutputTokens int
	MinOutputTokens int
}

// Result is the compression service's response for one input.
type Result struct {
	Output              string  `json:"output"`
	OutputTokens        int64   `json:"output_tokens"`
	OriginalInputTokens int64   `json:"original_input_tokens"`
	CompressionTime     float64 `json:"compression_time"`
}

// Client talks to the context compression service.
type Client struct {
	baseURL string
	policy  Policy
	client  *http.Client
}

// Config configures the compression client.
type Config struct {
	BaseURL string
	Policy  Policy
	Timeout time.Duration
}

// NewClient creates a compression client. An empty BaseURL yields a disabled
// client whose Enabled() is false.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		policy:  cfg.Policy,
		client:  &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a compression service is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Policy returns the fixed compression policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// Compress submits input under the fixed policy. Any failure is reported as
// ErrUnavailable so callers can degrade silently.
func (c *Client) Compress(ctx context.Context, input string) (*Result, error) {
	if !c.Enabled() {
		return nil, ErrUnavailable
	}

	reqBody := map[string]any{
		"input":             input,
		"aggressiveness":    c.policy.Aggressiveness,
		"max_output_tokens": c.policy.MaxOutputTokens,
		"min_output_tokens": c.policy.MinOutputTokens,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/compress", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: %s - %s", ErrUnavailable, resp.Status, string(respBody))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if result.Output == "" {
		return nil, fmt.Errorf("%w: empty output", ErrUnavailable)
	}
	return &result, nil
}
